package methodchannel

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
)

// Args holds the named arguments of one call.
type Args map[string]json.RawMessage

// ParseArgs decodes the args member of a request. Absent and null args
// yield an empty map.
func ParseArgs(raw json.RawMessage) (Args, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return Args{}, nil
	}
	var a Args
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, InvalidArgs("arguments must be an object: %v", err)
	}
	return a, nil
}

func (a Args) raw(name string) (json.RawMessage, bool) {
	v := bytes.TrimSpace(a[name])
	if len(v) == 0 || bytes.Equal(v, jsonNull) {
		return nil, false
	}
	return v, true
}

// Int returns an integral number argument.
func (a Args) Int(name string) (int, error) {
	v, ok := a.raw(name)
	if !ok {
		return 0, InvalidArgs("missing argument %q", name)
	}
	if v[0] == '"' {
		return 0, InvalidArgs("argument %q must be a number", name)
	}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, InvalidArgs("argument %q must be a number", name)
	}
	if i, err := n.Int64(); err == nil {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0, InvalidArgs("argument %q out of range", name)
		}
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, InvalidArgs("argument %q must be an integer", name)
	}
	return int(f), nil
}

// String returns a string argument.
func (a Args) String(name string) (string, error) {
	v, ok := a.raw(name)
	if !ok {
		return "", InvalidArgs("missing argument %q", name)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", InvalidArgs("argument %q must be a string", name)
	}
	return s, nil
}

// Bytes returns a byte array argument, sent either as a base64 string or as
// an array of numbers in 0..255.
func (a Args) Bytes(name string) ([]byte, error) {
	v, ok := a.raw(name)
	if !ok {
		return nil, InvalidArgs("missing argument %q", name)
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, InvalidArgs("argument %q is not valid base64", name)
		}
		return b, nil
	}
	var nums []int
	if err := json.Unmarshal(v, &nums); err != nil {
		return nil, InvalidArgs("argument %q must be bytes", name)
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, InvalidArgs("argument %q has byte %d out of range", name, n)
		}
		out[i] = byte(n)
	}
	return out, nil
}
