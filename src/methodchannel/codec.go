package methodchannel

import "encoding/json"

// Path is the HTTP path the channel is served on.
const Path = "/channel"

// Request is one method invocation sent by the UI layer.
type Request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Response answers exactly one Request. Result is the JSON literal null
// when the operation has no value.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Push is an unsolicited event sent to every connected client.
type Push struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// frame is the union of everything a client can receive.
type frame struct {
	ID     *int64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

var jsonNull = json.RawMessage("null")

func success(id int64, result any) Response {
	if result == nil {
		return Response{ID: id, Result: jsonNull}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return failure(id, Errorf(CodeInternal, "encode result: %v", err))
	}
	return Response{ID: id, Result: data}
}

func failure(id int64, e *Error) Response {
	return Response{ID: id, Error: e}
}
