package singleinstance

import (
	"fmt"
	"os"
	"strconv"
)

const (
	PortStartEnv = "SINGLEINSTANCE_PORT_START"
	PortEndEnv   = "SINGLEINSTANCE_PORT_END"

	defaultPortStart = 49600
	defaultPortEnd   = 49650

	minPort = 1024
	maxPort = 65535
)

// PortRange is an inclusive range of loopback ports. The resident binds
// Start; clients scan the whole range.
type PortRange struct {
	Start int
	End   int
}

func (r PortRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

func (r PortRange) Contains(port int) bool { return port >= r.Start && port <= r.End }

// ConfiguredPorts reads the range from the environment. Unparseable values
// fall back to the defaults, bounds are clamped and a reversed range is
// swapped.
func ConfiguredPorts() PortRange {
	r := PortRange{
		Start: portFromEnv(PortStartEnv, defaultPortStart),
		End:   portFromEnv(PortEndEnv, defaultPortEnd),
	}
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func portFromEnv(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return min(max(n, minPort), maxPort)
}
