package singleinstance

import (
	"os"
	"strconv"
)

const (
	defaultPortStart = 49600
	defaultPortEnd   = 49650
)

// portRange returns the loopback TCP port range. Overridable through
// CAPTURE_PORT_START and CAPTURE_PORT_END (inclusive); values are clamped to
// [1024, 65535].
func portRange() (int, int) {
	start := defaultPortStart
	end := defaultPortEnd
	if v := os.Getenv("CAPTURE_PORT_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	if v := os.Getenv("CAPTURE_PORT_END"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			end = n
		}
	}
	if start < 1024 {
		start = 1024
	}
	if end > 65535 {
		end = 65535
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}

// PortRange exposes the effective range for logging.
func PortRange() (int, int) { return portRange() }
