// pkg/serialkit/ports.go
package serialkit

import (
	"sort"

	"go.bug.st/serial"
)

// getPortsList is swapped out by tests
var getPortsList = serial.GetPortsList

// ListPorts returns the serial ports present on the host, sorted by name.
// Enumeration is best effort: failures yield an empty list.
func ListPorts() []string {
	ports, err := getPortsList()
	if err != nil || len(ports) == 0 {
		return []string{}
	}

	result := append([]string(nil), ports...)
	sort.Strings(result)
	return result
}
