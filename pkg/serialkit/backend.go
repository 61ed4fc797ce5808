// pkg/serialkit/backend.go
package serialkit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Port is the raw handle a Connection drives. go.bug.st/serial ports
// satisfy it directly.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(timeout time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Opener opens a Port for a validated configuration
type Opener func(cfg Config) (Port, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Opener{}
)

// RegisterBackend makes an opener available for port identifiers of the
// form "scheme:...". Registering the same scheme twice replaces the opener.
func RegisterBackend(scheme string, open Opener) {
	if scheme == "" || open == nil {
		panic("serialkit: invalid backend registration")
	}

	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[strings.ToLower(scheme)] = open
}

// Backends returns the registered schemes
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	schemes := make([]string, 0, len(backends))
	for scheme := range backends {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// openerFor picks the backend for a port identifier. Identifiers without a
// registered scheme go to the serial backend, so "COM3" and "/dev/ttyUSB0"
// both open as serial ports.
func openerFor(port string) Opener {
	if i := strings.Index(port, ":"); i > 1 {
		backendsMu.RLock()
		open, ok := backends[strings.ToLower(port[:i])]
		backendsMu.RUnlock()
		if ok {
			return open
		}
	}
	return openSerial
}

// openSerial is swapped out by tests
var openSerial Opener = func(cfg Config) (Port, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return port, nil
}
