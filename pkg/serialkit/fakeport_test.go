package serialkit

import (
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakePort simulates a device behind a serial port. Bytes pushed with
// send become readable; reads honour the read timeout like a real port.
type fakePort struct {
	mu       sync.Mutex
	timeout  time.Duration
	pending  []byte
	incoming chan []byte
	writes   [][]byte
	closed   bool

	closeCount   int
	inputResets  int
	outputResets int

	readErr  error
	writeErr error
	onWrite  func(p []byte)
}

func newFakePort() *fakePort {
	return &fakePort{incoming: make(chan []byte, 1024)}
}

// send makes data available to the next reads
func (f *fakePort) send(data string) {
	f.incoming <- []byte(data)
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, os.ErrClosed
	}
	if f.readErr != nil {
		err := f.readErr
		f.mu.Unlock()
		return 0, err
	}
	if len(f.pending) > 0 {
		n := copy(p, f.pending)
		f.pending = f.pending[n:]
		f.mu.Unlock()
		return n, nil
	}
	timeout := f.timeout
	f.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case chunk := <-f.incoming:
		f.mu.Lock()
		defer f.mu.Unlock()
		f.pending = append(f.pending, chunk...)
		n := copy(p, f.pending)
		f.pending = f.pending[n:]
		return n, nil
	case <-timer.C:
		return 0, nil
	}
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, os.ErrClosed
	}
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return 0, err
	}
	data := append([]byte(nil), p...)
	f.writes = append(f.writes, data)
	onWrite := f.onWrite
	f.mu.Unlock()

	if onWrite != nil {
		onWrite(data)
	}
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCount++
	return nil
}

func (f *fakePort) SetReadTimeout(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = timeout
	return nil
}

func (f *fakePort) ResetInputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputResets++
	f.pending = nil
	return nil
}

func (f *fakePort) ResetOutputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputResets++
	return nil
}

func (f *fakePort) writtenCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}

func (f *fakePort) currentTimeout() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeout
}

func (f *fakePort) setReadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *fakePort) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// useOpener replaces the serial backend for the duration of the test
func useOpener(t *testing.T, open Opener) {
	t.Helper()
	previous := openSerial
	openSerial = open
	t.Cleanup(func() { openSerial = previous })
}

// connectFake opens a Connection backed by port. mutate may adjust the
// configuration before connecting.
func connectFake(t *testing.T, port *fakePort, mutate func(*Config)) *Connection {
	t.Helper()

	useOpener(t, func(cfg Config) (Port, error) {
		port.SetReadTimeout(cfg.Timeout)
		return port, nil
	})

	cfg := Config{
		Port:          "/dev/ttyFAKE0",
		Timeout:       50 * time.Millisecond,
		QuietInterval: 20 * time.Millisecond,
		Logger:        zap.NewNop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	conn, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { conn.Disconnect() })
	return conn
}
