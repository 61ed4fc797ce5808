// pkg/serialkit/guard.go
package serialkit

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// acquire takes the connection lock for one handle-touching operation.
// On success the caller owns the handle until it calls release; when the
// connection is closed the lock is already released and a *StateError is
// returned.
func (c *Connection) acquire(op string) (port Port, release func(), err error) {
	c.mu.Lock()
	if c.port == nil {
		c.mu.Unlock()
		return nil, nil, &StateError{Port: c.cfg.Port, Op: op, Err: ErrNotConnected}
	}
	return c.port, c.mu.Unlock, nil
}

// fail records an I/O failure. Disconnect-class errors drop the handle so
// the connection ends up Closed; anything else leaves it Open. Must be
// called with the lock held.
func (c *Connection) fail(op string, err error) *DeviceError {
	if !isDisconnect(err) {
		c.logger.Warn("Serial I/O error", zap.String("op", op), zap.Error(err))
		return &DeviceError{Port: c.cfg.Port, Op: op, Err: err}
	}

	c.logger.Error("Device disconnected, closing port", zap.String("op", op), zap.Error(err))
	c.release()

	if !errors.Is(err, ErrDeviceGone) {
		err = fmt.Errorf("%w: %w", ErrDeviceGone, err)
	}
	return &DeviceError{Port: c.cfg.Port, Op: op, Err: err}
}

// release closes and forgets the handle. Must be called with the lock held.
func (c *Connection) release() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	c.open.Store(false)
	return err
}
