package serialkit

import (
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// openLoopback connects to the slave end of a pty pair through the real
// serial backend; the master end plays the device.
func openLoopback(t *testing.T, mutate func(*Config)) (*Connection, *os.File) {
	t.Helper()

	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	cfg := Config{
		Port:     slave.Name(),
		BaudRate: 115200,
		Timeout:  100 * time.Millisecond,
		Logger:   zap.NewNop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	conn, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Disconnect() })

	return conn, master
}

func TestLoopback_ReadData(t *testing.T) {
	conn, device := openLoopback(t, nil)

	_, err := device.Write([]byte("STATUS\n"))
	require.NoError(t, err)

	var got []byte
	deadline := time.Now().Add(time.Second)
	for len(got) < len("STATUS\n") && time.Now().Before(deadline) {
		data, err := conn.ReadData(1024)
		require.NoError(t, err)
		got = append(got, data...)
	}
	require.Equal(t, "STATUS\n", string(got))
}

func TestLoopback_ReadTimeout(t *testing.T) {
	conn, _ := openLoopback(t, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
	})

	start := time.Now()
	data, err := conn.ReadData(1024)
	require.NoError(t, err)
	require.Empty(t, data)
	require.Less(t, time.Since(start), time.Second)
}

func TestLoopback_SendCommand(t *testing.T) {
	conn, device := openLoopback(t, func(cfg *Config) {
		cfg.QuietInterval = 50 * time.Millisecond
	})

	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		var received []byte
		for string(received) != "CONFIG\n" {
			n, err := device.Read(buf)
			if err != nil {
				errs <- err
				return
			}
			received = append(received, buf[:n]...)
		}
		_, err := device.Write([]byte("k1=v1\nk2=v2\n"))
		errs <- err
	}()

	values, err := SendString(conn, "CONFIG\n", ParseKeyValue, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, <-errs)
	require.Equal(t, map[string]string{"k1": "v1", "k2": "v2"}, values)
}

func TestLoopback_Reconnect(t *testing.T) {
	conn, _ := openLoopback(t, nil)

	require.NoError(t, conn.Disconnect())
	require.False(t, conn.IsConnected())

	other, err := Connect(conn.Config())
	require.NoError(t, err)
	defer other.Disconnect()
	require.True(t, other.IsConnected())
}

func TestLoopback_DeviceGone(t *testing.T) {
	conn, device := openLoopback(t, nil)

	require.NoError(t, device.Close())

	_, err := conn.ReadData(16)
	require.ErrorIs(t, err, ErrDeviceGone)
	require.False(t, conn.IsConnected())

	_, err = conn.ReadData(16)
	require.ErrorIs(t, err, ErrNotConnected)
}
