package usbbulk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serialkit/pkg/serialkit"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		port string
		want Address
	}{
		{"usb:04b8:0202", Address{Vendor: 0x04b8, Product: 0x0202, Endpoint: 1}},
		{"USB:0x04B8:0x0202:2", Address{Vendor: 0x04b8, Product: 0x0202, Endpoint: 2}},
		{"usb:1a86:7523:15", Address{Vendor: 0x1a86, Product: 0x7523, Endpoint: 15}},
	}

	for _, tt := range tests {
		t.Run(tt.port, func(t *testing.T) {
			got, err := ParseAddress(tt.port)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, port := range []string{
		"usb:04b8",
		"usb:04b8:0202:1:9",
		"com:04b8:0202",
		"usb:zzzz:0202",
		"usb:04b8:10000",
		"usb:04b8:0202:0",
		"usb:04b8:0202:16",
	} {
		t.Run(port, func(t *testing.T) {
			_, err := ParseAddress(port)
			assert.ErrorIs(t, err, serialkit.ErrInvalidConfig)
		})
	}
}

func TestSchemeRegistered(t *testing.T) {
	assert.Contains(t, serialkit.Backends(), Scheme)
}
