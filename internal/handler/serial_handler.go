// internal/handler/serial_handler.go
package handler

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serialkit/internal/utils"
	"serialkit/pkg/serialkit"
)

// SerialHandler exposes one serialkit connection over HTTP
type SerialHandler struct {
	conn   *serialkit.Connection
	logger *utils.ServiceLogger
}

// NewSerialHandler creates a new serial handler
func NewSerialHandler(conn *serialkit.Connection, logger *zap.Logger) *SerialHandler {
	return &SerialHandler{
		conn:   conn,
		logger: utils.NewServiceLogger(logger, "serial-handler"),
	}
}

// RegisterRoutes registers serial routes
func (h *SerialHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ports", h.ListPorts)
	router.GET("/config", h.GetConfig)
	router.POST("/connect", h.Connect)
	router.POST("/disconnect", h.Disconnect)
	router.POST("/command", h.SendCommand)
	router.POST("/write", h.Write)
	router.GET("/read", h.Read)
	router.POST("/flush", h.Flush)
}

// CommandRequest is the body of POST /command
type CommandRequest struct {
	Command   string `json:"command" binding:"required"`
	Encoding  string `json:"encoding"`
	Parse     string `json:"parse"`
	TimeoutMS int    `json:"timeout_ms"`
}

// WriteRequest is the body of POST /write
type WriteRequest struct {
	Data     string `json:"data" binding:"required"`
	Encoding string `json:"encoding"`
}

// PayloadResponse carries bytes read from the port
type PayloadResponse struct {
	Text   string `json:"text"`
	Hex    string `json:"hex"`
	Length int    `json:"length"`
}

func newPayload(raw []byte) PayloadResponse {
	return PayloadResponse{
		Text:   string(raw),
		Hex:    hex.EncodeToString(raw),
		Length: len(raw),
	}
}

// decodePayload turns request data into bytes; encoding is text, hex or base64
func decodePayload(data, encoding string) ([]byte, error) {
	switch encoding {
	case "", "text":
		return []byte(data), nil
	case "hex":
		return hex.DecodeString(data)
	case "base64":
		return base64.StdEncoding.DecodeString(data)
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// ListPorts lists serial ports on the host
func (h *SerialHandler) ListPorts(c *gin.Context) {
	ports := serialkit.ListPorts()
	SuccessResponse(c, http.StatusOK, "Ports listed", gin.H{
		"ports": ports,
		"count": len(ports),
	})
}

// GetConfig returns the connection configuration and state
func (h *SerialHandler) GetConfig(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "Connection configuration", gin.H{
		"config":    h.conn.Config(),
		"connected": h.conn.IsConnected(),
	})
}

// Connect opens the port
func (h *SerialHandler) Connect(c *gin.Context) {
	if err := h.conn.Open(); err != nil {
		h.logger.Warn("Connect failed", zap.Error(err))
		SerialErrorResponse(c, "Failed to connect", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Connected", gin.H{"port": h.conn.Port()})
}

// Disconnect closes the port
func (h *SerialHandler) Disconnect(c *gin.Context) {
	if err := h.conn.Disconnect(); err != nil {
		h.logger.Warn("Disconnect failed", zap.Error(err))
		SerialErrorResponse(c, "Failed to disconnect", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Disconnected", gin.H{"port": h.conn.Port()})
}

// SendCommand sends a command and returns the parsed response
func (h *SerialHandler) SendCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	command, err := decodePayload(req.Command, req.Encoding)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid command encoding", err)
		return
	}

	parse, ok := serialkit.NamedParser(req.Parse)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "Unknown parser", fmt.Errorf("parser %q", req.Parse))
		return
	}

	// Raw responses are returned as a payload rather than base64 JSON.
	if req.Parse == "" || req.Parse == "raw" {
		raw, err := serialkit.Send(h.conn, command, time.Duration(req.TimeoutMS)*time.Millisecond)
		if err != nil {
			SerialErrorResponse(c, "Command failed", err)
			return
		}
		SuccessResponse(c, http.StatusOK, "Command completed", gin.H{"response": newPayload(raw)})
		return
	}

	result, err := serialkit.SendCommand(h.conn, command, parse, time.Duration(req.TimeoutMS)*time.Millisecond)
	if err != nil {
		SerialErrorResponse(c, "Command failed", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Command completed", gin.H{"response": result})
}

// Write writes raw bytes to the port
func (h *SerialHandler) Write(c *gin.Context) {
	var req WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	data, err := decodePayload(req.Data, req.Encoding)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid data encoding", err)
		return
	}

	n, err := h.conn.WriteData(data)
	if err != nil {
		SerialErrorResponse(c, "Write failed", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Data written", gin.H{"bytes_written": n})
}

// Read performs one bounded read
func (h *SerialHandler) Read(c *gin.Context) {
	size := serialkit.DefaultReadChunk
	if s := c.Query("size"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid size", err)
			return
		}
		if parsed > serialkit.MaxReadChunk {
			ErrorResponse(c, http.StatusBadRequest, "Invalid size",
				fmt.Errorf("size %d exceeds the maximum of %d bytes", parsed, serialkit.MaxReadChunk))
			return
		}
		size = parsed
	}

	data, err := h.conn.ReadData(size)
	if err != nil {
		SerialErrorResponse(c, "Read failed", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Data read", newPayload(data))
}

// Flush discards pending port buffers
func (h *SerialHandler) Flush(c *gin.Context) {
	if err := h.conn.Flush(); err != nil {
		SerialErrorResponse(c, "Flush failed", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Buffers flushed", nil)
}
