package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/protocol"
)

// Transport defines the interface for communication methods
type Transport interface {
	ReadRequest() (*protocol.JsonRpcRequest, error)
	WriteResponse(*protocol.JsonRpcResponse) error
}

// StdioTransport implements newline delimited JSON-RPC over a pair of streams,
// normally stdin and stdout
type StdioTransport struct {
	decoder *json.Decoder
	writer  *bufio.Writer
	mu      sync.Mutex
}

// NewStdioTransport creates a new transport that uses stdin/stdout
func NewStdioTransport() *StdioTransport {
	return NewStreamTransport(os.Stdin, os.Stdout)
}

// NewStreamTransport creates a transport over arbitrary streams
func NewStreamTransport(r io.Reader, w io.Writer) *StdioTransport {
	return &StdioTransport{
		decoder: json.NewDecoder(bufio.NewReader(r)),
		writer:  bufio.NewWriter(w),
	}
}

// ReadRequest reads the next JSON-RPC request. io.EOF means the client went away.
// A request that is valid JSON but not valid JSON-RPC is returned as a
// *protocol.JsonRpcError so the caller can answer it and keep reading.
func (t *StdioTransport) ReadRequest() (*protocol.JsonRpcRequest, error) {
	var raw json.RawMessage
	if err := t.decoder.Decode(&raw); err != nil {
		if err == io.EOF {
			logger.Info("Received EOF on stdin, client disconnected")
		} else {
			logger.Error("Error reading request:", err)
		}
		return nil, err
	}
	logger.Debug("Received raw request:", string(raw))

	request, err := protocol.ParseJsonRpcRequest(raw)
	if err != nil {
		logger.Error("Failed to parse JSON-RPC request:", err)
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidRequest, Message: err.Error()}
	}
	return request, nil
}

// WriteResponse writes a JSON-RPC response followed by a newline
func (t *StdioTransport) WriteResponse(response *protocol.JsonRpcResponse) error {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		logger.Error("Failed to marshal response:", err)
		return err
	}
	responseBytes = append(responseBytes, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.Write(responseBytes); err != nil {
		logger.Error("Failed to write response:", err)
		return err
	}
	if err := t.writer.Flush(); err != nil {
		logger.Error("Failed to flush response:", err)
		return err
	}
	logger.Debug("Sending response:", string(responseBytes))
	return nil
}
