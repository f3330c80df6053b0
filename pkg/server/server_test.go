package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/richard-senior/football-analyzer/pkg/protocol"
	"github.com/richard-senior/football-analyzer/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() protocol.Tool {
	return protocol.Tool{
		Name:        "echo",
		Description: "Echoes its text argument",
		InputSchema: protocol.InputSchema{
			Type:       "object",
			Properties: map[string]protocol.ToolProperty{"text": {Type: "string"}},
			Required:   []string{"text"},
		},
	}
}

func handleEcho(_ context.Context, args map[string]any) (*protocol.ToolResult, error) {
	text, _ := args["text"].(string)
	if text == "" {
		return nil, errors.New("nothing to echo")
	}
	return protocol.TextResult(text), nil
}

// run feeds the given request lines to a server and returns its responses
func run(t *testing.T, lines ...string) []protocol.JsonRpcResponse {
	var out bytes.Buffer
	s := New(transport.NewStreamTransport(strings.NewReader(strings.Join(lines, "\n")), &out))
	s.RegisterTool(echoTool(), handleEcho)
	require.NoError(t, s.ProcessRequests(context.Background()))

	var responses []protocol.JsonRpcResponse
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var r protocol.JsonRpcResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		responses = append(responses, r)
	}
	return responses
}

func TestLifecycle(t *testing.T) {
	responses := run(t,
		`{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	)
	require.Len(t, responses, 3)

	var init initializeResult
	require.NoError(t, json.Unmarshal(responses[0].Result, &init))
	assert.Equal(t, "2025-03-26", init.ProtocolVersion)
	assert.Equal(t, serverName, init.ServerInfo.Name)
	assert.Contains(t, init.Capabilities, "tools")

	var list struct {
		Tools []protocol.Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(responses[1].Result, &list))
	require.Len(t, list.Tools, 1)
	assert.Equal(t, "echo", list.Tools[0].Name)

	assert.JSONEq(t, `{}`, string(responses[2].Result))
	assert.EqualValues(t, 2, responses[2].ID)
}

func TestInitializeDefaultsVersion(t *testing.T) {
	responses := run(t, `{"jsonrpc":"2.0","id":0,"method":"initialize"}`)
	var init initializeResult
	require.NoError(t, json.Unmarshal(responses[0].Result, &init))
	assert.Equal(t, protocol.DefaultProtocolVersion, init.ProtocolVersion)
}

func TestToolsCall(t *testing.T) {
	responses := run(t,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hello"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"mcp___echo","arguments":{"text":"prefixed"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"missing"}}`,
	)
	require.Len(t, responses, 4)

	var result protocol.ToolResult
	require.NoError(t, json.Unmarshal(responses[0].Result, &result))
	assert.Equal(t, "hello", result.Content[0].Text)
	assert.False(t, result.IsError)

	require.NoError(t, json.Unmarshal(responses[1].Result, &result))
	assert.Equal(t, "prefixed", result.Content[0].Text)

	result = protocol.ToolResult{}
	require.NoError(t, json.Unmarshal(responses[2].Result, &result))
	assert.True(t, result.IsError)
	assert.Equal(t, "nothing to echo", result.Content[0].Text)

	require.NotNil(t, responses[3].Error)
	assert.Equal(t, protocol.ErrInvalidParams, responses[3].Error.Code)
}

func TestErrors(t *testing.T) {
	responses := run(t,
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","method":"resources/list"}`,
		`{"jsonrpc":"1.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	)
	require.Len(t, responses, 3)
	assert.Equal(t, protocol.ErrMethodNotFound, responses[0].Error.Code)
	assert.Equal(t, protocol.ErrInvalidRequest, responses[1].Error.Code)
	assert.Nil(t, responses[1].ID)
	assert.Nil(t, responses[2].Error)
}

func TestShutdownStopsProcessing(t *testing.T) {
	responses := run(t,
		`{"jsonrpc":"2.0","id":1,"method":"shutdown"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	)
	require.Len(t, responses, 1)
	assert.EqualValues(t, 1, responses[0].ID)
}

func TestMalformedJSONEndsSession(t *testing.T) {
	var out bytes.Buffer
	s := New(transport.NewStreamTransport(strings.NewReader(`{"jsonrpc":`), &out))
	err := s.ProcessRequests(context.Background())
	assert.Error(t, err)
	assert.Contains(t, out.String(), `"code":-32700`)
}
