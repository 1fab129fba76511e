// internal/mcpserver/jsonrpc.go
package mcpserver

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"
)

const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInternalError  = -32603
	codeUnauthorized   = -32001
)

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   rpcError        `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// requestID returns the raw id of a request body, or null when absent.
func requestID(body []byte) json.RawMessage {
	id := gjson.GetBytes(body, "id")
	if !id.Exists() || id.Raw == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(id.Raw)
}

// isInitialize reports whether body is an initialize request, alone or in a batch.
func isInitialize(body []byte) bool {
	parsed := gjson.ParseBytes(body)
	if parsed.IsArray() {
		for _, m := range parsed.Array() {
			if m.Get("method").String() == "initialize" {
				return true
			}
		}
		return false
	}
	return parsed.Get("method").String() == "initialize"
}

// calledTool returns the tool name of a tools/call request.
func calledTool(body []byte) (string, bool) {
	if gjson.GetBytes(body, "method").String() != "tools/call" {
		return "", false
	}
	return gjson.GetBytes(body, "params.name").String(), true
}

func writeRPCError(w http.ResponseWriter, status, code int, message string, data interface{}, id json.RawMessage) {
	if id == nil {
		id = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcEnvelope{
		JSONRPC: "2.0",
		Error:   rpcError{Code: code, Message: message, Data: data},
		ID:      id,
	})
}
