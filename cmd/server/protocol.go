// Package main provides a TCP server exposing SchemaDB components.
//
// The protocol is line based. A client sends either a plain line (SQL for
// the connection's current component, AUTH JWT <token>, USE <component>
// or quit) or a JSON Request object, and receives one JSON Response line
// per request.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nickyhof/SchemaDB/db"
)

// Operations accepted in a JSON Request.
const (
	OpQuery    = "query"
	OpExplain  = "explain"
	OpImport   = "import"
	OpExport   = "export"
	OpValidate = "validate"
	OpCreate   = "create"
	OpTeardown = "teardown"
	OpList     = "list"
	OpSnapshot = "snapshot"
	OpHistory  = "history"
	OpRestore  = "restore"
)

// Request is one JSON request from the client. Component defaults to the
// connection's current component.
type Request struct {
	Op        string `json:"op"`
	Component string `json:"component,omitempty"`
	Query     string `json:"query,omitempty"`
	Script    string `json:"script,omitempty"`
	Format    string `json:"format,omitempty"`
	Database  string `json:"database,omitempty"`
	Message   string `json:"message,omitempty"`
	Revision  string `json:"revision,omitempty"`
}

// Response represents the server's response to a request.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Type    string          `json:"type,omitempty"` // "query", "commit", "auth", ...
	Result  json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains tabular query results.
type QueryResponse struct {
	Columns     []string     `json:"columns"`
	Data        [][]string   `json:"data"`
	RecordsRead int          `json:"records_read"`
	Plan        db.QueryPlan `json:"plan"`
	IndexesUsed []string     `json:"indexes_used,omitempty"`
	TimeMs      float64      `json:"time_ms"`
}

// CommitResponse contains mutation operation results.
type CommitResponse struct {
	Status           string        `json:"status,omitempty"`
	TablesCreated    int           `json:"tables_created,omitempty"`
	TablesDeleted    int           `json:"tables_deleted,omitempty"`
	IndexesCreated   int           `json:"indexes_created,omitempty"`
	ConstraintsAdded int           `json:"constraints_added,omitempty"`
	RecordsWritten   int           `json:"records_written,omitempty"`
	RecordsUpdated   int           `json:"records_updated,omitempty"`
	RecordsDeleted   int           `json:"records_deleted,omitempty"`
	Pending          int           `json:"pending,omitempty"`
	Plan             *db.QueryPlan `json:"plan,omitempty"`
	TimeMs           float64       `json:"time_ms"`
}

// AuthResponse is the result of a successful AUTH.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"` // seconds
}

// ImportResponse summarizes a DDL import.
type ImportResponse struct {
	Tables        []string `json:"tables"`
	Relationships []string `json:"relationships"`
	Errors        []string `json:"errors"`
}

// ComponentResponse names the component a request created, removed or
// selected.
type ComponentResponse struct {
	Component string `json:"component"`
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}
	if req.Op == "" {
		return req, errors.New("request has no op")
	}
	req.Op = strings.ToLower(req.Op)
	return req, nil
}

func success(kind string, result any) Response {
	if result == nil {
		return Response{Success: true, Type: kind}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return failure(kind, fmt.Errorf("failed to encode result: %w", err))
	}
	return Response{Success: true, Type: kind, Result: data}
}

func failure(kind string, err error) Response {
	return Response{Success: false, Type: kind, Error: err.Error()}
}
