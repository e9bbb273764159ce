package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"encoding/json"
	"unsafe"

	"github.com/nickyhof/SchemaDB"
	"github.com/nickyhof/SchemaDB/db"
	"github.com/nickyhof/SchemaDB/ddl"
)

// registry holds every component opened through the bindings. It
// serializes access per component itself.
var registry = SchemaDB.NewRegistry(SchemaDB.Options{})

// Response mirrors the server protocol for consistency
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Type    string          `json:"type,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

type QueryResponse struct {
	Columns     []string     `json:"columns"`
	Data        [][]string   `json:"data"`
	RecordsRead int          `json:"records_read"`
	Plan        db.QueryPlan `json:"plan"`
	IndexesUsed []string     `json:"indexes_used,omitempty"`
	TimeMs      float64      `json:"time_ms"`
}

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

type ImportResponse struct {
	Tables        int      `json:"tables"`
	Relationships int      `json:"relationships"`
	Errors        []string `json:"errors"`
}

// schemadb_open creates a component and returns its id. An empty id gets a
// generated one. Returns NULL on failure; the caller frees the id.
//
//export schemadb_open
func schemadb_open(id *C.char) *C.char {
	created, err := registry.Create(C.GoString(id), nil)
	if err != nil {
		return nil
	}
	return C.CString(created)
}

//export schemadb_close
func schemadb_close(id *C.char) C.int {
	if err := registry.Teardown(C.GoString(id)); err != nil {
		return -1
	}
	return 0
}

//export schemadb_execute
func schemadb_execute(id *C.char, query *C.char) *C.char {
	response := registry.Run(C.GoString(id), C.GoString(query))
	if !response.Success {
		return makeErrorResponse(response.Error)
	}

	switch r := response.Result.(type) {
	case db.QueryResult:
		data := make([][]string, len(r.Data))
		for i, values := range r.Data {
			row := make([]string, len(values))
			for j, value := range values {
				row[j] = value.String()
			}
			data[i] = row
		}
		return makeResponse("query", QueryResponse{
			Columns:     r.Columns,
			Data:        data,
			RecordsRead: r.RecordsRead,
			Plan:        r.Plan,
			IndexesUsed: response.IndexesUsed,
			TimeMs:      r.ExecutionTimeSec * 1000,
		})

	case db.CommitResult:
		return makeResponse("commit", CommitResponse{
			Status:           r.Status,
			TablesCreated:    r.TablesCreated,
			TablesDeleted:    r.TablesDeleted,
			IndexesCreated:   r.IndexesCreated,
			ConstraintsAdded: r.ConstraintsAdded,
			RecordsWritten:   r.RecordsWritten,
			RecordsUpdated:   r.RecordsUpdated,
			RecordsDeleted:   r.RecordsDeleted,
			Pending:          r.Pending,
			Plan:             r.Plan,
			TimeMs:           r.ExecutionTimeSec * 1000,
		})

	default:
		return makeResponse("unknown", nil)
	}
}

//export schemadb_import
func schemadb_import(id *C.char, script *C.char) *C.char {
	result, err := registry.Import(C.GoString(id), C.GoString(script))
	if err != nil {
		return makeErrorResponse(err.Error())
	}
	summary := ImportResponse{
		Tables:        len(result.Tables),
		Relationships: len(result.Relationships),
		Errors:        make([]string, 0, len(result.Errors)),
	}
	for _, e := range result.Errors {
		summary.Errors = append(summary.Errors, e.Error())
	}
	return makeResponse("import", summary)
}

// schemadb_export renders a component as sql, mermaid, dbml or markdown.
//
//export schemadb_export
func schemadb_export(id *C.char, format *C.char, database *C.char) *C.char {
	f, err := ddl.ParseFormat(C.GoString(format))
	if err != nil {
		return makeErrorResponse(err.Error())
	}
	document, err := registry.Export(C.GoString(id), f, C.GoString(database))
	if err != nil {
		return makeErrorResponse(err.Error())
	}
	return makeResponse("export", document)
}

//export schemadb_validate
func schemadb_validate(id *C.char) *C.char {
	report, err := registry.Validate(C.GoString(id))
	if err != nil {
		return makeErrorResponse(err.Error())
	}
	return makeResponse("validate", report)
}

//export schemadb_free
func schemadb_free(ptr *C.char) {
	C.free(unsafe.Pointer(ptr))
}

func makeResponse(kind string, result any) *C.char {
	resp := Response{Success: true, Type: kind}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return makeErrorResponse(err.Error())
		}
		resp.Result = data
	}
	jsonData, _ := json.Marshal(resp)
	return C.CString(string(jsonData))
}

func makeErrorResponse(msg string) *C.char {
	resp := Response{
		Success: false,
		Error:   msg,
	}
	jsonData, _ := json.Marshal(resp)
	return C.CString(string(jsonData))
}

func main() {}
