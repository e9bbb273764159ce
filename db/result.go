package db

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nickyhof/SchemaDB/core"
)

type ResultType int

const (
	QueryResultType ResultType = iota
	CommitResultType
)

type Result interface {
	Type() ResultType
	Display(w io.Writer)
}

// QueryResult is returned by SELECT.
type QueryResult struct {
	Columns          []string
	Data             [][]core.Value
	RecordsRead      int
	Plan             QueryPlan
	ExecutionTimeSec float64
}

// CommitResult is returned by writes, DDL and transaction control.
type CommitResult struct {
	TransactionID    string
	Status           string
	TablesCreated    int
	TablesDeleted    int
	IndexesCreated   int
	ConstraintsAdded int
	RecordsWritten   int
	RecordsUpdated   int
	RecordsDeleted   int
	Pending          int // writes buffered in the open transaction
	Plan             *QueryPlan
	ExecutionTimeSec float64
}

func (result QueryResult) Type() ResultType {
	return QueryResultType
}

func (result CommitResult) Type() ResultType {
	return CommitResultType
}

// Rows returns the result as row maps keyed by column name.
func (result QueryResult) Rows() []core.Row {
	rows := make([]core.Row, len(result.Data))
	for i, values := range result.Data {
		row := make(core.Row, len(result.Columns))
		for j, column := range result.Columns {
			row[column] = values[j]
		}
		rows[i] = row
	}
	return rows
}

// formatDuration formats a duration in human-readable form
func formatDuration(secs float64) string {
	if secs < 0.001 {
		return "<1ms"
	} else if secs < 1 {
		ms := secs * 1000
		if ms < 10 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	} else if secs < 60 {
		if secs < 10 {
			return fmt.Sprintf("%.1fs", secs)
		}
		return fmt.Sprintf("%ds", int(secs))
	}
	mins := int(secs / 60)
	remainSecs := int(secs) % 60
	if remainSecs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, remainSecs)
}

func (result QueryResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result CommitResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result QueryResult) Display(w io.Writer) {
	if len(result.Data) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)

		header := make(table.Row, len(result.Columns))
		for i, column := range result.Columns {
			header[i] = column
		}
		t.AppendHeader(header)

		for _, values := range result.Data {
			row := make(table.Row, len(values))
			for i, value := range values {
				row[i] = value.String()
			}
			t.AppendRow(row)
		}
		t.Render()
	}

	_, _ = fmt.Fprintf(w, "%d rows (%s, %s)\n", result.RecordsRead, result.ExecutionTime(), result.Plan.AccessPath)
}

func (result CommitResult) Display(w io.Writer) {
	var parts []string

	if result.Status != "" {
		parts = append(parts, result.Status)
	}
	if result.TablesCreated > 0 {
		parts = append(parts, fmt.Sprintf("%d table(s) created", result.TablesCreated))
	}
	if result.TablesDeleted > 0 {
		parts = append(parts, fmt.Sprintf("%d table(s) deleted", result.TablesDeleted))
	}
	if result.IndexesCreated > 0 {
		parts = append(parts, fmt.Sprintf("%d index(es) created", result.IndexesCreated))
	}
	if result.ConstraintsAdded > 0 {
		parts = append(parts, fmt.Sprintf("%d constraint(s) added", result.ConstraintsAdded))
	}
	if result.RecordsWritten > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) written", result.RecordsWritten))
	}
	if result.RecordsUpdated > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) updated", result.RecordsUpdated))
	}
	if result.RecordsDeleted > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) deleted", result.RecordsDeleted))
	}
	if result.Pending > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", result.Pending))
	}

	if len(parts) == 0 {
		_, _ = fmt.Fprintf(w, "OK (%s)\n", result.ExecutionTime())
		return
	}
	_, _ = fmt.Fprintf(w, "%s (%s)\n", strings.Join(parts, ", "), result.ExecutionTime())
}
