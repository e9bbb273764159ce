package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nickyhof/SchemaDB/config"
	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/db"
	"github.com/nickyhof/SchemaDB/ddl"
	"github.com/nickyhof/SchemaDB/ps"
	"github.com/nickyhof/SchemaDB/validate"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func renderResponse(w io.Writer, response db.Response, output string) error {
	if output == config.OutputJSON {
		return renderJSON(w, response)
	}
	if !response.Success {
		_, _ = fmt.Fprintf(w, "Error: %s\n", response.Error)
		return nil
	}
	response.Result.Display(w)
	return nil
}

func renderImport(w io.Writer, path string, result ddl.ImportResult) {
	_, _ = fmt.Fprintf(w, "Imported %d table(s) from %s\n", len(result.Tables), path)
	for _, err := range result.Errors {
		_, _ = fmt.Fprintf(w, "  ✗ %v\n", err)
	}
}

type importSummary struct {
	Path          string   `json:"path"`
	Tables        []string `json:"tables"`
	Relationships []string `json:"relationships"`
	Errors        []string `json:"errors"`
}

func summarizeImport(path string, result ddl.ImportResult) importSummary {
	summary := importSummary{
		Path:          path,
		Tables:        make([]string, 0, len(result.Tables)),
		Relationships: make([]string, 0, len(result.Relationships)),
		Errors:        make([]string, 0, len(result.Errors)),
	}
	for _, t := range result.Tables {
		summary.Tables = append(summary.Tables, t.QualifiedName())
	}
	for _, rel := range result.Relationships {
		summary.Relationships = append(summary.Relationships, rel.String())
	}
	for _, err := range result.Errors {
		summary.Errors = append(summary.Errors, err.Error())
	}
	return summary
}

func renderTables(w io.Writer, tables []*core.Table) {
	if len(tables) == 0 {
		_, _ = fmt.Fprintln(w, "(no tables)")
		return
	}
	t := newTable(w, "schema", "table", "columns", "indexes", "rows")
	for _, tbl := range tables {
		indexes := make([]string, len(tbl.Indexes))
		for i, index := range tbl.Indexes {
			indexes[i] = index.Name
		}
		t.AppendRow(table.Row{tbl.Schema, tbl.Name, len(tbl.Columns), strings.Join(indexes, ", "), len(tbl.Rows)})
	}
	t.Render()
}

func renderPlan(w io.Writer, plan db.QueryPlan, output string) error {
	if output == config.OutputJSON {
		return renderJSON(w, plan)
	}
	_, _ = fmt.Fprintln(w, plan.String())
	return nil
}

func renderReport(w io.Writer, report validate.Report, output string) error {
	if output == config.OutputJSON {
		return renderJSON(w, report)
	}
	issues := append(append([]validate.Issue{}, report.Errors...), report.Warnings...)
	if len(issues) > 0 {
		t := newTable(w, "severity", "code", "table", "message")
		for _, issue := range issues {
			t.AppendRow(table.Row{issue.Severity, issue.Code, issue.Table, issue.Message})
		}
		t.Render()
	}
	status := "valid"
	if !report.Valid {
		status = "invalid"
	}
	_, _ = fmt.Fprintf(w, "Schema is %s: %d error(s), %d warning(s)\n", status, len(report.Errors), len(report.Warnings))
	return nil
}

func renderHistory(w io.Writer, history []ps.Transaction, output string) error {
	if output == config.OutputJSON {
		if history == nil {
			history = []ps.Transaction{}
		}
		return renderJSON(w, history)
	}
	if len(history) == 0 {
		_, _ = fmt.Fprintln(w, "No snapshots")
		return nil
	}
	t := newTable(w, "id", "when", "author", "message")
	for _, txn := range history {
		t.AppendRow(table.Row{txn.Short(), txn.When.Format("2006-01-02 15:04:05"), txn.Author, txn.Message})
	}
	t.Render()
	return nil
}
