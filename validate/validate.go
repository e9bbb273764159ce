// Package validate reports structural problems in a Schema Model: dangling
// foreign keys, missing primary keys, duplicate and isolated tables.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/ddl"
	"github.com/nickyhof/SchemaDB/op"
)

// Severity levels for issues.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Codes identifying each check.
const (
	CodeNoColumns       = "no_columns"
	CodeNoPrimaryKey    = "no_primary_key"
	CodeDuplicateTable  = "duplicate_table"
	CodeUnknownTable    = "fk_unknown_table"
	CodeUnknownColumn   = "fk_unknown_column"
	CodeIsolatedTable   = "isolated_table"
	CodeUnindexedTarget = "unindexed_text_target"
)

// Issue is one validator finding. Table is the qualified table name the
// issue is reported on; Relationship is set for foreign key findings.
type Issue struct {
	Severity     Severity `json:"severity"`
	Code         string   `json:"code"`
	Table        string   `json:"table"`
	Column       string   `json:"column,omitempty"`
	Relationship string   `json:"relationship,omitempty"`
	Message      string   `json:"message"`
}

func (issue Issue) String() string {
	return fmt.Sprintf("%s [%s] %s", issue.Severity, issue.Code, issue.Message)
}

type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// positioned orders issues by table declaration order, then column order;
// table-level issues come before column-level ones.
type positioned struct {
	issue  Issue
	table  int
	column int
	seq    int
}

type checker struct {
	tables []*core.Table
	issues []positioned
}

func (c *checker) report(table, column int, issue Issue) {
	c.issues = append(c.issues, positioned{issue: issue, table: table, column: column, seq: len(c.issues)})
}

// Validate checks tables and the union of rels with the relationships the
// tables declare. It never modifies its arguments.
func Validate(tables []*core.Table, rels []core.Relationship) Report {
	c := &checker{tables: tables}
	relationships := ddl.MergeRelationships(tables, rels)

	c.checkTables()
	for _, rel := range relationships {
		c.checkRelationship(rel)
	}
	c.checkIsolated(relationships)

	sort.SliceStable(c.issues, func(i, j int) bool {
		a, b := c.issues[i], c.issues[j]
		if a.table != b.table {
			return a.table < b.table
		}
		if a.column != b.column {
			return a.column < b.column
		}
		return a.seq < b.seq
	})

	report := Report{Errors: []Issue{}, Warnings: []Issue{}}
	for _, p := range c.issues {
		if p.issue.Severity == SeverityError {
			report.Errors = append(report.Errors, p.issue)
		} else {
			report.Warnings = append(report.Warnings, p.issue)
		}
	}
	report.Valid = len(report.Errors) == 0
	return report
}

func (c *checker) checkTables() {
	seen := make(map[string]bool)
	for i, table := range c.tables {
		name := tableName(table.Key())
		key := strings.ToLower(table.Key().String())
		if seen[key] {
			c.report(i, -1, Issue{
				Severity: SeverityError,
				Code:     CodeDuplicateTable,
				Table:    name,
				Message:  fmt.Sprintf("table %s is declared more than once in schema %s", name, table.Key().Schema),
			})
		}
		seen[key] = true

		if len(table.Columns) == 0 {
			c.report(i, -1, Issue{
				Severity: SeverityError,
				Code:     CodeNoColumns,
				Table:    name,
				Message:  fmt.Sprintf("table %s has no columns", name),
			})
			continue
		}
		if len(table.PrimaryKey()) == 0 {
			c.report(i, -1, Issue{
				Severity: SeverityError,
				Code:     CodeNoPrimaryKey,
				Table:    name,
				Message:  fmt.Sprintf("table %s has no primary key", name),
			})
		}
	}
}

// checkRelationship reports at most one error per relationship: the first
// endpoint that does not resolve.
func (c *checker) checkRelationship(rel core.Relationship) {
	from, fromIndex := c.find(rel.From())
	position := len(c.tables)
	column := -1
	if from != nil {
		position = fromIndex
		column = columnIndex(from, rel.FromColumn)
	}

	fail := func(code, message string) {
		c.report(position, column, Issue{
			Severity:     SeverityError,
			Code:         code,
			Table:        tableName(rel.From()),
			Column:       rel.FromColumn,
			Relationship: rel.String(),
			Message:      message,
		})
	}

	switch {
	case from == nil:
		fail(CodeUnknownTable, fmt.Sprintf("foreign key %s is declared on unknown table %s", rel, tableName(rel.From())))
		return
	case column < 0:
		fail(CodeUnknownColumn, fmt.Sprintf("foreign key %s uses unknown column %s", rel, rel.FromColumn))
		return
	}

	to, toIndex := c.find(rel.To())
	if to == nil {
		fail(CodeUnknownTable, fmt.Sprintf("foreign key %s references unknown table %s", rel, tableName(rel.To())))
		return
	}
	target, ok := to.Column(rel.ToColumn)
	if !ok {
		fail(CodeUnknownColumn, fmt.Sprintf("foreign key %s references unknown column %s", rel, rel.ToColumn))
		return
	}

	if target.Kind.IsText() && !op.NewTableOp(to).IsIndexed(target.Name) {
		c.report(toIndex, columnIndex(to, target.Name), Issue{
			Severity:     SeverityWarning,
			Code:         CodeUnindexedTarget,
			Table:        tableName(rel.To()),
			Column:       target.Name,
			Relationship: rel.String(),
			Message:      fmt.Sprintf("%s column %s is referenced by %s but has no index", target.Type, target.Name, rel),
		})
	}
}

// checkIsolated warns about tables that take part in no relationship. A
// table alone in its schema is not isolated.
func (c *checker) checkIsolated(relationships []core.Relationship) {
	perSchema := make(map[string]int)
	for _, table := range c.tables {
		perSchema[strings.ToLower(table.Key().Schema)]++
	}

	linked := make(map[string]bool)
	for _, rel := range relationships {
		linked[strings.ToLower(rel.From().String())] = true
		linked[strings.ToLower(rel.To().String())] = true
	}

	for i, table := range c.tables {
		key := table.Key()
		if perSchema[strings.ToLower(key.Schema)] < 2 || linked[strings.ToLower(key.String())] {
			continue
		}
		name := tableName(key)
		c.report(i, -1, Issue{
			Severity: SeverityWarning,
			Code:     CodeIsolatedTable,
			Table:    name,
			Message:  fmt.Sprintf("table %s has no relationships", name),
		})
	}
}

// find returns the first table declared under key.
func (c *checker) find(key core.TableKey) (*core.Table, int) {
	for i, table := range c.tables {
		if strings.EqualFold(table.Key().Schema, key.Schema) && strings.EqualFold(table.Name, key.Name) {
			return table, i
		}
	}
	return nil, -1
}

func columnIndex(table *core.Table, name string) int {
	for i, column := range table.Columns {
		if strings.EqualFold(column.Name, name) {
			return i
		}
	}
	return -1
}

func tableName(key core.TableKey) string {
	if key.Schema == core.DefaultSchema {
		return key.Name
	}
	return key.String()
}
