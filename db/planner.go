package db

import (
	"fmt"
	"math"
	"strings"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/op"
	"github.com/nickyhof/SchemaDB/sql"
)

// Operation is the kind of row operation a plan performs.
type Operation int

const (
	SelectOperation Operation = iota
	InsertOperation
	UpdateOperation
	DeleteOperation
)

func (operation Operation) String() string {
	switch operation {
	case SelectOperation:
		return "SELECT"
	case InsertOperation:
		return "INSERT"
	case UpdateOperation:
		return "UPDATE"
	case DeleteOperation:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

func (operation Operation) MarshalText() ([]byte, error) {
	return []byte(operation.String()), nil
}

func (operation *Operation) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "SELECT":
		*operation = SelectOperation
	case "INSERT":
		*operation = InsertOperation
	case "UPDATE":
		*operation = UpdateOperation
	case "DELETE":
		*operation = DeleteOperation
	default:
		return fmt.Errorf("unknown operation %q", text)
	}
	return nil
}

// IsWrite reports whether the operation changes rows.
func (operation Operation) IsWrite() bool {
	return operation != SelectOperation
}

type AccessPath int

const (
	FullScan AccessPath = iota
	IndexScan
	DirectInsert
)

func (path AccessPath) String() string {
	switch path {
	case IndexScan:
		return "INDEX SCAN"
	case DirectInsert:
		return "INSERT"
	default:
		return "FULL SCAN"
	}
}

func (path AccessPath) MarshalText() ([]byte, error) {
	return []byte(path.String()), nil
}

func (path *AccessPath) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "FULL SCAN":
		*path = FullScan
	case "INDEX SCAN":
		*path = IndexScan
	case "INSERT":
		*path = DirectInsert
	default:
		return fmt.Errorf("unknown access path %q", text)
	}
	return nil
}

type QueryPlan struct {
	Operation     Operation  `json:"operation"`
	Schema        string     `json:"schema"`
	Table         string     `json:"table"`
	View          string     `json:"view,omitempty"`
	IndexUsed     string     `json:"indexUsed,omitempty"`
	AccessPath    AccessPath `json:"accessPath"`
	EstimatedRows int        `json:"estimatedRows"`
	EstimatedCost float64    `json:"estimatedCost"`
}

func (plan QueryPlan) String() string {
	target := core.NewTableKey(plan.Schema, plan.Table).String()
	if plan.View != "" {
		target = plan.View + " -> " + target
	}
	access := plan.AccessPath.String()
	if plan.IndexUsed != "" {
		access += " " + plan.IndexUsed
	}
	return fmt.Sprintf("%s on %s using %s (rows=%d, cost=%.2f)",
		plan.Operation, target, access, plan.EstimatedRows, plan.EstimatedCost)
}

// Catalog resolves tables and views by name. *core.Model implements it, as
// does the read-your-own-writes view of an open transaction.
type Catalog interface {
	Table(schema, name string) (*core.Table, bool)
	View(schema, name string) (*core.View, bool)
}

const (
	maxViewDepth = 8

	scanCostPerRow  = 1.0
	indexCostBase   = 0.5
	indexCostPerRow = 0.25
	insertCost      = 1.0
)

// Plan chooses an access path for a row statement and estimates its cost.
// Estimates are for display only.
func Plan(statement sql.Statement, catalog Catalog) (QueryPlan, error) {
	switch s := statement.(type) {
	case sql.SelectStatement:
		return planSelect(s, catalog)
	case sql.InsertStatement:
		table, err := resolveTarget(s.Table, catalog)
		if err != nil {
			return QueryPlan{}, err
		}
		for _, column := range s.Columns {
			if err := checkColumn(table, column); err != nil {
				return QueryPlan{}, err
			}
		}
		return QueryPlan{
			Operation:     InsertOperation,
			Schema:        table.Schema,
			Table:         table.Name,
			AccessPath:    DirectInsert,
			EstimatedRows: 1,
			EstimatedCost: insertCost,
		}, nil
	case sql.UpdateStatement:
		table, err := resolveTarget(s.Table, catalog)
		if err != nil {
			return QueryPlan{}, err
		}
		for _, update := range s.Updates {
			if err := checkColumn(table, update.Column); err != nil {
				return QueryPlan{}, err
			}
		}
		return planFiltered(UpdateOperation, table, s.Where)
	case sql.DeleteStatement:
		table, err := resolveTarget(s.Table, catalog)
		if err != nil {
			return QueryPlan{}, err
		}
		return planFiltered(DeleteOperation, table, s.Where)
	default:
		return QueryPlan{}, fmt.Errorf("no plan for %s statements", statement.Type())
	}
}

func planSelect(statement sql.SelectStatement, catalog Catalog) (QueryPlan, error) {
	src, err := resolveSource(statement.Table, catalog, 0)
	if err != nil {
		return QueryPlan{}, err
	}
	for _, column := range statement.Columns {
		if _, ok := src.column(column); !ok {
			return QueryPlan{}, &PlanError{Kind: UnknownColumn, Table: src.name, Column: column}
		}
	}

	if statement.Where != nil {
		if _, ok := src.column(statement.Where.Column); !ok {
			return QueryPlan{}, &PlanError{Kind: UnknownColumn, Table: src.name, Column: statement.Where.Column}
		}
	}

	plan, err := planFiltered(SelectOperation, src.table, statement.Where)
	if err != nil {
		return QueryPlan{}, err
	}
	if len(src.views) > 0 {
		plan.View = src.name
	}
	return plan, nil
}

func planFiltered(operation Operation, table *core.Table, where *sql.Condition) (QueryPlan, error) {
	rows := len(table.Rows)
	plan := QueryPlan{
		Operation:     operation,
		Schema:        table.Schema,
		Table:         table.Name,
		AccessPath:    FullScan,
		EstimatedRows: rows,
		EstimatedCost: float64(rows) * scanCostPerRow,
	}
	if where == nil {
		return plan, nil
	}
	if err := checkColumn(table, where.Column); err != nil {
		return QueryPlan{}, err
	}

	index, ok := chooseIndex(table, where)
	if !ok {
		return plan, nil
	}
	plan.IndexUsed = index.Name
	plan.AccessPath = IndexScan
	plan.EstimatedRows = estimateIndexRows(index, where.Operator, rows)
	plan.EstimatedCost = indexCostBase + float64(plan.EstimatedRows)*indexCostPerRow
	return plan, nil
}

// chooseIndex returns the effective index led by the WHERE column with the
// lowest row estimate. On equal estimates a single-column unique index wins,
// then declaration order.
func chooseIndex(table *core.Table, where *sql.Condition) (core.Index, bool) {
	if !indexUsable(where) {
		return core.Index{}, false
	}
	rows := len(table.Rows)
	var (
		best     core.Index
		bestRows int
		found    bool
	)
	for _, index := range op.NewTableOp(table).Indexes() {
		if !strings.EqualFold(index.Leading(), where.Column) {
			continue
		}
		estimate := estimateIndexRows(index, where.Operator, rows)
		if !found || estimate < bestRows ||
			(estimate == bestRows && pointLookup(index, where.Operator) && !pointLookup(best, where.Operator)) {
			best, bestRows, found = index, estimate, true
		}
	}
	return best, found
}

// pointLookup reports whether index finds at most one row for operator.
func pointLookup(index core.Index, operator sql.Operator) bool {
	return operator == sql.EqualsOperator && index.Unique && len(index.Columns) == 1
}

func indexUsable(where *sql.Condition) bool {
	switch where.Operator {
	case sql.EqualsOperator, sql.LessThanOperator, sql.GreaterThanOperator,
		sql.LessThanOrEqualOperator, sql.GreaterThanOrEqualOperator:
		return !where.Value.IsNull()
	case sql.LikeOperator:
		return isPrefixPattern(where.Value.Text)
	default:
		return false
	}
}

func isPrefixPattern(pattern string) bool {
	return pattern != "" && pattern[0] != '%' && pattern[0] != '_'
}

func estimateIndexRows(index core.Index, operator sql.Operator, rows int) int {
	var estimate int
	switch operator {
	case sql.EqualsOperator:
		if pointLookup(index, operator) {
			estimate = 1
		} else {
			estimate = divideUp(rows, 10)
		}
	case sql.LikeOperator:
		estimate = divideUp(rows, 4)
	default:
		estimate = divideUp(rows, 3)
	}
	estimate = max(estimate, 1)
	return min(estimate, rows)
}

func divideUp(rows, by int) int {
	return int(math.Ceil(float64(rows) / float64(by)))
}

func checkColumn(table *core.Table, column string) error {
	if !table.HasColumn(column) {
		return &PlanError{Kind: UnknownColumn, Table: table.Key().String(), Column: column}
	}
	return nil
}

// resolveTarget finds the base table a write goes to. Views are never
// write targets.
func resolveTarget(name sql.TableName, catalog Catalog) (*core.Table, error) {
	if table, ok := catalog.Table(name.Schema, name.Name); ok {
		return table, nil
	}
	key := name.Key()
	if _, ok := catalog.View(name.Schema, name.Name); ok {
		return nil, &PlanError{Kind: ReadOnlyTarget, Table: key.String()}
	}
	return nil, &PlanError{Kind: UnknownTable, Table: key.String()}
}

// source is what a SELECT reads: a base table, possibly reached through a
// chain of views.
type source struct {
	name    string
	table   *core.Table
	views   []sql.SelectStatement // innermost first
	columns []string
}

func (src source) column(name string) (string, bool) {
	for _, column := range src.columns {
		if strings.EqualFold(column, name) {
			return column, true
		}
	}
	return "", false
}

func resolveSource(name sql.TableName, catalog Catalog, depth int) (source, error) {
	key := name.Key()
	if table, ok := catalog.Table(name.Schema, name.Name); ok {
		return source{name: table.Key().String(), table: table, columns: table.ColumnNames()}, nil
	}
	view, ok := catalog.View(name.Schema, name.Name)
	if !ok {
		return source{}, &PlanError{Kind: UnknownTable, Table: key.String()}
	}
	if depth >= maxViewDepth {
		return source{}, &PlanError{Kind: RecursiveView, Table: key.String()}
	}

	statement, err := sql.Parse(view.Query)
	if err != nil {
		return source{}, fmt.Errorf("view %s: %w", key, err)
	}
	query, ok := statement.(sql.SelectStatement)
	if !ok {
		return source{}, fmt.Errorf("view %s is not a SELECT", key)
	}
	if query.Table.Schema == "" {
		query.Table.Schema = view.Schema
	}

	inner, err := resolveSource(query.Table, catalog, depth+1)
	if err != nil {
		return source{}, err
	}
	if query.Where != nil {
		if _, ok := inner.column(query.Where.Column); !ok {
			return source{}, &PlanError{Kind: UnknownColumn, Table: inner.name, Column: query.Where.Column}
		}
	}

	columns := inner.columns
	if len(query.Columns) > 0 {
		columns = make([]string, len(query.Columns))
		for i, column := range query.Columns {
			canonical, ok := inner.column(column)
			if !ok {
				return source{}, &PlanError{Kind: UnknownColumn, Table: inner.name, Column: column}
			}
			columns[i] = canonical
		}
	}

	return source{
		name:    view.Key().String(),
		table:   inner.table,
		views:   append(inner.views, query),
		columns: columns,
	}, nil
}
