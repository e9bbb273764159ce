package db

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/op"
	"github.com/nickyhof/SchemaDB/sql"
)

// timeNow is replaced in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

const (
	timestampLayout = time.RFC3339
	dateLayout      = "2006-01-02"
)

// ExecResult is the outcome of one row statement.
type ExecResult struct {
	Operation Operation
	Columns   []string   // SELECT only
	Rows      []core.Row // SELECT only, in table order
	RowCount  int
}

// Execute applies a planned row statement. Writes are made on a copy of the
// target table; the copy replaces the model's table (or the transaction's
// working copy when tx is open) only if the whole statement succeeds.
func Execute(plan QueryPlan, statement sql.Statement, model *core.Model, tx *Transaction) (ExecResult, error) {
	catalog := Catalog(model)
	if tx != nil {
		catalog = tx.Catalog(model)
	}

	if s, ok := statement.(sql.SelectStatement); ok {
		return executeSelect(s, catalog)
	}

	current, err := resolveTarget(targetOf(statement), catalog)
	if err != nil {
		return ExecResult{}, err
	}
	scratch := current.Clone()

	result := ExecResult{Operation: plan.Operation}
	var change mutation
	switch s := statement.(type) {
	case sql.InsertStatement:
		row, err := insertRow(scratch, s)
		if err != nil {
			return ExecResult{}, err
		}
		result.RowCount = 1
		change = mutation{Operation: InsertOperation, Row: row}
	case sql.UpdateStatement:
		updates, err := coerceUpdates(scratch, s.Updates)
		if err != nil {
			return ExecResult{}, err
		}
		count, err := updateRows(scratch, updates, s.Where)
		if err != nil {
			return ExecResult{}, err
		}
		result.RowCount = count
		change = mutation{Operation: UpdateOperation, Updates: updates, Where: s.Where}
	case sql.DeleteStatement:
		result.RowCount = deleteRows(scratch, s.Where)
		change = mutation{Operation: DeleteOperation, Where: s.Where}
	default:
		return ExecResult{}, fmt.Errorf("cannot execute %s statements", statement.Type())
	}

	change.Table = scratch.Key()
	change.Serial = scratch.Serial
	if tx != nil {
		tx.stage(scratch, change)
		return result, nil
	}
	if err := model.ReplaceTable(scratch); err != nil {
		return ExecResult{}, err
	}
	return result, nil
}

func targetOf(statement sql.Statement) sql.TableName {
	switch s := statement.(type) {
	case sql.InsertStatement:
		return s.Table
	case sql.UpdateStatement:
		return s.Table
	case sql.DeleteStatement:
		return s.Table
	case sql.SelectStatement:
		return s.Table
	default:
		return sql.TableName{}
	}
}

func executeSelect(statement sql.SelectStatement, catalog Catalog) (ExecResult, error) {
	src, err := resolveSource(statement.Table, catalog, 0)
	if err != nil {
		return ExecResult{}, err
	}

	rows := src.table.Rows
	columns := src.table.ColumnNames()
	for _, view := range src.views {
		rows, columns = selectRows(rows, columns, view)
	}
	rows, columns = selectRows(rows, columns, statement)

	return ExecResult{
		Operation: SelectOperation,
		Columns:   columns,
		Rows:      rows,
		RowCount:  len(rows),
	}, nil
}

// selectRows filters rows by the statement's condition and projects them
// onto its column list. Column names resolve case-insensitively against
// available.
func selectRows(rows []core.Row, available []string, statement sql.SelectStatement) ([]core.Row, []string) {
	columns := available
	if len(statement.Columns) > 0 {
		columns = make([]string, len(statement.Columns))
		for i, name := range statement.Columns {
			columns[i] = canonicalName(available, name)
		}
	}
	where := canonicalCondition(available, statement.Where)

	selected := make([]core.Row, 0, len(rows))
	for _, row := range rows {
		if !matches(row, where) {
			continue
		}
		projected := make(core.Row, len(columns))
		for _, column := range columns {
			projected[column] = row.Get(column)
		}
		selected = append(selected, projected)
	}
	return selected, columns
}

func canonicalName(columns []string, name string) string {
	for _, column := range columns {
		if strings.EqualFold(column, name) {
			return column
		}
	}
	return name
}

func canonicalCondition(columns []string, where *sql.Condition) *sql.Condition {
	if where == nil {
		return nil
	}
	condition := *where
	condition.Column = canonicalName(columns, where.Column)
	return &condition
}

// matches evaluates the WHERE condition against one row. NULL never
// satisfies a comparison; only IS [NOT] NULL inspects it.
func matches(row core.Row, where *sql.Condition) bool {
	if where == nil {
		return true
	}
	value := row.Get(where.Column)

	switch where.Operator {
	case sql.IsNullOperator:
		return value.IsNull()
	case sql.IsNotNullOperator:
		return !value.IsNull()
	}
	if value.IsNull() || where.Value.IsNull() {
		return false
	}

	switch where.Operator {
	case sql.EqualsOperator:
		return core.Compare(value, where.Value) == 0
	case sql.NotEqualsOperator:
		return core.Compare(value, where.Value) != 0
	case sql.LessThanOperator:
		return core.Compare(value, where.Value) < 0
	case sql.GreaterThanOperator:
		return core.Compare(value, where.Value) > 0
	case sql.LessThanOrEqualOperator:
		return core.Compare(value, where.Value) <= 0
	case sql.GreaterThanOrEqualOperator:
		return core.Compare(value, where.Value) >= 0
	case sql.LikeOperator:
		return matchLike(value.String(), where.Value.Text)
	default:
		return false
	}
}

// matchLike performs case-insensitive LIKE matching: % matches any run of
// characters, _ matches exactly one.
func matchLike(value, pattern string) bool {
	v := []rune(strings.ToLower(value))
	p := []rune(strings.ToLower(pattern))

	// last % seen in the pattern and the value position it was tried at
	star, mark := -1, 0
	i, j := 0, 0
	for i < len(v) {
		switch {
		case j < len(p) && (p[j] == '_' || p[j] == v[i]):
			i++
			j++
		case j < len(p) && p[j] == '%':
			star, mark = j, i
			j++
		case star >= 0:
			mark++
			i = mark
			j = star + 1
		default:
			return false
		}
	}
	for j < len(p) && p[j] == '%' {
		j++
	}
	return j == len(p)
}

// insertRow builds a row from the statement, appends it to table and
// returns it. Serial counters on table advance as values are handed out.
func insertRow(table *core.Table, statement sql.InsertStatement) (core.Row, error) {
	columns := statement.Columns
	if len(columns) == 0 {
		if len(statement.Values) != len(table.Columns) {
			return nil, &ExecError{
				Kind:    ArityMismatch,
				Table:   table.Key().String(),
				Message: fmt.Sprintf("INSERT into %s expects %d values, got %d", table.Key(), len(table.Columns), len(statement.Values)),
			}
		}
		columns = table.ColumnNames()
	}

	provided := make(map[string]core.Value, len(columns))
	for i, name := range columns {
		column, ok := table.Column(name)
		if !ok {
			return nil, &PlanError{Kind: UnknownColumn, Table: table.Key().String(), Column: name}
		}
		if _, dup := provided[column.Name]; dup {
			return nil, &ExecError{
				Kind:    DuplicateObject,
				Table:   table.Key().String(),
				Column:  column.Name,
				Message: fmt.Sprintf("column %s specified more than once", column.Name),
			}
		}
		provided[column.Name] = statement.Values[i]
	}

	row := make(core.Row, len(table.Columns))
	for _, column := range table.Columns {
		value, given := provided[column.Name]
		var err error
		switch {
		case given && !(value.IsNull() && column.Kind == core.SerialKind):
			value, err = coerce(table, column, value)
			if err != nil {
				return nil, err
			}
			if column.Kind == core.SerialKind {
				table.Serial = max(table.Serial, int64(value.Number))
			}
		case column.Kind == core.SerialKind:
			table.Serial++
			value = core.Int(table.Serial)
		case column.Default != nil:
			value, err = evaluateDefault(table, column, *column.Default)
			if err != nil {
				return nil, err
			}
		default:
			value = core.Null()
		}
		if value.IsNull() && !column.Nullable {
			return nil, notNullViolation(table, column)
		}
		row[column.Name] = value
	}

	table.Rows = append(table.Rows, row)
	if err := checkUnique(table, []int{len(table.Rows) - 1}); err != nil {
		return nil, err
	}
	return row, nil
}

func coerceUpdates(table *core.Table, updates []sql.SetClause) ([]sql.SetClause, error) {
	coerced := make([]sql.SetClause, len(updates))
	for i, update := range updates {
		column, ok := table.Column(update.Column)
		if !ok {
			return nil, &PlanError{Kind: UnknownColumn, Table: table.Key().String(), Column: update.Column}
		}
		value, err := coerce(table, *column, update.Value)
		if err != nil {
			return nil, err
		}
		if value.IsNull() && !column.Nullable {
			return nil, notNullViolation(table, *column)
		}
		coerced[i] = sql.SetClause{Column: column.Name, Value: value}
	}
	return coerced, nil
}

// updateRows applies already coerced assignments to every matching row.
func updateRows(table *core.Table, updates []sql.SetClause, where *sql.Condition) (int, error) {
	where = canonicalCondition(table.ColumnNames(), where)
	var changed []int
	for i, row := range table.Rows {
		if !matches(row, where) {
			continue
		}
		updated := row.Clone()
		for _, update := range updates {
			updated[update.Column] = update.Value
		}
		table.Rows[i] = updated
		changed = append(changed, i)
	}
	for _, update := range updates {
		if column, _ := table.Column(update.Column); column.Kind == core.SerialKind && len(changed) > 0 {
			table.Serial = max(table.Serial, int64(update.Value.Number))
		}
	}
	if err := checkUnique(table, changed); err != nil {
		return 0, err
	}
	return len(changed), nil
}

func deleteRows(table *core.Table, where *sql.Condition) int {
	where = canonicalCondition(table.ColumnNames(), where)
	kept := table.Rows[:0:0]
	for _, row := range table.Rows {
		if !matches(row, where) {
			kept = append(kept, row)
		}
	}
	deleted := len(table.Rows) - len(kept)
	table.Rows = kept
	return deleted
}

// checkUnique verifies the rows at the given positions against every other
// row for each unique index. Keys containing NULL never conflict.
func checkUnique(table *core.Table, positions []int) error {
	if len(positions) == 0 {
		return nil
	}
	for _, index := range op.NewTableOp(table).UniqueIndexes() {
		for _, position := range positions {
			key, ok := indexKey(table.Rows[position], index)
			if !ok {
				continue
			}
			for other, row := range table.Rows {
				if other == position {
					continue
				}
				otherKey, ok := indexKey(row, index)
				if ok && sameKey(key, otherKey) {
					return &ExecError{
						Kind:    UniqueViolation,
						Table:   table.Key().String(),
						Column:  strings.Join(index.Columns, ", "),
						Message: fmt.Sprintf("duplicate key value violates unique index %s on %s (%s)", index.Name, table.Key(), formatKey(key)),
					}
				}
			}
		}
	}
	return nil
}

func indexKey(row core.Row, index core.Index) ([]core.Value, bool) {
	key := make([]core.Value, len(index.Columns))
	for i, column := range index.Columns {
		value := rowValue(row, column)
		if value.IsNull() {
			return nil, false
		}
		key[i] = value
	}
	return key, true
}

func rowValue(row core.Row, column string) core.Value {
	if value, ok := row[column]; ok {
		return value
	}
	for name, value := range row {
		if strings.EqualFold(name, column) {
			return value
		}
	}
	return core.Null()
}

func sameKey(a, b []core.Value) bool {
	for i := range a {
		if core.Compare(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

func formatKey(key []core.Value) string {
	parts := make([]string, len(key))
	for i, value := range key {
		parts[i] = value.SQL()
	}
	return strings.Join(parts, ", ")
}

func notNullViolation(table *core.Table, column core.Column) *ExecError {
	return &ExecError{
		Kind:    NotNullViolation,
		Table:   table.Key().String(),
		Column:  column.Name,
		Message: fmt.Sprintf("null value in column %s of %s violates not-null constraint", column.Name, table.Key()),
	}
}

func typeMismatch(table *core.Table, column core.Column, value core.Value) *ExecError {
	return &ExecError{
		Kind:    TypeMismatch,
		Table:   table.Key().String(),
		Column:  column.Name,
		Message: fmt.Sprintf("invalid value %s for column %s of type %s", value.SQL(), column.Name, column.Type),
	}
}

// coerce converts a literal to the representation stored for the column's
// kind.
func coerce(table *core.Table, column core.Column, value core.Value) (core.Value, error) {
	if value.IsNull() {
		return value, nil
	}

	switch {
	case column.Kind.IsInteger():
		if value.Kind == core.BoolValue {
			return core.Value{}, typeMismatch(table, column, value)
		}
		n, ok := value.AsNumber()
		if !ok || n != math.Trunc(n) {
			return core.Value{}, typeMismatch(table, column, value)
		}
		return core.Number(n), nil
	case column.Kind == core.DecimalKind:
		if value.Kind == core.BoolValue {
			return core.Value{}, typeMismatch(table, column, value)
		}
		n, ok := value.AsNumber()
		if !ok {
			return core.Value{}, typeMismatch(table, column, value)
		}
		return core.Number(n), nil
	case column.Kind.IsText():
		text := value.String()
		if limit, ok := typeLength(column.Type); ok && utf8.RuneCountInString(text) > limit {
			return core.Value{}, &ExecError{
				Kind:    TypeMismatch,
				Table:   table.Key().String(),
				Column:  column.Name,
				Message: fmt.Sprintf("value too long for column %s of type %s", column.Name, column.Type),
			}
		}
		return core.Text(text), nil
	case column.Kind == core.BooleanKind:
		switch value.Kind {
		case core.BoolValue:
			return value, nil
		case core.NumberValue:
			if value.Number == 0 || value.Number == 1 {
				return core.Bool(value.Number == 1), nil
			}
		case core.TextValue:
			switch strings.ToLower(strings.TrimSpace(value.Text)) {
			case "true", "t", "yes", "y", "1":
				return core.Bool(true), nil
			case "false", "f", "no", "n", "0":
				return core.Bool(false), nil
			}
		}
		return core.Value{}, typeMismatch(table, column, value)
	case column.Kind == core.TimestampKind:
		t, ok := parseTime(value)
		if !ok {
			return core.Value{}, typeMismatch(table, column, value)
		}
		return core.Text(t.UTC().Format(timestampLayout)), nil
	case column.Kind == core.DateKind:
		t, ok := parseTime(value)
		if !ok {
			return core.Value{}, typeMismatch(table, column, value)
		}
		return core.Text(t.Format(dateLayout)), nil
	default:
		return value, nil
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	dateLayout,
}

func parseTime(value core.Value) (time.Time, bool) {
	if value.Kind != core.TextValue {
		return time.Time{}, false
	}
	text := strings.TrimSpace(value.Text)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// typeLength extracts n from declared types such as VARCHAR(n).
func typeLength(typeName string) (int, bool) {
	open := strings.IndexByte(typeName, '(')
	if open < 0 {
		return 0, false
	}
	end := strings.IndexAny(typeName[open:], ",)")
	if end < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(typeName[open+1 : open+end]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// evaluateDefault turns a stored default expression into a value.
func evaluateDefault(table *core.Table, column core.Column, expression string) (core.Value, error) {
	now := timeNow()
	var value core.Value
	switch strings.ToUpper(strings.TrimSpace(expression)) {
	case "CURRENT_TIMESTAMP", "CURRENT_TIMESTAMP()", "NOW()", "LOCALTIMESTAMP":
		value = core.Text(now.Format(timestampLayout))
	case "CURRENT_DATE":
		value = core.Text(now.Format(dateLayout))
	case "GEN_RANDOM_UUID()", "UUID()":
		value = core.Text(uuid.NewString())
	default:
		literal, err := sql.ParseLiteral(expression)
		if err != nil {
			return core.Value{}, &ExecError{
				Kind:    TypeMismatch,
				Table:   table.Key().String(),
				Column:  column.Name,
				Message: fmt.Sprintf("unsupported default %s for column %s", expression, column.Name),
			}
		}
		value = literal
	}
	return coerce(table, column, value)
}
