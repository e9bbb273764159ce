package db

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/op"
	"github.com/nickyhof/SchemaDB/sql"
)

// Config configures an Engine.
type Config struct {
	// Logger receives plan and transaction events at debug level.
	// Nil discards them.
	Logger *slog.Logger
}

// Engine runs SQL against one Schema Model. It is synchronous and does no
// locking; callers serialize access to a given engine.
type Engine struct {
	Model *core.Model

	tx     *Transaction
	logger *slog.Logger
}

func NewEngine(model *core.Model, cfg Config) *Engine {
	if model == nil {
		model = core.NewModel()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{Model: model, logger: logger}
}

// InTransaction reports whether BEGIN has been issued without a matching
// COMMIT or ROLLBACK.
func (engine *Engine) InTransaction() bool {
	return engine.tx != nil
}

// Transaction returns the open transaction, or nil.
func (engine *Engine) Transaction() *Transaction {
	return engine.tx
}

func (engine *Engine) Execute(query string) (Result, error) {
	statement, err := sql.Parse(query)
	if err != nil {
		return nil, err
	}
	return engine.ExecuteStatement(statement)
}

func (engine *Engine) ExecuteStatement(statement sql.Statement) (Result, error) {
	switch statement.Type() {
	case sql.SelectStatementType, sql.InsertStatementType, sql.UpdateStatementType, sql.DeleteStatementType:
		return engine.executeRowStatement(statement)
	case sql.CreateTableStatementType:
		return engine.executeCreateTableStatement(statement.(sql.CreateTableStatement))
	case sql.CreateIndexStatementType:
		return engine.executeCreateIndexStatement(statement.(sql.CreateIndexStatement))
	case sql.AlterTableStatementType:
		return engine.executeAlterTableStatement(statement.(sql.AlterTableStatement))
	case sql.DropTableStatementType:
		return engine.executeDropTableStatement(statement.(sql.DropTableStatement))
	case sql.BeginStatementType:
		return engine.executeBeginStatement()
	case sql.CommitStatementType:
		return engine.executeCommitStatement()
	case sql.RollbackStatementType:
		return engine.executeRollbackStatement()
	default:
		return nil, fmt.Errorf("unsupported statement type: %v", statement.Type())
	}
}

// Explain plans a row statement without executing it.
func (engine *Engine) Explain(query string) (QueryPlan, error) {
	statement, err := sql.Parse(query)
	if err != nil {
		return QueryPlan{}, err
	}
	return Plan(statement, engine.catalog())
}

func (engine *Engine) catalog() Catalog {
	if engine.tx != nil {
		return engine.tx.Catalog(engine.Model)
	}
	return engine.Model
}

func (engine *Engine) executeRowStatement(statement sql.Statement) (Result, error) {
	startTime := time.Now()

	plan, err := Plan(statement, engine.catalog())
	if err != nil {
		return nil, err
	}
	engine.logger.Debug("query planned",
		"operation", plan.Operation.String(),
		"table", core.NewTableKey(plan.Schema, plan.Table).String(),
		"access", plan.AccessPath.String(),
		"index", plan.IndexUsed,
		"rows", plan.EstimatedRows)

	executed, err := Execute(plan, statement, engine.Model, engine.tx)
	if err != nil {
		return nil, err
	}

	if plan.Operation == SelectOperation {
		data := make([][]core.Value, len(executed.Rows))
		for i, row := range executed.Rows {
			values := make([]core.Value, len(executed.Columns))
			for j, column := range executed.Columns {
				values[j] = row.Get(column)
			}
			data[i] = values
		}
		return QueryResult{
			Columns:          executed.Columns,
			Data:             data,
			RecordsRead:      executed.RowCount,
			Plan:             plan,
			ExecutionTimeSec: time.Since(startTime).Seconds(),
		}, nil
	}

	result := CommitResult{Plan: &plan}
	switch plan.Operation {
	case InsertOperation:
		result.RecordsWritten = executed.RowCount
	case UpdateOperation:
		result.RecordsUpdated = executed.RowCount
	case DeleteOperation:
		result.RecordsDeleted = executed.RowCount
	}
	if engine.tx != nil {
		result.TransactionID = engine.tx.ID
		result.Pending = engine.tx.Pending()
	}
	result.ExecutionTimeSec = time.Since(startTime).Seconds()
	return result, nil
}

func (engine *Engine) checkNoTransaction() error {
	if engine.tx != nil {
		return &TxError{Kind: DDLInTransaction}
	}
	return nil
}

func (engine *Engine) executeCreateTableStatement(statement sql.CreateTableStatement) (Result, error) {
	startTime := time.Now()
	if err := engine.checkNoTransaction(); err != nil {
		return nil, err
	}

	key := statement.Table.Key()
	if _, exists := engine.Model.Table(key.Schema, key.Name); exists && statement.IfNotExists {
		return CommitResult{Status: "table exists, skipped", ExecutionTimeSec: time.Since(startTime).Seconds()}, nil
	}

	if _, err := op.NewSchemaOp(engine.Model).CreateTable(statement.Definition()); err != nil {
		if errors.Is(err, core.ErrTableExists) {
			return nil, &ExecError{Kind: DuplicateObject, Table: key.String(), Message: err.Error()}
		}
		return nil, err
	}
	engine.logger.Debug("table created", "table", key.String())

	return CommitResult{
		TablesCreated:    1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeCreateIndexStatement(statement sql.CreateIndexStatement) (Result, error) {
	startTime := time.Now()
	if err := engine.checkNoTransaction(); err != nil {
		return nil, err
	}

	table, err := resolveTarget(statement.Table, engine.Model)
	if err != nil {
		return nil, err
	}
	columns := make([]string, len(statement.Columns))
	for i, name := range statement.Columns {
		column, ok := table.Column(name)
		if !ok {
			return nil, &PlanError{Kind: UnknownColumn, Table: table.Key().String(), Column: name}
		}
		columns[i] = column.Name
	}

	for _, index := range engine.Model.Indexes() {
		if index.Schema == table.Schema && index.Name == statement.Name {
			if statement.IfNotExists {
				return CommitResult{Status: "index exists, skipped", ExecutionTimeSec: time.Since(startTime).Seconds()}, nil
			}
			return nil, &ExecError{
				Kind:    DuplicateObject,
				Table:   table.Key().String(),
				Message: fmt.Sprintf("index %s already exists", statement.Name),
			}
		}
	}

	scratch := table.Clone()
	scratch.Indexes = append(scratch.Indexes, core.Index{
		Name:    statement.Name,
		Schema:  scratch.Schema,
		Table:   scratch.Name,
		Columns: columns,
		Unique:  statement.Unique,
	})
	if statement.Unique {
		positions := make([]int, len(scratch.Rows))
		for i := range positions {
			positions[i] = i
		}
		if err := checkUnique(scratch, positions); err != nil {
			return nil, err
		}
	}
	if err := engine.Model.ReplaceTable(scratch); err != nil {
		return nil, err
	}
	engine.logger.Debug("index created", "index", statement.Name, "table", scratch.Key().String())

	return CommitResult{
		IndexesCreated:   1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeAlterTableStatement(statement sql.AlterTableStatement) (Result, error) {
	startTime := time.Now()
	if err := engine.checkNoTransaction(); err != nil {
		return nil, err
	}

	table, err := resolveTarget(statement.Table, engine.Model)
	if err != nil {
		return nil, err
	}
	constraint := statement.Constraint
	for _, column := range constraint.Columns {
		if err := checkColumn(table, column); err != nil {
			return nil, err
		}
	}
	target := constraint.RefKey(table.Key())
	referenced, ok := engine.Model.Table(target.Schema, target.Name)
	if !ok {
		return nil, &PlanError{Kind: UnknownTable, Table: target.String()}
	}
	for _, column := range constraint.RefColumns {
		if err := checkColumn(referenced, column); err != nil {
			return nil, err
		}
	}

	op.NewTableOp(table).AddConstraint(constraint)
	engine.logger.Debug("constraint added", "table", table.Key().String(), "constraint", constraint.String())

	return CommitResult{
		ConstraintsAdded: 1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeDropTableStatement(statement sql.DropTableStatement) (Result, error) {
	startTime := time.Now()
	if err := engine.checkNoTransaction(); err != nil {
		return nil, err
	}

	key := statement.Table.Key()
	if err := op.NewSchemaOp(engine.Model).DropTable(key.Schema, key.Name); err != nil {
		if !errors.Is(err, core.ErrTableNotFound) {
			return nil, err
		}
		if statement.IfExists {
			return CommitResult{Status: "table missing, skipped", ExecutionTimeSec: time.Since(startTime).Seconds()}, nil
		}
		return nil, &PlanError{Kind: UnknownTable, Table: key.String()}
	}
	engine.logger.Debug("table dropped", "table", key.String())

	return CommitResult{
		TablesDeleted:    1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeBeginStatement() (Result, error) {
	startTime := time.Now()
	if engine.tx != nil {
		return nil, &TxError{Kind: AlreadyOpen}
	}

	engine.tx = newTransaction()
	engine.logger.Debug("transaction started", "transaction", engine.tx.ID)

	return CommitResult{
		TransactionID:    engine.tx.ID,
		Status:           "BEGIN",
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeCommitStatement() (Result, error) {
	startTime := time.Now()
	tx := engine.tx
	if tx == nil {
		return nil, &TxError{Kind: NoActiveTransaction}
	}

	// the transaction ends whether or not the replay succeeds
	engine.tx = nil
	if err := tx.commit(engine.Model); err != nil {
		tx.rollback(engine.Model)
		engine.logger.Debug("transaction commit failed", "transaction", tx.ID, "error", err)
		return nil, fmt.Errorf("commit %s: %w", tx.ID, err)
	}
	engine.logger.Debug("transaction committed", "transaction", tx.ID, "mutations", tx.Pending())

	return CommitResult{
		TransactionID:    tx.ID,
		Status:           "COMMIT",
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeRollbackStatement() (Result, error) {
	startTime := time.Now()
	tx := engine.tx
	if tx == nil {
		return nil, &TxError{Kind: NoActiveTransaction}
	}

	engine.tx = nil
	tx.rollback(engine.Model)
	engine.logger.Debug("transaction rolled back", "transaction", tx.ID, "discarded", tx.Pending())

	return CommitResult{
		TransactionID:    tx.ID,
		Status:           "ROLLBACK",
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

// InsertRow adds one row from a column/value map, the host's manual insert.
// It goes through the same checks as INSERT and honors an open transaction.
func (engine *Engine) InsertRow(schema, tableName string, values map[string]core.Value) error {
	table, ok := engine.catalog().Table(schema, tableName)
	if !ok {
		return &PlanError{Kind: UnknownTable, Table: core.NewTableKey(schema, tableName).String()}
	}
	if len(values) == 0 {
		return fmt.Errorf("insert into %s: no values", table.Key())
	}

	statement := sql.InsertStatement{Table: sql.TableName{Schema: table.Schema, Name: table.Name}}
	seen := 0
	for _, column := range table.Columns {
		for name, value := range values {
			if name == column.Name || (!hasExact(values, column.Name) && strings.EqualFold(name, column.Name)) {
				statement.Columns = append(statement.Columns, column.Name)
				statement.Values = append(statement.Values, value)
				seen++
				break
			}
		}
	}
	if seen != len(values) {
		for name := range values {
			if !table.HasColumn(name) {
				return &PlanError{Kind: UnknownColumn, Table: table.Key().String(), Column: name}
			}
		}
	}

	_, err := engine.ExecuteStatement(statement)
	return err
}

func hasExact(values map[string]core.Value, name string) bool {
	_, ok := values[name]
	return ok
}

// Response is the host-facing outcome of Run. Errors are reported in the
// value, never returned.
type Response struct {
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
	Columns     []string   `json:"columns,omitempty"`
	Rows        []core.Row `json:"rows,omitempty"`
	RowCount    int        `json:"rowCount"`
	QueryPlan   *QueryPlan `json:"queryPlan,omitempty"`
	IndexesUsed []string   `json:"indexesUsed,omitempty"`
	Transaction string     `json:"transaction,omitempty"`
	Result      Result     `json:"-"`
}

// Run executes one statement and folds the outcome into a Response.
func (engine *Engine) Run(query string) Response {
	result, err := engine.Execute(query)
	if err != nil {
		return Response{Error: err.Error()}
	}

	response := Response{Success: true, Result: result}
	var plan *QueryPlan
	switch r := result.(type) {
	case QueryResult:
		response.Columns = r.Columns
		response.Rows = r.Rows()
		response.RowCount = r.RecordsRead
		plan = &r.Plan
	case CommitResult:
		response.RowCount = r.RecordsWritten + r.RecordsUpdated + r.RecordsDeleted
		response.Transaction = r.TransactionID
		plan = r.Plan
	}
	if plan != nil {
		response.QueryPlan = plan
		if plan.IndexUsed != "" {
			response.IndexesUsed = []string{plan.IndexUsed}
		}
	}
	return response
}
