package ddl

import (
	"errors"
	"fmt"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/op"
	"github.com/nickyhof/SchemaDB/sql"
)

var (
	ErrUnsupportedStatement = errors.New("unsupported statement in schema import")
	ErrUnknownTable         = errors.New("unknown table")
	ErrUnknownColumn        = errors.New("unknown column")
	ErrDuplicateIndex       = errors.New("duplicate index")
)

// ImportError is the failure of one statement of an imported script. The
// rest of the script is still imported.
type ImportError struct {
	Ordinal   int
	Line      int
	Statement string
	Err       error
}

func (e ImportError) Error() string {
	return fmt.Sprintf("statement %d (line %d): %v", e.Ordinal, e.Line, e.Err)
}

func (e ImportError) Unwrap() error {
	return e.Err
}

type ImportResult struct {
	Tables        []*core.Table
	Relationships []core.Relationship
	Errors        []ImportError
}

// OK reports whether every statement imported.
func (result ImportResult) OK() bool {
	return len(result.Errors) == 0
}

// Model places the imported tables in a new Schema Model.
func (result ImportResult) Model() (*core.Model, error) {
	model := core.NewModel()
	for _, table := range result.Tables {
		if err := model.CreateTable(table.Clone()); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// ImportSchema parses a DDL script of CREATE TABLE, CREATE INDEX and
// ALTER TABLE ... ADD FOREIGN KEY statements. Statements that fail are
// reported and skipped. Only new tables are allocated.
func ImportSchema(script string) ImportResult {
	var result ImportResult

	for _, statement := range SplitStatements(script) {
		if err := importStatement(&result, statement.Text); err != nil {
			result.Errors = append(result.Errors, ImportError{
				Ordinal:   statement.Ordinal,
				Line:      statement.Line,
				Statement: statement.Text,
				Err:       err,
			})
		}
	}

	result.Relationships = DeriveRelationships(result.Tables)
	return result
}

func importStatement(result *ImportResult, text string) error {
	parsed, err := sql.Parse(text)
	if err != nil {
		return err
	}

	switch statement := parsed.(type) {
	case sql.CreateTableStatement:
		table := statement.Definition()
		if findTable(result.Tables, table.Key()) != nil && statement.IfNotExists {
			return nil
		}
		// duplicates are kept for the validator to report
		result.Tables = append(result.Tables, table)
		return nil
	case sql.CreateIndexStatement:
		table := findTable(result.Tables, statement.Table.Key())
		if table == nil {
			return fmt.Errorf("%w %s", ErrUnknownTable, statement.Table.Key())
		}
		columns, err := resolveColumns(table, statement.Columns)
		if err != nil {
			return err
		}
		for _, existing := range table.Indexes {
			if existing.Name == statement.Name {
				if statement.IfNotExists {
					return nil
				}
				return fmt.Errorf("%w %s on %s", ErrDuplicateIndex, statement.Name, table.Key())
			}
		}
		return table.AddIndex(core.Index{Name: statement.Name, Columns: columns, Unique: statement.Unique})
	case sql.AlterTableStatement:
		table := findTable(result.Tables, statement.Table.Key())
		if table == nil {
			return fmt.Errorf("%w %s", ErrUnknownTable, statement.Table.Key())
		}
		if _, err := resolveColumns(table, statement.Constraint.Columns); err != nil {
			return err
		}
		op.NewTableOp(table).AddConstraint(statement.Constraint)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedStatement, parsed.Type())
	}
}

func resolveColumns(table *core.Table, names []string) ([]string, error) {
	columns := make([]string, len(names))
	for i, name := range names {
		column, ok := table.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w %s on %s", ErrUnknownColumn, name, table.Key())
		}
		columns[i] = column.Name
	}
	return columns, nil
}
