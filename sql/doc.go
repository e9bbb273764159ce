// Package sql provides SQL lexing and parsing for SchemaDB.
//
// The lexer tokenizes statement text, tracking the line and column of
// every token. The parser turns one statement into a typed Statement
// value without touching any schema state.
//
// # Parser Usage
//
//	statement, err := sql.Parse("SELECT * FROM users WHERE id = 1")
//	if err != nil {
//	    var parseErr *sql.ParseError
//	    if errors.As(err, &parseErr) {
//	        fmt.Println(parseErr.Pos.Line, parseErr.Pos.Column)
//	    }
//	}
//
// # Supported Statements
//
//   - SelectStatement (single-comparison WHERE)
//   - InsertStatement, UpdateStatement, DeleteStatement
//   - CreateTableStatement, CreateIndexStatement, DropTableStatement
//   - AlterTableStatement (ADD FOREIGN KEY)
//   - BeginStatement, CommitStatement, RollbackStatement
//
// Constraints are stored on tables as text; ParseConstraint reads them back.
package sql
