// Package SchemaDB is an embedded SQL emulation engine for simulated
// database components.
//
// Each component owns an in-memory Schema Model of tables, columns,
// indexes, views and rows. SQL runs against it through the lexer, a
// single-index planner and the executor, with BEGIN/COMMIT/ROLLBACK
// buffering writes until commit. DDL scripts import into a model and
// models export as SQL, Mermaid ER diagrams, DBML or Markdown.
//
// # Quick Start
//
//	registry := SchemaDB.NewRegistry(SchemaDB.Options{})
//	id, _ := registry.Create("", nil)
//
//	registry.Import(id, "CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT)")
//	registry.Run(id, "INSERT INTO users (name) VALUES ('Alice')")
//
//	response := registry.Run(id, "SELECT * FROM users WHERE id = 1")
//	fmt.Println(response.Rows, response.IndexesUsed)
//
// A single engine can also be used directly:
//
//	engine := db.NewEngine(nil, db.Config{})
//	result, _ := engine.Execute("SELECT * FROM users")
//	result.Display(os.Stdout)
//
// # Supported SQL
//
//   - CREATE TABLE, CREATE [UNIQUE] INDEX, DROP TABLE
//   - ALTER TABLE ... ADD [CONSTRAINT name] FOREIGN KEY
//   - INSERT, SELECT, UPDATE, DELETE
//   - WHERE with a single comparison, LIKE or IS [NOT] NULL
//   - Transactions: BEGIN, COMMIT, ROLLBACK
//
// # Snapshots
//
// Registry.Snapshot saves a component's model in an in-memory git history;
// Registry.Restore brings any saved snapshot back.
package SchemaDB
