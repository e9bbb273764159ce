// Package db provides the SQL execution engine for SchemaDB.
//
// The Engine type is the main entry point for executing SQL statements
// against one Schema Model. It parses SQL, plans the statement, executes
// it and returns results.
//
// # Engine Usage
//
//	engine := db.NewEngine(model, db.Config{Logger: logger})
//	result, err := engine.Execute("SELECT * FROM users WHERE email LIKE 'a%'")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result.Display(os.Stdout)
//
// Run wraps Execute for hosts that want a plain value back:
//
//	response := engine.Run("INSERT INTO users (email) VALUES ('a@example.com')")
//	fmt.Println(response.Success, response.RowCount, response.IndexesUsed)
//
// # Planning
//
// Plan picks at most one index per statement: the first effective index
// whose leading column is the WHERE column, when the operator can use it.
// Estimated rows and cost are for display only.
//
// # Transactions
//
// BEGIN opens a single transaction per engine. Writes inside it land on
// working copies of the affected tables and are visible to later SELECTs on
// the same engine. COMMIT replays them in order on the base model; ROLLBACK
// discards them. DDL is rejected while a transaction is open.
//
// # Result Types
//
// There are two result types:
//   - QueryResult: Returned by SELECT statements
//   - CommitResult: Returned by INSERT, UPDATE, DELETE, DDL and transaction control
package db
