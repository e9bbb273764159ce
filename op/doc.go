// Package op provides high-level operations over a SchemaDB Schema Model.
//
// The op package sits between the SQL engine (db/) and the model types
// (core/), and carries the operations the host performs on the model
// directly rather than through SQL.
//
// # SchemaOp
//
// SchemaOp wraps model-level operations:
//
//	schemaOp := op.NewSchemaOp(model)
//	schemaOp.CreateTable(table)                      // Add a table
//	schemaOp.RenameTable("public", "users", "people") // Rewrites foreign keys and views
//	schemaOp.RenameSchema("public", "crm")           // Moves tables, views and references
//	rels := schemaOp.Relationships()                 // Derived foreign keys
//
// # TableOp
//
// TableOp wraps table-level reads of constraint text and rows:
//
//	tableOp, err := op.GetTable(model, "public", "users")
//	indexes := tableOp.Indexes()       // Explicit, constraint-implied, then <table>_pkey
//	rels := tableOp.Relationships()    // Foreign keys declared on the table
//	for i, row := range tableOp.Scan() {
//	    fmt.Println(i, row)
//	}
package op
