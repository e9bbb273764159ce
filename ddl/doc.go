// Package ddl imports Schema Models from DDL scripts and exports them as
// SQL, Mermaid ER diagrams, DBML and Markdown documentation.
//
// Importing never touches an existing model; it returns new tables plus
// the statements that failed:
//
//	result := ddl.ImportSchema(script)
//	for _, err := range result.Errors {
//	    fmt.Println(err)
//	}
//	fmt.Println(ddl.ExportSQL(result.Tables, result.Relationships))
//
// Every exporter works on the union of the relationships it is given and
// those derived from the tables' foreign key constraints, deduplicated,
// given ones first.
package ddl
