// Package core provides the Schema Model types used throughout SchemaDB.
//
// The package defines the in-memory representation of a simulated
// database: Model, Table, Column, Index, View, Row and Value, plus the
// derived Relationship type and the Identity used for snapshots.
//
// # Column Kinds
//
// A column keeps its declared type text verbatim (for lossless DDL
// round-trips) and a Kind used for value coercion:
//   - SmallIntKind, IntegerKind, BigIntKind: whole numbers
//   - DecimalKind: numbers with a fractional part
//   - TextKind, VarcharKind: strings
//   - BooleanKind: true/false
//   - TimestampKind, DateKind: date/time values stored as text
//   - SerialKind: auto-incrementing integers
//
// # Table Definition
//
//	table := &core.Table{
//	    Name: "users",
//	    Columns: []core.Column{
//	        {Name: "id", Type: "SERIAL", Kind: core.SerialKind, PrimaryKey: true},
//	        core.NewColumn("name", "TEXT"),
//	    },
//	}
//	model := core.NewModel()
//	_ = model.CreateTable(table)
package core
