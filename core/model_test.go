package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersTable() *Table {
	return &Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: "SERIAL", PrimaryKey: true, Nullable: true},
			NewColumn("name", "VARCHAR(100)"),
		},
	}
}

func TestParseColumnKind(t *testing.T) {
	tests := []struct {
		typeName string
		expected ColumnKind
	}{
		{"INT", IntegerKind},
		{"integer", IntegerKind},
		{"BIGINT", BigIntKind},
		{"smallint", SmallIntKind},
		{"DECIMAL(10,2)", DecimalKind},
		{"double precision", DecimalKind},
		{"TEXT", TextKind},
		{"VARCHAR(255)", VarcharKind},
		{"character varying(20)", VarcharKind},
		{"BOOLEAN", BooleanKind},
		{"TIMESTAMP WITH TIME ZONE", TimestampKind},
		{"DATE", DateKind},
		{"BIGSERIAL", SerialKind},
		{"GEOMETRY", UnknownKind},
	}

	for _, test := range tests {
		t.Run(test.typeName, func(t *testing.T) {
			assert.Equal(t, test.expected, ParseColumnKind(test.typeName))
		})
	}
}

func TestCreateTableNormalizes(t *testing.T) {
	model := NewModel()
	require.NoError(t, model.CreateTable(usersTable()))

	table, ok := model.Table("", "USERS")
	require.True(t, ok)
	assert.Equal(t, DefaultSchema, table.Schema)
	assert.False(t, table.Columns[0].Nullable, "primary key columns are never nullable")
	assert.Equal(t, SerialKind, table.Columns[0].Kind)
	assert.Equal(t, []string{"id"}, table.PrimaryKey())
}

func TestCreateTableDuplicate(t *testing.T) {
	model := NewModel()
	require.NoError(t, model.CreateTable(usersTable()))

	err := model.CreateTable(usersTable())
	assert.ErrorIs(t, err, ErrTableExists)

	other := usersTable()
	other.Schema = "audit"
	assert.NoError(t, model.CreateTable(other), "same name in another schema is a different table")
}

func TestDropTable(t *testing.T) {
	model := NewModel()
	require.NoError(t, model.CreateTable(usersTable()))
	require.NoError(t, model.DropTable("public", "users"))
	assert.Empty(t, model.Tables)
	assert.ErrorIs(t, model.DropTable("public", "users"), ErrTableNotFound)
}

func TestCloneIsDeep(t *testing.T) {
	model := NewModel()
	table := usersTable()
	table.Rows = []Row{{"id": Int(1), "name": Text("a")}}
	require.NoError(t, model.CreateTable(table))

	clone := model.Clone()
	clone.Tables[0].Rows[0]["name"] = Text("changed")
	clone.Tables[0].Columns[1].Name = "renamed"

	assert.Equal(t, "a", model.Tables[0].Rows[0]["name"].Text)
	assert.Equal(t, "name", model.Tables[0].Columns[1].Name)
}

func TestAddIndex(t *testing.T) {
	table := usersTable()
	table.Normalize()

	require.NoError(t, table.AddIndex(Index{Name: "idx_name", Columns: []string{"name"}}))
	assert.Equal(t, "users", table.Indexes[0].Table)
	assert.Error(t, table.AddIndex(Index{Name: "idx_name", Columns: []string{"name"}}))
	assert.Error(t, table.AddIndex(Index{Name: "idx_missing", Columns: []string{"missing"}}))
}

func TestValueCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(Int(2), Int(10)))
	assert.Equal(t, 0, Compare(Int(5), Text("5")))
	assert.Equal(t, 1, Compare(Text("b"), Text("a")))
	assert.Equal(t, -1, Compare(Bool(false), Bool(true)))
}

func TestValueJSON(t *testing.T) {
	row := Row{"id": Int(1), "name": Text("a"), "active": Bool(true), "note": Null()}
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"a","active":true,"note":null}`, string(data))

	var decoded Row
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded["id"].Equal(Int(1)))
	assert.True(t, decoded["note"].IsNull())
}

func TestValueSQL(t *testing.T) {
	assert.Equal(t, "'it''s'", Text("it's").SQL())
	assert.Equal(t, "42", Int(42).SQL())
	assert.Equal(t, "TRUE", Bool(true).SQL())
	assert.Equal(t, "NULL", Null().SQL())
}
