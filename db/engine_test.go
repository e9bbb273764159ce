package db

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/SchemaDB/core"
)

func TestEngineSelect(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	result, err := engine.Execute("SELECT * FROM users")
	require.NoError(t, err)

	qr := result.(QueryResult)
	assert.Equal(t, QueryResultType, qr.Type())
	assert.Equal(t, 3, qr.RecordsRead)
	assert.Equal(t, []string{"id", "email", "name", "age", "active", "created_at"}, qr.Columns)
}

func TestTransactionRollback(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)
	before := len(tableRows(t, engine, "users"))

	_, err := engine.Execute("BEGIN")
	require.NoError(t, err)
	assert.True(t, engine.InTransaction())

	_, err = engine.Execute("INSERT INTO users (email) VALUES ('dave@x.io')")
	require.NoError(t, err)
	_, err = engine.Execute("DELETE FROM users WHERE id = 1")
	require.NoError(t, err)

	// base table untouched until COMMIT
	assert.Len(t, tableRows(t, engine, "users"), before)

	// reads inside the transaction see its writes
	result, err := engine.Execute("SELECT * FROM users")
	require.NoError(t, err)
	assert.Equal(t, before, result.(QueryResult).RecordsRead)
	result, err = engine.Execute("SELECT * FROM users WHERE email = 'dave@x.io'")
	require.NoError(t, err)
	assert.Equal(t, 1, result.(QueryResult).RecordsRead)

	_, err = engine.Execute("ROLLBACK")
	require.NoError(t, err)
	assert.False(t, engine.InTransaction())
	assert.Len(t, tableRows(t, engine, "users"), before)

	// serial values handed out inside the transaction are not reissued
	_, err = engine.Execute("INSERT INTO users (email) VALUES ('erin@x.io')")
	require.NoError(t, err)
	rows := tableRows(t, engine, "users")
	assert.Equal(t, core.Int(5), rows[len(rows)-1]["id"])
}

func TestTransactionCommit(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)
	before := len(tableRows(t, engine, "users"))

	for _, query := range []string{
		"BEGIN TRANSACTION",
		"INSERT INTO users (email, age) VALUES ('dave@x.io', 40)",
		"INSERT INTO users (email, age) VALUES ('erin@x.io', 41)",
		"UPDATE users SET age = 99 WHERE email = 'dave@x.io'",
		"INSERT INTO orders (user_id) VALUES (4)",
	} {
		_, err := engine.Execute(query)
		require.NoError(t, err, query)
	}
	assert.Equal(t, 4, engine.Transaction().Pending())

	result, err := engine.Execute("COMMIT")
	require.NoError(t, err)
	assert.Equal(t, "COMMIT", result.(CommitResult).Status)

	rows := tableRows(t, engine, "users")
	require.Len(t, rows, before+2)
	assert.Equal(t, core.Number(99), rows[3]["age"])
	assert.Equal(t, core.Int(5), rows[4]["id"])
	assert.Len(t, tableRows(t, engine, "orders"), 1)

	users, _ := engine.Model.Table("", "users")
	assert.Equal(t, int64(5), users.Serial)
}

func TestTransactionStatementFailureKeepsBuffer(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	_, err := engine.Execute("BEGIN")
	require.NoError(t, err)
	_, err = engine.Execute("INSERT INTO users (email) VALUES ('dave@x.io')")
	require.NoError(t, err)

	_, err = engine.Execute("INSERT INTO users (email) VALUES ('dave@x.io')")
	assert.ErrorIs(t, err, ErrConstraint)
	assert.Equal(t, 1, engine.Transaction().Pending())

	_, err = engine.Execute("COMMIT")
	require.NoError(t, err)
	assert.Len(t, tableRows(t, engine, "users"), 4)
}

func TestTransactionErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   []string
		query   string
		kind    TxErrorKind
		wantErr error
	}{
		{"commit while idle", nil, "COMMIT", NoActiveTransaction, ErrNoActiveTransaction},
		{"rollback while idle", nil, "ROLLBACK", NoActiveTransaction, ErrNoActiveTransaction},
		{"nested begin", []string{"BEGIN"}, "BEGIN", AlreadyOpen, ErrAlreadyOpen},
		{"create table in transaction", []string{"BEGIN"}, "CREATE TABLE t (id INT PRIMARY KEY)", DDLInTransaction, ErrDDLInTransaction},
		{"drop table in transaction", []string{"BEGIN"}, "DROP TABLE orders", DDLInTransaction, ErrDDLInTransaction},
		{"index in transaction", []string{"BEGIN"}, "CREATE INDEX idx_age ON users (age)", DDLInTransaction, ErrDDLInTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := setupTestEngine(t)
			for _, query := range tt.setup {
				_, err := engine.Execute(query)
				require.NoError(t, err)
			}

			_, err := engine.Execute(tt.query)
			var txErr *TxError
			require.ErrorAs(t, err, &txErr)
			assert.Equal(t, tt.kind, txErr.Kind)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateTableDDL(t *testing.T) {
	engine := setupTestEngine(t)

	result, err := engine.Execute("CREATE TABLE audit.events (id INT PRIMARY KEY, note TEXT)")
	require.NoError(t, err)
	assert.Equal(t, 1, result.(CommitResult).TablesCreated)
	_, ok := engine.Model.Table("audit", "events")
	assert.True(t, ok)

	_, err = engine.Execute("CREATE TABLE audit.events (id INT PRIMARY KEY)")
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, DuplicateObject, execErr.Kind)

	result, err = engine.Execute("CREATE TABLE IF NOT EXISTS audit.events (id INT PRIMARY KEY)")
	require.NoError(t, err)
	assert.Equal(t, 0, result.(CommitResult).TablesCreated)

	_, err = engine.Execute("DROP TABLE audit.events")
	require.NoError(t, err)
	_, err = engine.Execute("DROP TABLE audit.events")
	assert.ErrorIs(t, err, ErrUnknownTable)
	_, err = engine.Execute("DROP TABLE IF EXISTS audit.events")
	assert.NoError(t, err)
}

func TestCreateIndexDDL(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	_, err := engine.Execute("CREATE INDEX idx_users_age ON users (age)")
	require.NoError(t, err)
	users, _ := engine.Model.Table("", "users")
	require.Len(t, users.Indexes, 1)
	assert.Equal(t, core.Index{Name: "idx_users_age", Schema: "public", Table: "users", Columns: []string{"age"}}, users.Indexes[0])

	response := engine.Run("SELECT * FROM users WHERE age = 30")
	require.True(t, response.Success)
	assert.Equal(t, []string{"idx_users_age"}, response.IndexesUsed)

	_, err = engine.Execute("CREATE INDEX idx_users_age ON users (name)")
	assert.Error(t, err)
	_, err = engine.Execute("CREATE INDEX IF NOT EXISTS idx_users_age ON users (name)")
	assert.NoError(t, err)

	_, err = engine.Execute("INSERT INTO users (email, name) VALUES ('dup@x.io', 'Alice')")
	require.NoError(t, err)
	_, err = engine.Execute("CREATE UNIQUE INDEX idx_users_name ON users (name)")
	assert.ErrorIs(t, err, ErrConstraint)
	users, _ = engine.Model.Table("", "users")
	assert.Len(t, users.Indexes, 1)
}

func TestAlterTableAddForeignKey(t *testing.T) {
	engine := setupTestEngine(t)
	_, err := engine.Execute("CREATE TABLE reviews (id SERIAL PRIMARY KEY, order_id INT)")
	require.NoError(t, err)

	result, err := engine.Execute("ALTER TABLE reviews ADD CONSTRAINT fk_order FOREIGN KEY (order_id) REFERENCES orders (id) ON DELETE CASCADE")
	require.NoError(t, err)
	assert.Equal(t, 1, result.(CommitResult).ConstraintsAdded)

	reviews, _ := engine.Model.Table("", "reviews")
	assert.Equal(t, []string{"CONSTRAINT fk_order FOREIGN KEY (order_id) REFERENCES orders (id) ON DELETE CASCADE"}, reviews.Constraints)

	_, err = engine.Execute("ALTER TABLE reviews ADD FOREIGN KEY (order_id) REFERENCES missing (id)")
	assert.ErrorIs(t, err, ErrUnknownTable)
	_, err = engine.Execute("ALTER TABLE reviews ADD FOREIGN KEY (order_id) REFERENCES orders (nope)")
	assert.ErrorIs(t, err, ErrUnknownColumn)
	_, err = engine.Execute("ALTER TABLE reviews ADD FOREIGN KEY (nope) REFERENCES orders (id)")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestRun(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	response := engine.Run("SELECT email FROM users WHERE id = 2")
	require.True(t, response.Success)
	assert.Equal(t, 1, response.RowCount)
	assert.Equal(t, []core.Row{{"email": core.Text("bob@x.io")}}, response.Rows)
	require.NotNil(t, response.QueryPlan)
	assert.Equal(t, IndexScan, response.QueryPlan.AccessPath)
	assert.Equal(t, []string{"users_pkey"}, response.IndexesUsed)

	response = engine.Run("UPDATE users SET age = 1")
	require.True(t, response.Success)
	assert.Equal(t, 3, response.RowCount)
	assert.Empty(t, response.IndexesUsed)

	response = engine.Run("SELEC * FROM users")
	assert.False(t, response.Success)
	assert.Contains(t, response.Error, "parse error at line 1, column 1")
}

func TestExplain(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	plan, err := engine.Explain("DELETE FROM users WHERE id = 1")
	require.NoError(t, err)
	assert.Equal(t, DeleteOperation, plan.Operation)
	assert.Equal(t, IndexScan, plan.AccessPath)
	assert.Equal(t, "users_pkey", plan.IndexUsed)

	// nothing ran
	assert.Len(t, tableRows(t, engine, "users"), 3)

	_, err = engine.Explain("BEGIN")
	assert.Error(t, err)
}

func TestInsertRow(t *testing.T) {
	engine := setupTestEngine(t)

	require.NoError(t, engine.InsertRow("", "users", map[string]core.Value{
		"EMAIL": core.Text("host@x.io"),
		"age":   core.Text("33"),
	}))
	rows := tableRows(t, engine, "users")
	require.Len(t, rows, 1)
	assert.Equal(t, core.Number(33), rows[0]["age"])
	assert.Equal(t, core.Int(1), rows[0]["id"])

	err := engine.InsertRow("", "users", map[string]core.Value{"missing": core.Int(1)})
	assert.ErrorIs(t, err, ErrUnknownColumn)
	err = engine.InsertRow("", "nope", map[string]core.Value{"a": core.Int(1)})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestResultDisplay(t *testing.T) {
	engine := setupTestEngine(t)
	insertTestData(t, engine)

	result, err := engine.Execute("SELECT id, email FROM users WHERE id = 1")
	require.NoError(t, err)
	var out bytes.Buffer
	result.Display(&out)
	assert.Contains(t, out.String(), "alice@x.io")
	assert.Contains(t, out.String(), "1 rows")

	result, err = engine.Execute("DELETE FROM users WHERE age IS NULL")
	require.NoError(t, err)
	out.Reset()
	result.Display(&out)
	assert.Contains(t, out.String(), "1 record(s) deleted")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs float64
		want string
	}{
		{0.0001, "<1ms"},
		{0.005, "5.0ms"},
		{0.25, "250ms"},
		{2.5, "2.5s"},
		{42, "42s"},
		{120, "2m"},
		{125, "2m5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.secs))
	}
}
