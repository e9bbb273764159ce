package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/sql"
)

func newPlannerModel(t *testing.T, rows int) *core.Model {
	t.Helper()

	users := &core.Table{
		Name: "users",
		Columns: []core.Column{
			core.NewColumn("id", "SERIAL"),
			core.NewColumn("email", "VARCHAR(255)"),
			core.NewColumn("city", "TEXT"),
			core.NewColumn("age", "INT"),
		},
		Indexes:     []core.Index{{Name: "idx_users_city", Columns: []string{"city"}}},
		Constraints: []string{"UNIQUE (email)"},
	}
	users.Columns[0].PrimaryKey = true
	for i := 1; i <= rows; i++ {
		users.Rows = append(users.Rows, core.Row{
			"id":    core.Int(int64(i)),
			"email": core.Text(fmt.Sprintf("user%d@example.com", i)),
			"city":  core.Text(fmt.Sprintf("city%d", i%5)),
			"age":   core.Int(int64(20 + i%40)),
		})
	}

	model := core.NewModel()
	require.NoError(t, model.CreateTable(users))
	require.NoError(t, model.CreateView(&core.View{Name: "adults", Query: "SELECT id, email, age FROM users WHERE age >= 18"}))
	require.NoError(t, model.CreateView(&core.View{Name: "adult_emails", Query: "SELECT email FROM adults"}))
	return model
}

func planQuery(t *testing.T, model *core.Model, query string) (QueryPlan, error) {
	t.Helper()
	statement, err := sql.Parse(query)
	require.NoError(t, err)
	return Plan(statement, model)
}

func TestPlanIndexSelection(t *testing.T) {
	model := newPlannerModel(t, 100)

	tests := []struct {
		query string
		path  AccessPath
		index string
		rows  int
		cost  float64
	}{
		{"SELECT * FROM users", FullScan, "", 100, 100},
		{"SELECT * FROM users WHERE age = 30", FullScan, "", 100, 100},
		{"SELECT * FROM users WHERE email = 'user1@example.com'", IndexScan, "users_email_key", 1, 0.75},
		{"SELECT * FROM users WHERE id = 7", IndexScan, "users_pkey", 1, 0.75},
		{"SELECT * FROM users WHERE city = 'city1'", IndexScan, "idx_users_city", 10, 3},
		{"SELECT * FROM users WHERE id > 50", IndexScan, "users_pkey", 34, 9},
		{"SELECT * FROM users WHERE email LIKE 'user1%'", IndexScan, "users_email_key", 25, 6.75},
		{"SELECT * FROM users WHERE email LIKE '%example.com'", FullScan, "", 100, 100},
		{"SELECT * FROM users WHERE city != 'city1'", FullScan, "", 100, 100},
		{"SELECT * FROM users WHERE city IS NULL", FullScan, "", 100, 100},
		{"UPDATE users SET age = 1 WHERE id = 3", IndexScan, "users_pkey", 1, 0.75},
		{"DELETE FROM users WHERE city = 'city2'", IndexScan, "idx_users_city", 10, 3},
		{"INSERT INTO users (email) VALUES ('x@example.com')", DirectInsert, "", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			plan, err := planQuery(t, model, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.path, plan.AccessPath)
			assert.Equal(t, tt.index, plan.IndexUsed)
			assert.Equal(t, tt.rows, plan.EstimatedRows)
			assert.InDelta(t, tt.cost, plan.EstimatedCost, 0.001)
		})
	}
}

func TestPlanPrefersUniqueIndexForEquality(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		index   core.Index
		query   string
		want    string
		wantEst int
	}{
		{"unique constraint over explicit index", 30, core.Index{Name: "idx_users_email", Columns: []string{"email"}}, "SELECT * FROM users WHERE email = 'a'", "users_email_key", 1},
		{"primary key over explicit index", 30, core.Index{Name: "idx_users_id", Columns: []string{"id"}}, "SELECT * FROM users WHERE id = 5", "users_pkey", 1},
		{"primary key on empty table", 0, core.Index{Name: "idx_users_id", Columns: []string{"id"}}, "DELETE FROM users WHERE id = 5", "users_pkey", 0},
		{"explicit unique index", 30, core.Index{Name: "idx_users_city", Columns: []string{"city"}, Unique: true}, "SELECT * FROM users WHERE city = 'city1'", "idx_users_city", 1},
		{"ranges keep declaration order", 30, core.Index{Name: "idx_users_id", Columns: []string{"id"}}, "SELECT * FROM users WHERE id > 5", "idx_users_id", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := newPlannerModel(t, tt.rows)
			users, _ := model.Table("", "users")
			users.Indexes = append([]core.Index{tt.index}, users.Indexes[1:]...)

			plan, err := planQuery(t, model, tt.query)
			require.NoError(t, err)
			assert.Equal(t, IndexScan, plan.AccessPath)
			assert.Equal(t, tt.want, plan.IndexUsed)
			assert.Equal(t, tt.wantEst, plan.EstimatedRows)
		})
	}
}

func TestPlanUniqueIndexProperty(t *testing.T) {
	engine := NewEngine(nil, Config{Logger: newTestLogger(t)})
	for _, query := range []string{
		"CREATE TABLE t (id INT PRIMARY KEY, v TEXT)",
		"CREATE INDEX t_id_idx ON t (id)",
		"CREATE INDEX t_v_idx ON t (v)",
		"CREATE UNIQUE INDEX t_v_key ON t (v)",
	} {
		_, err := engine.Execute(query)
		require.NoError(t, err)
	}
	for i := 1; i <= 30; i++ {
		_, err := engine.Execute(fmt.Sprintf("INSERT INTO t (id, v) VALUES (%d, 'v%d')", i, i))
		require.NoError(t, err)
	}

	plan, err := engine.Explain("SELECT * FROM t WHERE id = 5")
	require.NoError(t, err)
	assert.Equal(t, "t_pkey", plan.IndexUsed)
	assert.Equal(t, 1, plan.EstimatedRows)

	plan, err = engine.Explain("SELECT * FROM t WHERE v = 'v5'")
	require.NoError(t, err)
	assert.Equal(t, "t_v_key", plan.IndexUsed)
	assert.Equal(t, 1, plan.EstimatedRows)
}

func TestPlanEstimateBounds(t *testing.T) {
	model := newPlannerModel(t, 0)
	plan, err := planQuery(t, model, "SELECT * FROM users WHERE city = 'x'")
	require.NoError(t, err)
	assert.Equal(t, 0, plan.EstimatedRows)

	model = newPlannerModel(t, 2)
	plan, err = planQuery(t, model, "SELECT * FROM users WHERE city = 'x'")
	require.NoError(t, err)
	assert.Equal(t, 1, plan.EstimatedRows)
}

func TestPlanViews(t *testing.T) {
	model := newPlannerModel(t, 30)

	plan, err := planQuery(t, model, "SELECT email FROM adult_emails WHERE email = 'user3@example.com'")
	require.NoError(t, err)
	assert.Equal(t, "users", plan.Table)
	assert.Equal(t, "public.adult_emails", plan.View)
	assert.Equal(t, "users_email_key", plan.IndexUsed)

	// city is not projected by the view
	_, err = planQuery(t, model, "SELECT * FROM adults WHERE city = 'city1'")
	var planErr *PlanError
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, UnknownColumn, planErr.Kind)
	assert.Equal(t, "city", planErr.Column)
}

func TestPlanErrors(t *testing.T) {
	model := newPlannerModel(t, 3)

	tests := []struct {
		query    string
		kind     PlanErrorKind
		sentinel error
	}{
		{"SELECT * FROM missing", UnknownTable, ErrUnknownTable},
		{"SELECT nope FROM users", UnknownColumn, ErrUnknownColumn},
		{"SELECT * FROM users WHERE nope = 1", UnknownColumn, ErrUnknownColumn},
		{"INSERT INTO users (nope) VALUES (1)", UnknownColumn, ErrUnknownColumn},
		{"UPDATE users SET nope = 1", UnknownColumn, ErrUnknownColumn},
		{"DELETE FROM missing", UnknownTable, ErrUnknownTable},
		{"DELETE FROM adults WHERE id = 1", ReadOnlyTarget, ErrReadOnlyTarget},
		{"INSERT INTO adults (id) VALUES (1)", ReadOnlyTarget, ErrReadOnlyTarget},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := planQuery(t, model, tt.query)
			var planErr *PlanError
			require.ErrorAs(t, err, &planErr)
			assert.Equal(t, tt.kind, planErr.Kind)
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

func TestPlanRecursiveView(t *testing.T) {
	model := core.NewModel()
	require.NoError(t, model.CreateView(&core.View{Name: "a", Query: "SELECT * FROM b"}))
	require.NoError(t, model.CreateView(&core.View{Name: "b", Query: "SELECT * FROM a"}))

	_, err := planQuery(t, model, "SELECT * FROM a")
	assert.ErrorIs(t, err, ErrRecursiveView)
}

func TestQueryPlanString(t *testing.T) {
	plan := QueryPlan{
		Operation:     SelectOperation,
		Schema:        "public",
		Table:         "users",
		IndexUsed:     "users_pkey",
		AccessPath:    IndexScan,
		EstimatedRows: 1,
		EstimatedCost: 0.75,
	}
	assert.Equal(t, "SELECT on public.users using INDEX SCAN users_pkey (rows=1, cost=0.75)", plan.String())
}

func TestQueryPlanJSON(t *testing.T) {
	plan := QueryPlan{
		Operation:     DeleteOperation,
		Schema:        "public",
		Table:         "orders",
		IndexUsed:     "orders_pkey",
		AccessPath:    IndexScan,
		EstimatedRows: 1,
		EstimatedCost: 0.75,
	}
	data, err := json.Marshal(plan)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"DELETE"`)
	assert.Contains(t, string(data), `"accessPath":"INDEX SCAN"`)

	var decoded QueryPlan
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, plan, decoded)

	for _, path := range []AccessPath{FullScan, IndexScan, DirectInsert} {
		text, err := path.MarshalText()
		require.NoError(t, err)
		var got AccessPath
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, path, got)
	}

	err = json.Unmarshal([]byte(`{"operation":"MERGE"}`), &decoded)
	assert.ErrorContains(t, err, "unknown operation")
	err = json.Unmarshal([]byte(`{"accessPath":"BITMAP SCAN"}`), &decoded)
	assert.ErrorContains(t, err, "unknown access path")
}
