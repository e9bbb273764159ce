package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/SchemaDB"
	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/ps"
	"github.com/nickyhof/SchemaDB/validate"
)

func setupTestServer(t *testing.T, opts Options) (*Server, *SchemaDB.Registry) {
	t.Helper()
	registry := SchemaDB.NewRegistry(SchemaDB.Options{})
	server, err := NewServer(registry, opts)
	require.NoError(t, err)
	require.NoError(t, server.Start(context.Background(), "127.0.0.1:0")) // :0 picks a free port
	t.Cleanup(func() { _ = server.Stop() })
	return server, registry
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, server *Server) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", server.Addr(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) Response {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	data, err := c.reader.ReadString('\n')
	require.NoError(c.t, err)

	var resp Response
	require.NoError(c.t, json.Unmarshal([]byte(data), &resp))
	return resp
}

func (c *testClient) request(req Request) Response {
	c.t.Helper()
	data, err := json.Marshal(req)
	require.NoError(c.t, err)
	return c.send(string(data))
}

func (c *testClient) mustSend(line string) Response {
	c.t.Helper()
	resp := c.send(line)
	require.True(c.t, resp.Success, "%s: %s", line, resp.Error)
	return resp
}

func decode[T any](t *testing.T, resp Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Result, &v))
	return v
}

func createTestJWT(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}

func TestServerStartStop(t *testing.T) {
	server, registry := setupTestServer(t, Options{})
	assert.NotEmpty(t, server.Addr())
	assert.Equal(t, []string{DefaultComponent}, registry.IDs())

	require.NoError(t, server.Stop())
	require.NoError(t, server.Stop())

	_, err := net.DialTimeout("tcp", server.Addr(), 500*time.Millisecond)
	assert.Error(t, err)
}

func TestServerStopClosesConnections(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	client := dial(t, server)
	client.mustSend("CREATE TABLE t (id INT PRIMARY KEY)")

	require.NoError(t, server.Stop())

	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := client.reader.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestServerQueries(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	client := dial(t, server)

	resp := client.mustSend("CREATE TABLE items (id INT PRIMARY KEY, value TEXT)")
	assert.Equal(t, "commit", resp.Type)
	assert.Equal(t, 1, decode[CommitResponse](t, resp).TablesCreated)

	resp = client.mustSend("INSERT INTO items (id, value) VALUES (1, 'one')")
	assert.Equal(t, 1, decode[CommitResponse](t, resp).RecordsWritten)
	client.mustSend("INSERT INTO items (id, value) VALUES (2, 'two')")

	resp = client.mustSend("SELECT * FROM items WHERE id = 2")
	assert.Equal(t, "query", resp.Type)
	qr := decode[QueryResponse](t, resp)
	assert.Equal(t, []string{"id", "value"}, qr.Columns)
	assert.Equal(t, [][]string{{"2", "two"}}, qr.Data)
	assert.Equal(t, 1, qr.RecordsRead)
	assert.Equal(t, []string{"items_pkey"}, qr.IndexesUsed)

	resp = client.mustSend("UPDATE items SET value = 'uno' WHERE id = 1")
	cr := decode[CommitResponse](t, resp)
	assert.Equal(t, 1, cr.RecordsUpdated)
	require.NotNil(t, cr.Plan)
	assert.Equal(t, "items_pkey", cr.Plan.IndexUsed)
}

func TestServerErrors(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	client := dial(t, server)

	tests := []struct {
		name string
		line string
	}{
		{name: "unknown table", line: "SELECT * FROM nonexistent"},
		{name: "syntax", line: "SELEC * FROM t"},
		{name: "bad json", line: "{not json"},
		{name: "missing op", line: `{"query": "SELECT 1"}`},
		{name: "unknown op", line: `{"op": "dance"}`},
		{name: "unknown component", line: "USE nowhere"},
		{name: "bad format", line: `{"op": "export", "format": "pdf"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := client.send(tt.line)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServerPersistentConnection(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	client := dial(t, server)

	client.mustSend("CREATE TABLE counters (id SERIAL PRIMARY KEY, n INT)")
	client.mustSend("BEGIN")
	resp := client.mustSend("INSERT INTO counters (n) VALUES (1)")
	assert.Equal(t, 1, decode[CommitResponse](t, resp).Pending)

	resp = client.mustSend("SELECT * FROM counters")
	assert.Equal(t, 1, decode[QueryResponse](t, resp).RecordsRead)

	client.mustSend("ROLLBACK")
	resp = client.mustSend("SELECT * FROM counters")
	assert.Equal(t, 0, decode[QueryResponse](t, resp).RecordsRead)

	// blank lines are ignored, quit closes the connection
	_, err := client.conn.Write([]byte("\n\nquit\n"))
	require.NoError(t, err)
	_, err = client.reader.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestServerComponents(t *testing.T) {
	server, registry := setupTestServer(t, Options{})
	client := dial(t, server)

	resp := client.request(Request{Op: OpCreate, Component: "billing"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "billing", decode[ComponentResponse](t, resp).Component)

	resp = client.request(Request{Op: OpCreate, Component: "billing"})
	assert.False(t, resp.Success)

	resp = client.request(Request{Op: OpCreate})
	require.True(t, resp.Success)
	generated := decode[ComponentResponse](t, resp).Component
	assert.Len(t, generated, 36)

	resp = client.request(Request{Op: OpList})
	assert.ElementsMatch(t, []string{DefaultComponent, "billing", generated}, decode[[]string](t, resp))

	client.mustSend("USE billing")
	client.mustSend("CREATE TABLE invoices (id INT PRIMARY KEY)")
	assert.True(t, client.send("SELECT * FROM invoices").Success)

	// other connections still start on the default component
	other := dial(t, server)
	assert.False(t, other.send("SELECT * FROM invoices").Success)
	resp = other.request(Request{Op: OpQuery, Component: "billing", Query: "SELECT * FROM invoices"})
	assert.True(t, resp.Success, resp.Error)

	resp = client.request(Request{Op: OpTeardown, Component: "billing"})
	require.True(t, resp.Success, resp.Error)
	assert.NotContains(t, registry.IDs(), "billing")

	// the connection fell back to the default component
	assert.False(t, client.send("SELECT * FROM invoices").Success)
	assert.False(t, client.request(Request{Op: OpTeardown}).Success)
}

func TestServerSchemaRequests(t *testing.T) {
	server, _ := setupTestServer(t, Options{})
	client := dial(t, server)

	script := `CREATE TABLE users (id SERIAL PRIMARY KEY, email TEXT NOT NULL);
CREATE TABLE orders (id SERIAL PRIMARY KEY, user_id INT NOT NULL REFERENCES users (id));
DROP TABLE users;`
	resp := client.request(Request{Op: OpImport, Script: script})
	require.True(t, resp.Success, resp.Error)
	imported := decode[ImportResponse](t, resp)
	assert.Equal(t, []string{"users", "orders"}, imported.Tables)
	assert.Equal(t, []string{"orders.user_id -> users.id"}, imported.Relationships)
	assert.Len(t, imported.Errors, 1)

	resp = client.request(Request{Op: OpImport, Script: "CREATE TABLE users (id INT PRIMARY KEY)"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "already exists")

	resp = client.request(Request{Op: OpExport, Format: "mermaid"})
	require.True(t, resp.Success, resp.Error)
	assert.Contains(t, decode[string](t, resp), "users ||--o{ orders")

	resp = client.request(Request{Op: OpExport, Format: "markdown", Database: "Shop"})
	require.True(t, resp.Success, resp.Error)
	assert.Contains(t, decode[string](t, resp), "# Shop")

	resp = client.request(Request{Op: OpValidate})
	require.True(t, resp.Success, resp.Error)
	report := decode[validate.Report](t, resp)
	assert.True(t, report.Valid)

	resp = client.request(Request{Op: OpExplain, Query: "DELETE FROM orders WHERE id = 3"})
	require.True(t, resp.Success, resp.Error)
	var plan map[string]any
	require.NoError(t, json.Unmarshal(resp.Result, &plan))
	assert.Equal(t, "DELETE", plan["operation"])
	assert.Equal(t, "INDEX SCAN", plan["accessPath"])
	assert.Equal(t, "orders_pkey", plan["indexUsed"])
}

func TestServerSnapshots(t *testing.T) {
	identity := core.Identity{Name: "Default User", Email: "default@test.com"}
	server, _ := setupTestServer(t, Options{Identity: identity})
	client := dial(t, server)

	resp := client.request(Request{Op: OpHistory})
	require.True(t, resp.Success, resp.Error)
	assert.Empty(t, decode[[]ps.Transaction](t, resp))

	client.mustSend("CREATE TABLE notes (id SERIAL PRIMARY KEY, body TEXT)")
	client.mustSend("INSERT INTO notes (body) VALUES ('kept')")

	resp = client.request(Request{Op: OpSnapshot, Message: "one note"})
	require.True(t, resp.Success, resp.Error)
	txn := decode[ps.Transaction](t, resp)
	assert.Equal(t, "Default User <default@test.com>", txn.Author)

	client.mustSend("DROP TABLE notes")
	resp = client.request(Request{Op: OpRestore, Revision: txn.Id})
	require.True(t, resp.Success, resp.Error)

	resp = client.mustSend("SELECT * FROM notes")
	assert.Equal(t, 1, decode[QueryResponse](t, resp).RecordsRead)

	resp = client.request(Request{Op: OpHistory})
	history := decode[[]ps.Transaction](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, "one note", history[0].Message)
}

func TestAuthRequired(t *testing.T) {
	server, _ := setupTestServer(t, Options{Auth: &AuthConfig{JWTSecret: "test-secret"}})
	client := dial(t, server)

	resp := client.send("SELECT * FROM users")
	assert.False(t, resp.Success)
	assert.Equal(t, "auth", resp.Type)
	assert.Equal(t, ErrAuthRequired.Error(), resp.Error)

	resp = client.request(Request{Op: OpList})
	assert.False(t, resp.Success)
}

func TestAuthWithValidJWT(t *testing.T) {
	secret := "test-secret-for-identity"
	server, _ := setupTestServer(t, Options{Auth: &AuthConfig{JWTSecret: secret, Issuer: "schemadb-tests"}})
	client := dial(t, server)

	token := createTestJWT(t, secret, jwt.MapClaims{
		"name":  "JWT Test User",
		"email": "jwtuser@example.com",
		"iss":   "schemadb-tests",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	resp := client.mustSend("AUTH JWT " + token)
	ar := decode[AuthResponse](t, resp)
	assert.True(t, ar.Authenticated)
	assert.Equal(t, "JWT Test User <jwtuser@example.com>", ar.Identity)
	assert.InDelta(t, 3600, ar.ExpiresIn, 5)

	client.mustSend("CREATE TABLE t (id INT PRIMARY KEY)")

	// snapshots are signed by the authenticated identity
	resp = client.request(Request{Op: OpSnapshot})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "JWT Test User <jwtuser@example.com>", decode[ps.Transaction](t, resp).Author)
}

func TestAuthWithInvalidJWT(t *testing.T) {
	secret := "test-secret"
	server, _ := setupTestServer(t, Options{Auth: &AuthConfig{JWTSecret: secret, Audience: "schemadb"}})

	valid := jwt.MapClaims{"name": "Test", "aud": "schemadb", "exp": time.Now().Add(time.Hour).Unix()}
	with := func(key string, value any) jwt.MapClaims {
		claims := jwt.MapClaims{}
		for k, v := range valid {
			claims[k] = v
		}
		if value == nil {
			delete(claims, key)
		} else {
			claims[key] = value
		}
		return claims
	}

	tests := []struct {
		name   string
		line   string
		errStr string
	}{
		{name: "wrong secret", line: "AUTH JWT " + createTestJWT(t, "wrong-secret", valid), errStr: "invalid token"},
		{name: "expired", line: "AUTH JWT " + createTestJWT(t, secret, with("exp", time.Now().Add(-time.Hour).Unix())), errStr: "expired"},
		{name: "wrong audience", line: "AUTH JWT " + createTestJWT(t, secret, with("aud", "other")), errStr: "invalid token"},
		{name: "missing identity", line: "AUTH JWT " + createTestJWT(t, secret, with("name", nil)), errStr: "missing identity claims"},
		{name: "garbage", line: "AUTH JWT not-a-token", errStr: "invalid token"},
		{name: "unsupported type", line: "AUTH BASIC dXNlcjpwYXNz", errStr: "unsupported auth type"},
		{name: "missing token", line: "AUTH JWT", errStr: "expected AUTH <type> <credentials>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := dial(t, server)
			resp := client.send(tt.line)
			assert.False(t, resp.Success)
			assert.Equal(t, "auth", resp.Type)
			assert.Contains(t, resp.Error, tt.errStr)

			// still unauthenticated
			assert.False(t, client.send("SELECT * FROM t").Success)
		})
	}
}

func TestCheckAuthExpiry(t *testing.T) {
	server := &Server{authConfig: &AuthConfig{JWTSecret: "s"}}
	now := time.Now()
	state := &ConnectionState{
		identity:      &core.Identity{Name: "a"},
		authenticated: true,
		tokenExpiry:   now.Add(time.Minute),
	}

	assert.NoError(t, server.checkAuth(state, now))
	assert.ErrorIs(t, server.checkAuth(state, now.Add(2*time.Minute)), ErrTokenExpired)
	assert.False(t, state.IsAuthenticated())
	assert.Nil(t, state.Identity())
	assert.ErrorIs(t, server.checkAuth(state, now), ErrAuthRequired)

	open := &Server{}
	assert.NoError(t, open.checkAuth(&ConnectionState{}, now))
}

func TestParseAuthCommand(t *testing.T) {
	tests := []struct {
		line      string
		authType  string
		token     string
		expectErr bool
	}{
		{line: "AUTH JWT abc.def.ghi", authType: "JWT", token: "abc.def.ghi"},
		{line: "auth jwt abc", authType: "JWT", token: "abc"},
		{line: "  AUTH   JWT   abc  ", authType: "JWT", token: "abc"},
		{line: "AUTH", expectErr: true},
		{line: "AUTH JWT a b", expectErr: true},
		{line: "AUTH KERBEROS x", expectErr: true},
		{line: "SELECT 1", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			authType, token, err := parseAuthCommand(tt.line)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.authType, authType)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"op": "EXPORT", "format": "dbml", "component": "c1"}`))
	require.NoError(t, err)
	assert.Equal(t, Request{Op: OpExport, Format: "dbml", Component: "c1"}, req)

	_, err = DecodeRequest([]byte(`{}`))
	assert.Error(t, err)

	data, err := EncodeResponse(success("list", []string{"a"}))
	require.NoError(t, err)
	assert.Equal(t, `{"success":true,"type":"list","result":["a"]}`+"\n", string(data))
}
