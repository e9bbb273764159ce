package db

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectScheme(t *testing.T) {
	tests := []struct {
		path string
		want urlScheme
	}{
		{"s3://bucket/schema.sql", schemeS3},
		{"S3://bucket/schema.sql", schemeS3},
		{"https://example.com/schema.sql", schemeHTTPS},
		{"http://example.com/schema.sql", schemeHTTP},
		{"file:///tmp/schema.sql", schemeFile},
		{"/tmp/schema.sql", schemeLocal},
		{"schema.sql", schemeLocal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectScheme(tt.path), tt.path)
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://docs/exports/schema.md")
	require.NoError(t, err)
	assert.Equal(t, "docs", bucket)
	assert.Equal(t, "exports/schema.md", key)

	for _, bad := range []string{"s3://bucket", "s3://bucket/", "s3:///key"} {
		_, _, err := parseS3URL(bad)
		assert.Error(t, err, bad)
	}
}

func TestLocalDocumentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.sql")
	ctx := context.Background()

	require.NoError(t, WriteDocument(ctx, path, RemoteConfig{}, "CREATE TABLE t (id INT PRIMARY KEY);\n"))
	text, err := ReadDocument(ctx, "file://"+path, RemoteConfig{})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t (id INT PRIMARY KEY);\n", text)

	_, err = ReadDocument(ctx, filepath.Join(dir, "missing.sql"), RemoteConfig{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHTTPDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schema.sql" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "CREATE TABLE t (id INT PRIMARY KEY);")
	}))
	defer server.Close()
	ctx := context.Background()

	text, err := ReadDocument(ctx, server.URL+"/schema.sql", RemoteConfig{})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t (id INT PRIMARY KEY);", text)

	_, err = ReadDocument(ctx, server.URL+"/missing.sql", RemoteConfig{})
	assert.ErrorContains(t, err, "status 404")

	err = WriteDocument(ctx, server.URL+"/schema.sql", RemoteConfig{}, "x")
	assert.ErrorContains(t, err, "does not support writing")
}
