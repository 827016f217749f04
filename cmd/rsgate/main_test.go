package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/rsgate/internal/config"
)

const testSDL = `type Query {
  viewer: User
  document(id: ID!): Document
}

type User {
  id: ID!
  name: String
}

type Document {
  id: ID!
  ownerId: ID!
  secret: String
}
`

const testData = `
Query:
  viewer: {id: u1, name: Ann}
  document:
    - {id: d1, ownerId: u1, secret: s1}
    - {id: d2, ownerId: u2, secret: s2}
`

const testRegistrations = `
registrations:
  - coordinate: Document.secret
    kind: checker
    name: owner
    object_selections: ownerId
    query_selections: "viewer { id }"
    checker:
      equals:
        path: ownerId
        query_path: viewer.id
        message: only the owner can read the secret
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errb bytes.Buffer
	err = run(context.Background(), args, &out, &errb)
	return out.String(), errb.String(), err
}

func TestHelp(t *testing.T) {
	out, _, err := runCmd(t, "help", "serve")
	require.NoError(t, err)
	require.Contains(t, out, "serve FLAGS")

	_, _, err = runCmd(t, "help", "nope")
	require.ErrorContains(t, err, `unknown help topic "nope"`)
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, err := runCmd(t, "compile")
	require.ErrorContains(t, err, `unknown command "compile"`)
	require.Contains(t, stderr, "COMMANDS:")

	_, _, err = runCmd(t)
	require.ErrorContains(t, err, "missing command")
}

func TestPrintSchema(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.graphql": testSDL})
	out, _, err := runCmd(t, "print-schema", "--graphql.schema_file", filepath.Join(dir, "schema.graphql"))
	require.NoError(t, err)
	require.Contains(t, out, "type Document")

	target := filepath.Join(dir, "out.graphql")
	_, _, err = runCmd(t, "print-schema", "--graphql.schema_file", filepath.Join(dir, "schema.graphql"), "--out", target)
	require.NoError(t, err)
	written, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, out, string(written))
}

func TestValidate(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"schema.graphql": testSDL,
		"good.yaml":      testRegistrations,
		"bad.yaml":       "registrations:\n  - coordinate: Document.missing\n    kind: checker\n    checker:\n      allow: {}\n",
	})
	schemaFlag := "--graphql.schema_file=" + filepath.Join(dir, "schema.graphql")

	t.Run("valid", func(t *testing.T) {
		out, _, err := runCmd(t, "validate", schemaFlag, "--graphql.registrations_file", filepath.Join(dir, "good.yaml"))
		require.NoError(t, err)
		require.Contains(t, out, "ok: ")
		require.Contains(t, out, "1 checked coordinates")
	})

	t.Run("violations", func(t *testing.T) {
		_, stderr, err := runCmd(t, "validate", schemaFlag, "--graphql.registrations_file", filepath.Join(dir, "bad.yaml"))
		require.ErrorContains(t, err, "violations found")
		require.ErrorContains(t, err, "field Document.missing is not defined")
		require.Contains(t, stderr, "invalid registration")
	})

	t.Run("registrations required", func(t *testing.T) {
		_, _, err := runCmd(t, "validate", schemaFlag)
		require.ErrorIs(t, err, errUsage)
	})

	t.Run("bad flag", func(t *testing.T) {
		_, stderr, err := runCmd(t, "validate", "--nope")
		require.ErrorIs(t, err, errUsage)
		require.Contains(t, stderr, "validate FLAGS")
	})
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := writeFiles(t, map[string]string{
		"schema.graphql": testSDL,
		"data.yaml":      testData,
		"checks.yaml":    testRegistrations,
	})
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	cfg.GraphQL.SchemaFile = filepath.Join(dir, "schema.graphql")
	cfg.GraphQL.DataFile = filepath.Join(dir, "data.yaml")
	cfg.GraphQL.RegistrationsFile = filepath.Join(dir, "checks.yaml")
	cfg.Observability.MetricsEnabled = false
	cfg.Observability.Logging.Level = "error"
	return cfg
}

func TestApp(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.close(context.Background())) })
	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/graphql", "application/json",
		strings.NewReader(`{"query":"{ mine: document(id: \"d1\") { secret } theirs: document(id: \"d2\") { secret } }"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	want := map[string]any{
		"data": map[string]any{
			"mine":   map[string]any{"secret": "s1"},
			"theirs": map[string]any{"secret": nil},
		},
		"errors": []any{map[string]any{
			"message":    "only the owner can read the secret",
			"path":       []any{"theirs", "secret"},
			"extensions": map[string]any{"code": "FORBIDDEN"},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	require.Equal(t, http.StatusOK, health.StatusCode)
}

func TestAppBypassChecks(t *testing.T) {
	cfg := testConfig(t)
	cfg.GraphQL.BypassChecks = true
	a, err := newApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.close(context.Background())) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ document(id: \"d2\") { secret } }"}`))
	req.Header.Set("Content-Type", "application/json")
	a.handler.ServeHTTP(rec, req)
	require.JSONEq(t, `{"data":{"document":{"secret":"s2"}}}`, rec.Body.String())
}

func TestAppLoadErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.GraphQL.SchemaFile = filepath.Join(t.TempDir(), "missing.graphql")
	_, err := newApp(context.Background(), cfg, io.Discard)
	require.ErrorContains(t, err, "read schema")
}

func TestServeShutdown(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.close(context.Background())) })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, a, lis) }()

	url := "http://" + lis.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
