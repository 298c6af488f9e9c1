package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_IsLocal(t *testing.T) {
	assert.True(t, Source{URL: "/tmp/a.ics"}.IsLocal())
	assert.True(t, Source{URL: "file:///tmp/a.ics"}.IsLocal())
	assert.Equal(t, "/tmp/a.ics", Source{URL: "file:///tmp/a.ics"}.LocalPath())
	assert.False(t, Source{URL: "https://example.com/a.ics"}.IsLocal())
}

func TestFetchOne_ETagAndFallback(t *testing.T) {
	var (
		hits    atomic.Int32
		failing atomic.Bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(agendaFixture)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "remote", URL: srv.URL + "/agenda.ics?token=secret"}
	ctx := context.Background()

	res, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, agendaFixture, res.Body)

	res, err = f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, res.FromCache, "304 serves the cached body")
	assert.Equal(t, agendaFixture, res.Body)

	failing.Store(true)
	res, err = f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, res.FromCache, "server errors fall back to the cache")

	assert.EqualValues(t, 3, hits.Load())

	// A fresh cache has nothing to fall back to.
	_, err = NewFetcher(t.TempDir()).FetchOne(ctx, src)
	assert.Error(t, err)
}

func TestFetchAll_LocalAndMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.ics")
	require.NoError(t, os.WriteFile(path, agendaFixture, 0o600))

	f := NewFetcher(t.TempDir())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "local", URL: path},
		{ID: "gone", URL: filepath.Join(dir, "missing.ics")},
		{ID: "empty"},
	})
	require.Len(t, results, 1)
	assert.Equal(t, "local", results[0].Source.ID)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "gone")
	assert.Contains(t, errs[1].Error(), "empty")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)",
		redactURL("https://calendar.example.com/private/abc123/basic.ics"))
	assert.Equal(t, "agenda.ics", redactURL("agenda.ics"))
}
