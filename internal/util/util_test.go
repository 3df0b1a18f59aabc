package util

import (
	"archive/zip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/brogergvhs/bibe/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "001.jpg")

	require.NoError(t, AtomicWrite(path, []byte("image")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image", string(got))
	assert.False(t, Exists(path+TempSuffix))
}

func TestAtomicWriteMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "001.jpg")

	err := AtomicWrite(path, []byte("x"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindFilesystem))
}

func TestCreateCBZ(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002.jpg", "001.jpg", "003.jpg.tmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}

	out := filepath.Join(t.TempDir(), "chapter.cbz")
	require.NoError(t, CreateCBZ(dir, out))

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"001.jpg", "002.jpg"}, names)
	assert.False(t, Exists(out+TempSuffix))
}

func TestCreateCBZEmpty(t *testing.T) {
	err := CreateCBZ(t.TempDir(), filepath.Join(t.TempDir(), "x.cbz"))
	assert.Error(t, err)
}

func TestCleanupTempFilesRemovesOnlyOwnWrites(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "Series", "Series 001")
	require.NoError(t, os.MkdirAll(sub, 0755))

	keep := filepath.Join(sub, "001.jpg")
	inFlight := filepath.Join(sub, "002.jpg.tmp")
	userFile := filepath.Join(root, "project", "build", "cache.tmp")
	require.NoError(t, os.MkdirAll(filepath.Dir(userFile), 0755))
	require.NoError(t, os.WriteFile(keep, nil, 0644))
	require.NoError(t, os.WriteFile(inFlight, nil, 0644))
	require.NoError(t, os.WriteFile(userFile, nil, 0644))

	trackTemp(inFlight)
	removed := CleanupTempFiles()

	assert.Equal(t, []string{inFlight}, removed)
	assert.True(t, Exists(keep))
	assert.True(t, Exists(userFile))
	assert.False(t, Exists(inFlight))

	assert.Empty(t, CleanupTempFiles())
}

func TestFinishedWritesAreNotTracked(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AtomicWrite(filepath.Join(dir, "001.jpg"), []byte("x")))
	require.Error(t, AtomicWrite(filepath.Join(dir, "missing", "002.jpg"), []byte("x")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "003.jpg"), []byte("y"), 0644))
	require.NoError(t, CreateCBZ(dir, filepath.Join(dir, "out.cbz")))

	assert.Empty(t, CleanupTempFiles())
	assert.True(t, Exists(filepath.Join(dir, "out.cbz")))
}

func TestHTTPClientHeaders(t *testing.T) {
	var ua, cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		cookie = r.Header.Get("Cookie")
	}))
	defer srv.Close()

	cookieFile := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookieFile, []byte("\n  b=2  \nc=3\n"), 0644))

	client, err := NewHTTPClient(HTTPClientOptions{
		UserAgent:  "bibe-test",
		Cookie:     "a=1",
		CookieFile: cookieFile,
	})
	require.NoError(t, err)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "bibe-test", ua)
	assert.Equal(t, "a=1; b=2", cookie)
}

func TestHTTPClientDefaultUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client, err := NewHTTPClient(HTTPClientOptions{})
	require.NoError(t, err)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, DefaultUserAgent, ua)
}

func TestHTTPClientUnreadableCookieFile(t *testing.T) {
	_, err := NewHTTPClient(HTTPClientOptions{
		Cookie:     "a=1",
		CookieFile: filepath.Join(t.TempDir(), "missing.txt"),
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindFilesystem))
	assert.Contains(t, err.Error(), "missing.txt")
}
