package uploads

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataURL(mime string, b []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}

func newTestStore(t *testing.T, max int64) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "/uploads", max)
	require.NoError(t, err)
	return s
}

func TestIngest_StoresBlob(t *testing.T) {
	s := newTestStore(t, 1024)
	payload := []byte("hello attachment")

	meta, err := s.Ingest(context.Background(), core.Upload{
		Data:     dataURL("text/plain", payload),
		MimeType: "text/plain",
		Name:     "my notes (final).txt",
		Room:     "room/1",
	})
	require.NoError(t, err)

	assert.Equal(t, "my notes (final).txt", meta.Name)
	assert.Equal(t, "text/plain", meta.Type)
	require.True(t, strings.HasPrefix(meta.Path, "/uploads/room_1_"))
	assert.True(t, strings.HasSuffix(meta.Path, "_my_notes__final_.txt"))

	full, err := s.Resolve(strings.TrimPrefix(meta.Path, "/uploads"))
	require.NoError(t, err)
	got, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestIngest_NamesDoNotCollide(t *testing.T) {
	s := newTestStore(t, 1024)
	in := core.Upload{Data: dataURL("text/plain", []byte("x")), MimeType: "text/plain", Name: "a.txt", Room: "r"}

	a, err := s.Ingest(context.Background(), in)
	require.NoError(t, err)
	b, err := s.Ingest(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, a.Path, b.Path)
}

func TestIngest_RejectsOversizeWithoutWriting(t *testing.T) {
	s := newTestStore(t, 8)

	_, err := s.Ingest(context.Background(), core.Upload{
		Data: dataURL("application/octet-stream", make([]byte, 9)),
		Name: "big.bin",
		Room: "r",
	})
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIngest_AcceptsExactLimit(t *testing.T) {
	s := newTestStore(t, 8)
	_, err := s.Ingest(context.Background(), core.Upload{
		Data:     dataURL("application/octet-stream", make([]byte, 8)),
		MimeType: "application/octet-stream",
		Name:     "ok.bin",
		Room:     "r",
	})
	assert.NoError(t, err)
}

func TestIngest_BadPayload(t *testing.T) {
	s := newTestStore(t, 1024)
	for _, data := range []string{"plain text", "data:image/png;base64,", "data:x;base64,!!!"} {
		_, err := s.Ingest(context.Background(), core.Upload{Data: data, Name: "x", Room: "r"})
		assert.ErrorIs(t, err, ErrBadPayload, data)
	}
}

func TestIngest_SniffsMissingMime(t *testing.T) {
	s := newTestStore(t, 1024)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	meta, err := s.Ingest(context.Background(), core.Upload{Data: dataURL("", png), Name: "pic", Room: "r"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", meta.Type)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, 1024)
	meta, err := s.Ingest(context.Background(), core.Upload{Data: dataURL("text/plain", []byte("x")), MimeType: "text/plain", Name: "a", Room: "r"})
	require.NoError(t, err)

	require.NoError(t, s.Remove(meta.Path))
	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)

	// already gone
	assert.NoError(t, s.Remove(meta.Path))
}

func TestResolve_RejectsTraversal(t *testing.T) {
	s := newTestStore(t, 1024)
	for _, name := range []string{"", "/", "../secret", "/../../etc/passwd", "a/../../b", "nested/file.txt", ".."} {
		_, err := s.Resolve(name)
		assert.ErrorIs(t, err, ErrOutsideRoot, name)
	}

	full, err := s.Resolve("/r_id_a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "r_id_a.txt"), full)
}
