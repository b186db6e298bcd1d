// Package uploads stores attachment blobs decoded from inline data URLs on
// local disk and resolves them for retrieval.
package uploads

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrTooLarge    = core.ErrTooLarge
	ErrBadPayload  = errors.New("invalid inline payload")
	ErrOutsideRoot = errors.New("path outside upload root")
)

const base64Marker = "base64,"

// Store implements core.UploadStore on a flat directory.
type Store struct {
	root     string
	prefix   string
	maxBytes int64
}

var _ core.UploadStore = (*Store)(nil)

// New creates root if needed. prefix is the URL prefix stored paths start with.
func New(root, prefix string, maxBytes int64) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	prefix = "/" + strings.Trim(prefix, "/")
	return &Store{root: abs, prefix: prefix, maxBytes: maxBytes}, nil
}

func (s *Store) Root() string   { return s.root }
func (s *Store) Prefix() string { return s.prefix }

// Ingest decodes in.Data, enforces the size limit before touching disk and
// writes the blob under a name unique across rooms.
func (s *Store) Ingest(ctx context.Context, in core.Upload) (*domain.FileMeta, error) {
	idx := strings.Index(in.Data, base64Marker)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no base64 marker", ErrBadPayload)
	}
	b64 := in.Data[idx+len(base64Marker):]
	if b64 == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrBadPayload)
	}
	// DecodedLen overestimates by at most two padding bytes.
	if int64(base64.StdEncoding.DecodedLen(len(b64))) > s.maxBytes+2 {
		return nil, ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mime := strings.TrimSpace(in.MimeType)
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	stored := fmt.Sprintf("%s_%s_%s", domain.SanitizeFileName(string(in.Room)), uuid.NewString(), domain.SanitizeFileName(in.Name))
	if err := os.WriteFile(filepath.Join(s.root, stored), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	log.Info().Str("module", "uploads").Str("room", string(in.Room)).Str("name", stored).Int("bytes", len(data)).Msg("upload stored")

	name := in.Name
	if name == "" {
		name = "file"
	}
	return &domain.FileMeta{Name: name, Type: mime, Path: s.prefix + "/" + stored}, nil
}

// Remove deletes the blob behind a stored path. A missing blob is not an error.
func (s *Store) Remove(path string) error {
	full, err := s.Resolve(strings.TrimPrefix(path, s.prefix))
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

// Resolve maps a stored name (as found after the URL prefix) to a file inside
// root. Nested names and any ".." segment are rejected.
func (s *Store) Resolve(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "", ErrOutsideRoot
	}
	for _, seg := range strings.Split(filepath.ToSlash(name), "/") {
		if seg == ".." {
			return "", ErrOutsideRoot
		}
	}
	if filepath.Base(name) != name {
		return "", ErrOutsideRoot
	}
	full := filepath.Join(s.root, name)
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrOutsideRoot
	}
	return full, nil
}
