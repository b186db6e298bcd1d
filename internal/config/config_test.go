package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 32, cfg.MaxNameLen)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, "kick", cfg.SlowConsumer)
	assert.Equal(t, 2*(int64(20<<20)/3*4)+64<<10, cfg.ReadLimit)
	assert.NotEmpty(t, cfg.Secret)
}

func TestLoadFile_ReadLimitFitsOversizeUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_upload_bytes: 1024\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// A frame carrying one byte over the limit must be read so it can be refused.
	over := base64.StdEncoding.EncodedLen(int(cfg.MaxUploadBytes) + 1)
	frame := `{"type":"message","messageType":"file","fileData":"data:text/plain;base64,` + strings.Repeat("A", over) + `"}`
	assert.Less(t, int64(len(frame)), cfg.ReadLimit)
	assert.GreaterOrEqual(t, cfg.ReadLimit, int64(base64.StdEncoding.EncodedLen(int(cfg.MaxUploadBytes)*3/2)))
}

func TestLoadFile_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: debug
port: 8080
max_upload_bytes: 2097152
slow_consumer: drop
ping_period: 5s
pong_wait: 10s
secret: s3cret
`), 0o644))
	t.Setenv("HUDDLE_PORT", "9090")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "drop", cfg.SlowConsumer)
	assert.Equal(t, 5*time.Second, cfg.PingPeriod)
	assert.Equal(t, "s3cret", cfg.Secret)
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slow_consumer: ignore\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	bad := *cfg
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.HistoryLimit = -1
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.PongWait = bad.PingPeriod
	assert.Error(t, bad.Validate())
}
