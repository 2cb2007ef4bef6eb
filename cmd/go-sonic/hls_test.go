package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-sonic/internal/media"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHLSCommandParsesLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.m3u8")
	require.NoError(t, os.WriteFile(path, []byte("#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\n/a\n#EXTINF:7,\n/b\n#EXT-X-ENDLIST\n"), 0644))

	out, err := runCLI(t, "hls", "--segments", path)
	require.NoError(t, err)
	assert.Contains(t, out, "segments:        2")
	assert.Contains(t, out, "total duration:  17s")
	assert.Contains(t, out, "/b")
}

func TestHLSCommandRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.m3u8")
	require.NoError(t, os.WriteFile(path, []byte("#EXTM3U\n#EXT-X-VERSION:x\n"), 0644))

	_, err := runCLI(t, "hls", "--segments=false", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrNumericParse)
}

func TestMissingConfigFails(t *testing.T) {
	_, err := runCLI(t, "now-playing", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDownloadRequiresIDs(t *testing.T) {
	_, err := runCLI(t, "download", "song")
	assert.Error(t, err)
}
