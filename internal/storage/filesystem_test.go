package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaPath(t *testing.T) {
	f := NewFileManager("/downloads", testLogger())

	tests := []struct {
		kind, id, title, ext string
		want                 string
	}{
		{"song", "11", "So What", "flac", "/downloads/songs/11-So_What.flac"},
		{"video", "7", "", "mkv", "/downloads/videos/7.mkv"},
		{"episode", "501", "Ep. 1: The Start/End", "mp3", "/downloads/episodes/501-Ep__1_The_StartEnd.mp3"},
		{"song", "3", "x", "", "/downloads/songs/3-x"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), f.MediaPath(tt.kind, tt.id, tt.title, tt.ext))
		})
	}
}

func TestWriteAtomic(t *testing.T) {
	root := t.TempDir()
	f := NewFileManager(root, testLogger())
	path := filepath.Join(root, "songs", "1.mp3")

	content := strings.Repeat("audio", 1000)
	n, sum, err := f.WriteAtomic(path, strings.NewReader(content))
	require.NoError(t, err)

	expected := sha256.Sum256([]byte(content))
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, hex.EncodeToString(expected[:]), sum)
	assert.True(t, f.FileExists(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	again, err := f.CalculateChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, sum, again)
}

func TestFileExists(t *testing.T) {
	root := t.TempDir()
	f := NewFileManager(root, testLogger())

	assert.False(t, f.FileExists(filepath.Join(root, "nope")))
	assert.False(t, f.FileExists(root))
}
