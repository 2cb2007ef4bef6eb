package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/natefinch/atomic"
)

// FileManager writes media files under a root directory. Writes go through
// a temporary file and a rename, so a reader never sees a partial file.
type FileManager struct {
	root   string
	logger *slog.Logger
}

// NewFileManager creates a file manager rooted at root.
func NewFileManager(root string, logger *slog.Logger) *FileManager {
	return &FileManager{root: root, logger: logger}
}

// Root returns the directory files are written under.
func (f *FileManager) Root() string { return f.root }

// MediaPath returns where a media file of the given kind is stored:
// {root}/{kind}s/{id}-{title}.{ext}.
func (f *FileManager) MediaPath(kind, id, title, ext string) string {
	name := id
	if t := sanitize(title); t != "" {
		name += "-" + t
	}
	if ext != "" {
		name += "." + sanitize(ext)
	}
	return filepath.Join(f.root, kind+"s", name)
}

// WriteAtomic stores everything read from r at path and returns the number of
// bytes written with their SHA-256 checksum.
func (f *FileManager) WriteAtomic(path string, r io.Reader) (int64, string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, "", fmt.Errorf("failed to create directory: %w", err)
	}

	h := sha256.New()
	cr := &countingReader{r: io.TeeReader(r, h)}
	if err := atomic.WriteFile(path, cr); err != nil {
		return 0, "", fmt.Errorf("atomic write failed for %s: %w", path, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	f.logger.Debug("File written",
		"path", path,
		"size_bytes", cr.n,
		"checksum", sum)
	return cr.n, sum, nil
}

// CalculateChecksum returns the SHA-256 checksum of the file at path.
func (f *FileManager) CalculateChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileExists reports whether a regular file exists at path.
func (f *FileManager) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sanitize keeps names portable across filesystems.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		case unicode.IsSpace(r), r == '.':
			return '_'
		default:
			return -1
		}
	}, s)
	return strings.Trim(s, "_")
}
