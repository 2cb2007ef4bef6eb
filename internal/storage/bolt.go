// Package storage persists go-sonic state in BoltDB: records of media
// downloaded to disk and a rolling history of now-playing snapshots.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketDownloads  = []byte("downloads")   // {kind}:{media-id}
	bucketNowPlaying = []byte("now_playing") // {unix-nano}:{player-id}
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Manager handles all BoltDB operations.
type Manager struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// DownloadRecord describes a media file written to the download directory.
type DownloadRecord struct {
	ID           string    `json:"id"`
	MediaKind    string    `json:"media_kind"` // song, video, episode
	MediaID      string    `json:"media_id"`
	Title        string    `json:"title,omitempty"`
	Encoding     string    `json:"encoding,omitempty"`
	LocalPath    string    `json:"local_path"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// NowPlayingRecord is one entry of a stored now-playing snapshot.
type NowPlayingRecord struct {
	User       string    `json:"user"`
	PlayerID   uint      `json:"player_id"`
	MediaID    uint64    `json:"media_id"`
	IsVideo    bool      `json:"is_video"`
	Title      string    `json:"title,omitempty"`
	MinutesAgo uint      `json:"minutes_ago"`
	SeenAt     time.Time `json:"seen_at"`
}

// StorageStats summarizes the download records.
type StorageStats struct {
	TotalDownloads  int            `json:"total_downloads"`
	TotalSize       int64          `json:"total_size_bytes"`
	DownloadsByKind map[string]int `json:"downloads_by_kind"`
	NewestDownload  time.Time      `json:"newest_download"`
}

// NewManager opens (or creates) the database at dbPath.
func NewManager(dbPath string, logger *slog.Logger) (*Manager, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}

	m := &Manager{db: db, logger: logger}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDownloads, bucketNowPlaying} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", string(b), err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Storage manager initialized", "db_path", dbPath)
	return m, nil
}

// Close closes the database.
func (m *Manager) Close() error {
	m.logger.Info("Closing storage manager")
	return m.db.Close()
}

// HealthCheck verifies the database answers a read transaction.
func (m *Manager) HealthCheck() error {
	return m.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDownloads) == nil {
			return fmt.Errorf("downloads bucket missing")
		}
		return nil
	})
}

func downloadKey(kind, mediaID string) []byte {
	return []byte(kind + ":" + mediaID)
}

// AddDownloadRecord stores or replaces a download record.
func (m *Manager) AddDownloadRecord(record *DownloadRecord) error {
	if record.MediaKind == "" || record.MediaID == "" {
		return fmt.Errorf("download record must have media kind and media id")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal download record: %w", err)
	}

	key := downloadKey(record.MediaKind, record.MediaID)
	err = m.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDownloads).Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to store download record: %w", err)
	}

	m.logger.Debug("Download record added",
		"key", string(key),
		"size_bytes", record.Size)
	return nil
}

// GetDownloadRecord looks up a record by kind and media id.
func (m *Manager) GetDownloadRecord(kind, mediaID string) (*DownloadRecord, error) {
	var record DownloadRecord
	err := m.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDownloads).Get(downloadKey(kind, mediaID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListDownloadRecords returns download records, filtered by kind when kind is non-empty.
func (m *Manager) ListDownloadRecords(kind string) ([]*DownloadRecord, error) {
	var records []*DownloadRecord

	err := m.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDownloads).ForEach(func(k, v []byte) error {
			if kind != "" && !strings.HasPrefix(string(k), kind+":") {
				return nil
			}

			var record DownloadRecord
			if err := json.Unmarshal(v, &record); err != nil {
				m.logger.Warn("Failed to unmarshal download record",
					"key", string(k),
					"error", err)
				return nil
			}
			records = append(records, &record)
			return nil
		})
	})

	return records, err
}

// GetStorageStats aggregates the download records.
func (m *Manager) GetStorageStats() (*StorageStats, error) {
	records, err := m.ListDownloadRecords("")
	if err != nil {
		return nil, err
	}

	stats := &StorageStats{DownloadsByKind: make(map[string]int)}
	for _, r := range records {
		stats.TotalDownloads++
		stats.TotalSize += r.Size
		stats.DownloadsByKind[r.MediaKind]++
		if r.DownloadedAt.After(stats.NewestDownload) {
			stats.NewestDownload = r.DownloadedAt
		}
	}
	return stats, nil
}

// RecordNowPlaying appends a snapshot to the now-playing history.
func (m *Manager) RecordNowPlaying(records []NowPlayingRecord) error {
	if len(records) == 0 {
		return nil
	}

	return m.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNowPlaying)
		for _, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to marshal now playing record: %w", err)
			}
			key := fmt.Sprintf("%020d:%010d", r.SeenAt.UnixNano(), r.PlayerID)
			if err := bucket.Put([]byte(key), data); err != nil {
				return fmt.Errorf("failed to store now playing record: %w", err)
			}
		}
		return nil
	})
}

// RecentNowPlaying returns up to limit history entries, newest first.
func (m *Manager) RecentNowPlaying(limit int) ([]*NowPlayingRecord, error) {
	var out []*NowPlayingRecord

	err := m.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketNowPlaying).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var r NowPlayingRecord
			if err := json.Unmarshal(v, &r); err != nil {
				m.logger.Warn("Failed to unmarshal now playing record",
					"key", string(k),
					"error", err)
				continue
			}
			out = append(out, &r)
		}
		return nil
	})

	return out, err
}

// PruneNowPlaying deletes history entries older than cutoff and returns how many were removed.
func (m *Manager) PruneNowPlaying(cutoff time.Time) (int, error) {
	limit := []byte(fmt.Sprintf("%020d", cutoff.UnixNano()))
	removed := 0

	err := m.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketNowPlaying).Cursor()
		for k, _ := c.First(); k != nil && string(k[:20]) < string(limit); k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})

	return removed, err
}
