package server

import (
	"context"
	"time"

	"github.com/opd-ai/go-sonic/internal/storage"
)

// historyRetention bounds how long now-playing snapshots are kept.
const historyRetention = 7 * 24 * time.Hour

// poller periodically resolves now playing, records the snapshot and pushes
// it to WebSocket clients.
type poller struct {
	server   *Server
	interval time.Duration
	now      func() time.Time
}

func newPoller(s *Server, interval time.Duration) *poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &poller{server: s, interval: interval, now: time.Now}
}

func (p *poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.server.logger.Info("Starting now playing poller", "interval", p.interval)
	for {
		if err := p.poll(ctx); err != nil {
			p.server.logger.Warn("Now playing poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			p.server.logger.Info("Now playing poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// poll runs one cycle. Storage failures are logged; the snapshot is still broadcast.
func (p *poller) poll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	items, err := p.server.resolveNowPlaying(ctx)
	if err != nil {
		return err
	}

	seenAt := p.now()
	records := make([]storage.NowPlayingRecord, 0, len(items))
	for _, it := range items {
		records = append(records, storage.NowPlayingRecord{
			User:       it.User,
			PlayerID:   it.PlayerID,
			MediaID:    it.MediaID,
			IsVideo:    it.IsVideo,
			Title:      it.Title(),
			MinutesAgo: it.MinutesAgo,
			SeenAt:     seenAt,
		})
	}

	store := p.server.storage
	if err := store.RecordNowPlaying(records); err != nil {
		p.server.logger.Error("Failed to record now playing", "error", err)
	}
	if n, err := store.PruneNowPlaying(seenAt.Add(-historyRetention)); err != nil {
		p.server.logger.Error("Failed to prune now playing history", "error", err)
	} else if n > 0 {
		p.server.logger.Debug("Pruned now playing history", "removed", n)
	}

	p.server.hub.broadcast(Message{Type: MessageNowPlaying, NowPlaying: items})
	return nil
}
