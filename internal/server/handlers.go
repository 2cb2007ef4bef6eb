package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opd-ai/go-sonic/internal/downloader"
	"github.com/opd-ai/go-sonic/internal/media"
	"github.com/opd-ai/go-sonic/internal/subsonic"
)

// APIResponse represents a standard API response structure.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// NowPlayingItem is a now-playing entry with its resolved media details.
type NowPlayingItem struct {
	User       string       `json:"user"`
	PlayerID   uint         `json:"player_id"`
	MinutesAgo uint         `json:"minutes_ago"`
	MediaID    uint64       `json:"media_id"`
	IsVideo    bool         `json:"is_video"`
	Song       *media.Song  `json:"song,omitempty"`
	Video      *media.Video `json:"video,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Title returns the resolved title, or "" when resolution failed.
func (n NowPlayingItem) Title() string {
	switch {
	case n.Song != nil:
		return n.Song.Title
	case n.Video != nil:
		return n.Video.Title
	}
	return ""
}

// StartDownloadRequest asks the server to download one media item.
type StartDownloadRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// handleHealth reports whether storage and the Subsonic server are reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.HealthCheck(); err != nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "Storage unavailable", err)
		return
	}
	if err := s.backend.Ping(r.Context()); err != nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "Subsonic server unavailable", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Server is healthy",
	})
}

// handleNowPlaying polls the session and resolves each entry.
func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	items, err := s.resolveNowPlaying(r.Context())
	if err != nil {
		s.writeMediaError(w, "Failed to poll now playing", err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: items})
}

// resolveNowPlaying polls once and looks up every entry. An entry that fails
// to resolve is kept with its error so one missing track does not hide the rest.
func (s *Server) resolveNowPlaying(ctx context.Context) ([]NowPlayingItem, error) {
	entries, err := s.backend.NowPlaying(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]NowPlayingItem, 0, len(entries))
	for _, np := range entries {
		item := NowPlayingItem{
			User:       np.User(),
			PlayerID:   np.PlayerID(),
			MinutesAgo: np.MinutesAgo(),
			MediaID:    np.MediaID(),
			IsVideo:    np.IsVideo(),
		}
		if np.IsVideo() {
			item.Video, err = np.VideoInfo(ctx, s.backend)
		} else {
			item.Song, err = np.SongInfo(ctx, s.backend)
		}
		if err != nil {
			s.logger.Warn("Failed to resolve now playing entry",
				"user", item.User,
				"media_id", item.MediaID,
				"error", err)
			item.Error = err.Error()
		}
		items = append(items, item)
	}
	return items, nil
}

// handleNowPlayingHistory returns recorded snapshots, newest first.
func (s *Server) handleNowPlayingHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	records, err := s.storage.RecentNowPlaying(limit)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to read history", err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: records})
}

// handleCoverArt proxies cover art bytes for a cover id.
func (s *Server) handleCoverArt(w http.ResponseWriter, r *http.Request) {
	size, err := parseUintParam(r, "size")
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid size", err)
		return
	}

	cover := media.CoverRef{ID: media.ParseID(chi.URLParam(r, "id"))}
	data, err := cover.CoverArt(r.Context(), s.backend, size)
	if err != nil {
		s.writeMediaError(w, "Failed to fetch cover art", err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("Cover art write failed", "error", err)
	}
}

// handleHLSPlaylist fetches and returns the parsed segmented playlist of a video.
func (s *Server) handleHLSPlaylist(w http.ResponseWriter, r *http.Request) {
	bitRate, err := parseUintParam(r, "bitRate")
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid bitRate", err)
		return
	}

	video := &media.Video{ID: media.ParseID(chi.URLParam(r, "id"))}
	video.SetMaxBitRate(bitRate)

	pl, err := s.backend.HLSPlaylist(r.Context(), video)
	if err != nil {
		s.writeMediaError(w, "Failed to fetch playlist", err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: pl})
}

// handleListDownloads lists download records, optionally filtered by ?kind=.
func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	records, err := s.storage.ListDownloadRecords(r.URL.Query().Get("kind"))
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to list downloads", err)
		return
	}
	stats, err := s.storage.GetStorageStats()
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to get storage stats", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"downloads": records,
			"stats":     stats,
		},
	})
}

// handleStartDownload resolves the item and downloads it in the background.
// Progress is reported over the WebSocket feed.
func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	if s.downloads == nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "Downloads are disabled", nil)
		return
	}

	var req StartDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Media ID is required", nil)
		return
	}

	job, err := downloader.ResolveJob(r.Context(), s.backend, req.Kind, req.ID)
	if err != nil {
		if errors.Is(err, downloader.ErrUnknownKind) {
			s.writeErrorResponse(w, http.StatusBadRequest, "Unsupported media kind", err)
			return
		}
		s.writeMediaError(w, "Failed to resolve media", err)
		return
	}

	s.logger.Info("Queued download", "media_kind", job.Kind, "media_id", job.ID)
	go func() {
		if _, err := s.downloads.Download(s.ctx, s.backend, job); err != nil {
			s.logger.Error("Background download failed",
				"media_kind", job.Kind,
				"media_id", job.ID,
				"error", err)
		}
	}()

	s.writeJSONResponse(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    req,
		Message: "Download started",
	})
}

func parseUintParam(r *http.Request, name string) (uint, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, &media.NumericError{Field: name, Value: v, Err: err}
	}
	return uint(n), nil
}

// mediaErrorStatus maps media and backend errors to HTTP statuses.
func mediaErrorStatus(err error) int {
	var apiErr *subsonic.APIError
	var httpErr *subsonic.HTTPError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, media.ErrNoCoverArt):
		return http.StatusNotFound
	case errors.As(err, &apiErr) && apiErr.Code == subsonic.CodeNotFound:
		return http.StatusNotFound
	case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	case errors.Is(err, media.ErrKindMismatch),
		errors.Is(err, media.ErrMalformedRecord),
		errors.Is(err, media.ErrMalformedPlaylist),
		errors.Is(err, media.ErrNumericParse),
		errors.Is(err, media.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeMediaError(w http.ResponseWriter, message string, err error) {
	s.writeErrorResponse(w, mediaErrorStatus(err), message, err)
}

// writeJSONResponse writes a JSON response with the specified status code.
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response with the specified status code and message.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	s.logger.Error("HTTP error response",
		"status", statusCode,
		"message", message,
		"error", err)

	errorMsg := message
	if err != nil {
		errorMsg = err.Error()
	}

	s.writeJSONResponse(w, statusCode, APIResponse{
		Success: false,
		Error:   errorMsg,
		Message: message,
	})
}
