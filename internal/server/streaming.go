package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opd-ai/go-sonic/internal/downloader"
	"github.com/opd-ai/go-sonic/internal/media"
)

// handleStream serves a downloaded copy with Range support when one exists
// and no transcoding was requested. Otherwise it redirects to the stream URL
// on the Subsonic server.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	id := media.ParseID(chi.URLParam(r, "id"))
	if id.IsAbsent() {
		s.writeErrorResponse(w, http.StatusBadRequest, "Media ID is required", nil)
		return
	}

	maxBitRate, err := parseUintParam(r, "maxBitRate")
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid maxBitRate", err)
		return
	}
	format := r.URL.Query().Get("format")

	var item media.Streamable
	switch kind {
	case downloader.KindSong:
		item = &media.Song{ID: id}
	case downloader.KindVideo:
		item = &media.Video{ID: id}
	case downloader.KindEpisode:
		item = &media.Episode{StreamID: id}
	default:
		s.writeErrorResponse(w, http.StatusBadRequest, "Unsupported media kind", nil)
		return
	}
	item.SetMaxBitRate(maxBitRate)
	item.SetTranscoding(format)

	s.logger.Debug("Stream request",
		"media_kind", kind,
		"media_id", id.String(),
		"range", r.Header.Get("Range"))

	if maxBitRate == 0 && (format == "" || format == "raw") {
		if path, ok := s.localCopy(kind, id.String()); ok {
			s.serveLocalFile(w, r, path)
			return
		}
	}

	u, err := item.StreamURL(s.backend)
	if err != nil {
		s.writeMediaError(w, "Failed to build stream URL", err)
		return
	}
	http.Redirect(w, r, u, http.StatusFound)
}

// localCopy returns the path of a downloaded file that still exists on disk.
func (s *Server) localCopy(kind, id string) (string, bool) {
	rec, err := s.storage.GetDownloadRecord(kind, id)
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(rec.LocalPath); err != nil {
		s.logger.Warn("Downloaded file missing on disk",
			"media_id", id,
			"path", rec.LocalPath)
		return "", false
	}
	return rec.LocalPath, true
}

// serveLocalFile serves a file with HTTP Range support via http.ServeContent.
func (s *Server) serveLocalFile(w http.ResponseWriter, r *http.Request, path string) {
	file, err := os.Open(path)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to open media file", err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to get file info", err)
		return
	}

	w.Header().Set("Content-Type", detectContentType(path, file))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), file)
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".ts":   "video/mp2t",
}

// detectContentType picks a MIME type from the extension, falling back to
// content sniffing. The file offset is restored afterwards.
func detectContentType(path string, file io.ReadSeeker) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}

	buf := make([]byte, 512)
	n, _ := io.ReadFull(file, buf)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "application/octet-stream"
	}
	return http.DetectContentType(buf[:n])
}
