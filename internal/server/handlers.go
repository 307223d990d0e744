package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nwchenyw/tw-live-frontend/internal/errors"
	"github.com/nwchenyw/tw-live-frontend/internal/logger"
	"github.com/nwchenyw/tw-live-frontend/internal/models"
	"github.com/nwchenyw/tw-live-frontend/internal/store"
	"github.com/nwchenyw/tw-live-frontend/internal/youtube"
	"github.com/nwchenyw/tw-live-frontend/pkg/version"
)

const msgUnparsableWatchURL = "watch_url 無法解析成 11 碼 video_id"

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.config.StaticDir != "" {
		http.Redirect(w, r, "/static/index.html", http.StatusFound)
		return
	}
	s.handleVersion(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.Ping(ctx); err != nil {
		s.writeError(w, r, errors.WrapInternalError(err, "db error: "+err.Error()))
		return
	}
	watching, cached, err := s.store.Counts(ctx)
	if err != nil {
		s.writeError(w, r, errors.WrapInternalError(err, "db error: "+err.Error()))
		return
	}
	s.writeJSON(w, r, http.StatusOK, models.Health{OK: true, Watching: watching, Cached: cached})
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	regs, err := s.store.ListVideos(r.Context())
	if err != nil {
		s.writeError(w, r, errors.WrapInternalError(err, "failed to list videos"))
		return
	}

	items := make([]models.VideoItem, 0, len(regs))
	for _, reg := range regs {
		items = append(items, reg.Item())
	}
	s.writeJSON(w, r, http.StatusOK, items)
}

func (s *Server) handleAddVideo(w http.ResponseWriter, r *http.Request) {
	var req models.VideoCreate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, r, errors.New(errors.ErrorTypeValidation, "invalid request body", http.StatusUnprocessableEntity))
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, errors.New(errors.ErrorTypeValidation, err.Error(), http.StatusUnprocessableEntity))
		return
	}

	videoID, ok := youtube.ExtractVideoID(req.WatchURL)
	if !ok {
		s.writeError(w, r, errors.NewValidationError(msgUnparsableWatchURL).
			WithCode("UNPARSABLE_WATCH_URL").
			WithDetails(map[string]interface{}{"watch_url": req.WatchURL}))
		return
	}

	reg, created, err := s.store.AddVideo(r.Context(), strings.TrimSpace(req.WatchURL), videoID, req.Name)
	if err != nil {
		s.writeError(w, r, errors.WrapInternalError(err, "failed to add video"))
		return
	}

	logger.FromContext(r.Context()).WithFields(logger.Fields{
		"video_id": videoID,
		"created":  created,
	}).Info("Video added")
	s.writeJSON(w, r, http.StatusOK, reg.Item())
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	videoID := mux.Vars(r)["video_id"]

	if err := s.store.DeleteVideo(r.Context(), videoID); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			s.writeError(w, r, errors.NewNotFoundError(""))
			return
		}
		s.writeError(w, r, errors.WrapInternalError(err, "failed to delete video"))
		return
	}

	logger.WithVideo(s.logger, videoID).Info("Video removed")
	s.writeJSON(w, r, http.StatusOK, models.VideoRemoved{Removed: videoID})
}

func (s *Server) handleListStatus(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListStatus(r.Context())
	if err != nil {
		s.writeError(w, r, errors.WrapInternalError(err, "failed to list status"))
		return
	}
	s.writeJSON(w, r, http.StatusOK, items)
}
