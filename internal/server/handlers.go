package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/roomfinder/internal/endpoint"
	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
	"github.com/hyperjump/roomfinder/internal/storage"
)

const maxJSONBody = 1 << 20

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	resp := s.endpoint.Handle(r.Context(), endpoint.Request{
		Authorization: r.Header.Get("Authorization"),
		Body:          r.Body,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := decodeJSON(r, &query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.gateway.Search(r.Context(), &query)
	if err != nil {
		s.respondErr(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.storage.ListRooms(r.Context())
	if err != nil {
		s.respondErr(w, "list rooms failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms, "total": len(rooms)})
}

func (s *Server) handleUpsertRoom(w http.ResponseWriter, r *http.Request) {
	var input models.RoomInput
	if err := decodeJSON(r, &input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("upsert room request", zap.String("id", input.ID), zap.String("name", input.Name))
	room, err := s.indexer.UpsertRoom(r.Context(), &input)
	if err != nil {
		s.respondErr(w, "indexing failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, room)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.storage.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, "get room failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete room request", zap.String("id", id))
	if err := s.indexer.DeleteRoom(r.Context(), id); err != nil {
		s.respondErr(w, "deletion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type reindexRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	stats, err := s.indexer.Reindex(r.Context(), req.Force)
	if err != nil {
		s.respondErr(w, "reindex failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomCount, err := s.storage.CountRooms(ctx)
	if err != nil {
		s.respondErr(w, "status: count rooms failed", err)
		return
	}
	indexedCount, err := s.storage.CountIndexedRooms(ctx)
	if err != nil {
		s.respondErr(w, "status: count indexed rooms failed", err)
		return
	}
	resp := map[string]interface{}{
		"rooms":            roomCount,
		"indexed_rooms":    indexedCount,
		"endpoint_enabled": s.endpoint != nil,
	}

	modelInfo := map[string]interface{}{
		"backend":    s.config.Embedding.Backend,
		"version":    s.config.Embedding.ModelVersion,
		"dimensions": s.config.Embedding.Dimensions,
	}
	if s.model != nil {
		modelInfo["state"] = s.model.State().String()
		modelInfo["loads"] = s.model.Loads()
		if err := s.model.LastError(); err != nil {
			modelInfo["last_error"] = err.Error()
		}
	}
	resp["model"] = modelInfo
	resp["database_path"] = s.config.Storage.DatabasePath
	if s.config.Storage.DatabasePath != ":memory:" {
		if size, err := storage.DatabaseSizeBytes(s.config.Storage.DatabasePath); err == nil {
			resp["disk_usage_bytes"] = size
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message, Code: errs.CodeInvalidInput})
}

// respondErr maps err onto its status and wire code.
func (s *Server) respondErr(w http.ResponseWriter, msg string, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondJSON(w, status, models.ErrorResponse{Error: err.Error(), Code: errs.Code(err)})
}
