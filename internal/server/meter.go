package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"combat-meter/internal/domain"
	"combat-meter/internal/live"
	"combat-meter/internal/middleware"
	"combat-meter/internal/repository"
	"combat-meter/internal/service"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const liveTimeout = 2 * time.Second

// LiveSource is the running engine as seen by the reporting API.
type LiveSource interface {
	Snapshot(ctx context.Context) (*domain.Encounter, error)
	RequestReset(ctx context.Context) error
}

type MeterServer struct {
	encounterSvc *service.EncounterService
	statsSvc     *service.StatsService
	live         LiveSource
	logger       zerolog.Logger
}

func NewMeterServer(encounterSvc *service.EncounterService, statsSvc *service.StatsService, engine *live.Engine, logger zerolog.Logger) *MeterServer {
	return &MeterServer{encounterSvc: encounterSvc, statsSvc: statsSvc, live: engine, logger: logger}
}

func (s *MeterServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/encounters", s.listEncounters)
	mux.HandleFunc("POST /api/encounters/load", s.loadEncounters)
	mux.HandleFunc("GET /api/encounters/{id}", s.getEncounter)
	mux.HandleFunc("DELETE /api/encounters/{id}", s.deleteEncounter)
	mux.HandleFunc("GET /api/encounters/{id}/upload", s.getUpload)
	mux.HandleFunc("GET /api/stats/raids", s.raidStats)
	mux.HandleFunc("GET /api/live", s.liveEncounter)
	mux.HandleFunc("POST /api/live/reset", s.resetLive)
	return mux
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: middleware.GetRequestID(r.Context())})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid encounter id")
	}
	return id, nil
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func (s *MeterServer) listEncounters(w http.ResponseWriter, r *http.Request) {
	page, err := s.encounterSvc.List(r.Context(), repository.ListFilter{
		Search:   r.URL.Query().Get("search"),
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "pageSize"),
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *MeterServer) getEncounter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	enc, err := s.encounterSvc.Get(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrEncounterNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, enc)
	}
}

func (s *MeterServer) deleteEncounter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	err = s.encounterSvc.Delete(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrEncounterNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *MeterServer) getUpload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	upload, err := s.encounterSvc.Upload(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if upload == nil {
		writeError(w, r, http.StatusNotFound, errors.New("encounter was not uploaded"))
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

type loadRequest struct {
	IDs []int64 `json:"ids"`
}

type loadItem struct {
	ID        int64             `json:"id"`
	Encounter *domain.Encounter `json:"encounter,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (s *MeterServer) loadEncounters(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	results, err := s.encounterSvc.Load(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	items := make([]loadItem, len(results))
	for i, res := range results {
		items[i] = loadItem{ID: res.ID, Encounter: res.Encounter}
		if res.Err != nil {
			items[i].Error = res.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *MeterServer) raidStats(w http.ResponseWriter, r *http.Request) {
	raids, err := s.statsSvc.RaidStats(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, raids)
}

func (s *MeterServer) liveEncounter(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), liveTimeout)
	defer cancel()

	enc, err := s.live.Snapshot(ctx)
	switch {
	case errors.Is(err, live.ErrNoActiveEncounter):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, errors.New("live engine is not running"))
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, enc)
	}
}

func (s *MeterServer) resetLive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), liveTimeout)
	defer cancel()

	if err := s.live.RequestReset(ctx); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("live engine is not running"))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
