package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexboard/internal/api"
	"github.com/dgnsrekt/gexboard/internal/config"
	"github.com/dgnsrekt/gexboard/internal/session"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalytics returns the latest fully computed result. 404 before the
// first cycle completes; the front end treats that as "loading".
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	latest := s.coordinator.Latest()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no analytics computed yet")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleSetSymbol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := config.ValidateSymbol(req.Symbol); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.coordinator.SetSymbol(req.Symbol)
	s.persistSession()
	writeJSON(w, http.StatusOK, s.coordinator.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.View())
}

func (s *Server) handlePutSession(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body")
		return
	}
	sess, err := session.Decode(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.coordinator.SetView(sess.Metric, sess.ExpirationMode, sess.TrendFilter)
	if sess.Symbol != s.coordinator.View().Symbol {
		s.coordinator.SetSymbol(sess.Symbol)
	}
	s.persistSession()
	writeJSON(w, http.StatusOK, s.coordinator.View())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing required 'q' query parameter")
		return
	}
	symbols, err := s.client.Search(r.Context(), query)
	if err != nil {
		s.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusBadGateway, "search unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": symbols})
}

func (s *Server) handleRefreshPeriod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds < 5 {
		writeError(w, http.StatusBadRequest, "seconds must be >= 5")
		return
	}

	s.coordinator.SetRefreshInterval(req.Seconds)
	if err := s.client.SetRefreshPeriod(r.Context(), req.Seconds); err != nil {
		// Local schedule already changed; upstream sync is best effort.
		s.logger.Warn("upstream refresh-period update failed", zap.Error(err))
	}
	s.persistSession()
	writeJSON(w, http.StatusOK, map[string]int{"seconds": req.Seconds})
}

func (s *Server) handlePlaybackEnter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := config.ValidateSymbol(req.Symbol); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dates, err := s.engine.Enter(r.Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"dates": []string{}})
			return
		}
		writeError(w, http.StatusBadGateway, "listing dates failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

func (s *Server) handlePlaybackLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
		Date   string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := config.ValidateSymbol(req.Symbol); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := config.ValidateDate(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.Load(r.Context(), req.Symbol, req.Date); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no history for that date")
			return
		}
		writeError(w, http.StatusBadGateway, "loading history failed")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Session())
}

func (s *Server) handlePlaybackPlay(w http.ResponseWriter, r *http.Request) {
	s.engine.Play()
	writeJSON(w, http.StatusOK, s.engine.Session())
}

func (s *Server) handlePlaybackPause(w http.ResponseWriter, r *http.Request) {
	s.engine.Pause()
	writeJSON(w, http.StatusOK, s.engine.Session())
}

func (s *Server) handlePlaybackSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.engine.Seek(req.Index)
	writeJSON(w, http.StatusOK, s.engine.Session())
}

func (s *Server) handlePlaybackStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.engine.Step(req.Delta)
	writeJSON(w, http.StatusOK, s.engine.Session())
}

func (s *Server) handlePlaybackSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed <= 0 {
		writeError(w, http.StatusBadRequest, "speed must be > 0")
		return
	}
	s.engine.SetSpeed(req.Speed)
	writeJSON(w, http.StatusOK, s.engine.Session())
}

func (s *Server) handlePlaybackExit(w http.ResponseWriter, r *http.Request) {
	s.engine.Exit()
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.engine.State())})
}

func (s *Server) handlePlaybackSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   s.engine.State(),
		"session": s.engine.Session(),
	})
}

func (s *Server) persistSession() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.coordinator.View()); err != nil {
		s.logger.Warn("session save failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
