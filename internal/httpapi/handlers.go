package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"gold-price-watcher/internal/storage"
)

// priceJSON matches the shape the front end renders.
type priceJSON struct {
	Price    string `json:"price"`
	Unit     string `json:"unit"`
	FullText string `json:"fullText"`
}

// observationJSON is a serializable history row.
type observationJSON struct {
	ID        int64  `json:"id"`
	Price     string `json:"price"`
	Unit      string `json:"unit"`
	Timestamp string `json:"timestamp"`
}

type cronJSON struct {
	Enabled    bool   `json:"enabled"`
	Expression string `json:"expression"`
}

type settingsJSON struct {
	ScrapeURL string   `json:"scrapeUrl"`
	Cron      cronJSON `json:"cron"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleCurrentPrice serves the freshest price, degrading to the last known
// value when live extraction fails.
func (s *Server) handleCurrentPrice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.prices.CurrentPrice(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}

		obs := result.Observation
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"source":  result.Source,
			"data": priceJSON{
				Price:    obs.Price.StringFixed(2),
				Unit:     obs.Unit,
				FullText: obs.Price.StringFixed(2) + obs.Unit,
			},
			"timestamp": obs.Timestamp.Format(time.RFC3339),
		})
	}
}

// handleHistory lists observations newest first. ?days=N bounds the window,
// ?days=all means the whole table, anything else falls back to the default
// window.
func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := s.historyWindow(r.URL.Query().Get("days"))

		observations, err := s.history.HistorySince(r.Context(), days)
		if err != nil {
			s.writeError(w, err)
			return
		}

		rows := make([]observationJSON, 0, len(observations))
		for _, obs := range observations {
			rows = append(rows, observationJSON{
				ID:        obs.ID,
				Price:     obs.Price.StringFixed(2),
				Unit:      obs.Unit,
				Timestamp: obs.Timestamp.Format(time.RFC3339),
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    rows,
		})
	}
}

func (s *Server) historyWindow(param string) *int {
	if param == "all" {
		return nil
	}
	days := s.opts.DefaultHistoryDays
	if param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed > 0 {
			days = parsed
		}
	}
	return &days
}

func (s *Server) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := s.settings.ScrapeURL(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		cronCfg, err := s.settings.CronConfig(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": settingsJSON{
				ScrapeURL: url,
				Cron: cronJSON{
					Enabled:    cronCfg.Enabled,
					Expression: cronCfg.Expression,
				},
			},
		})
	}
}

type settingsRequest struct {
	ScrapeURL *string `json:"scrapeUrl"`
	Cron      *struct {
		Enabled    *bool   `json:"enabled"`
		Expression *string `json:"expression"`
	} `json:"cron"`
}

// handleUpdateSettings validates, persists, then synchronises the scheduler.
// A schedule-start failure after a successful persist is reported as a
// warning, not an error: the settings did take effect.
func (s *Server) handleUpdateSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "invalid request body",
			})
			return
		}

		// All validation happens before any write.
		if req.ScrapeURL == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "invalid scrapeUrl",
			})
			return
		}
		if req.Cron != nil && req.Cron.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "invalid cron config",
			})
			return
		}

		ctx := r.Context()
		if err := s.settings.SetScrapeURL(ctx, *req.ScrapeURL); err != nil {
			s.writeError(w, err)
			return
		}

		if req.Cron == nil {
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}

		enabled := *req.Cron.Enabled
		expression := ""
		if req.Cron.Expression != nil {
			expression = *req.Cron.Expression
		}

		if err := s.settings.SaveCronConfig(ctx, enabled, expression); err != nil {
			s.writeError(w, err)
			return
		}

		if enabled && expression != "" {
			if err := s.sched.Start(expression); err != nil {
				s.logger.Error().Err(err).Msg("failed to start schedule after settings update")
				writeJSON(w, http.StatusOK, map[string]any{
					"success": true,
					"warning": "settings saved but failed to start schedule: " + err.Error(),
				})
				return
			}
		} else {
			s.sched.Stop()
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// writeError maps persistence failures to 503 and everything else to 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("request failed")

	status := http.StatusInternalServerError
	if storage.IsStoreError(err) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
