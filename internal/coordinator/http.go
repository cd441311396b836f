package coordinator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"nrega-scraper/internal/model"
)

type statusResponse struct {
	OK bool `json:"ok"`
	State
	Now string `json:"now"`
}

type runResponse struct {
	Started   bool   `json:"started"`
	IsRunning bool   `json:"isRunning"`
	Message   string `json:"message"`
}

type diagResponse struct {
	Started bool   `json:"started"`
	PID     int    `json:"pid"`
	Message string `json:"message"`
}

type errorResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}

// Handler exposes the coordinator over http: "/" and "/health" report the
// state, "/run" starts a run and "/diag" starts diagnostics.
func (c *Coordinator) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/", "/health":
			writeJSON(w, http.StatusOK, statusResponse{
				OK:    true,
				State: c.Status(),
				Now:   model.FormatTimestamp(time.Now()),
			})
		case "/run":
			started := c.Start()
			res := runResponse{
				Started:   started,
				IsRunning: c.Status().IsRunning,
				Message:   "Already running",
			}
			status := http.StatusOK
			if started {
				res.Message = "Run started"
				status = http.StatusAccepted
			}
			writeJSON(w, status, res)
		case "/diag":
			c.DiagnoseAsync()
			writeJSON(w, http.StatusAccepted, diagResponse{
				Started: true,
				PID:     c.pid,
				Message: "diag started",
			})
		default:
			writeJSON(w, http.StatusNotFound, errorResponse{Message: "Not Found"})
		}
	})
}
