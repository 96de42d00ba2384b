package service

import (
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"

	"botfleet/internal/models"
	"botfleet/pkg/logger"
)

// RegisterRoutes mounts the bot control endpoints on the admin mux,
// next to the health and metrics handlers.
func (c *Control) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /bots", c.handleCreate)
	mux.HandleFunc("POST /bots/{id}/start", c.handleStart)
	mux.HandleFunc("POST /bots/{id}/stop", c.handleStop)
	mux.HandleFunc("GET /bots/{id}/status", c.handleStatus)
}

func (c *Control) handleCreate(w http.ResponseWriter, r *http.Request) {
	var bot models.Bot
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&bot); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := c.CreateBot(r.Context(), &bot)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (c *Control) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := c.StartBot(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (c *Control) handleStop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := c.StopBot(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (c *Control) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := c.BotStatus(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(v); err != nil {
		logger.Error("[CTRL] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	logger.Warn("[CTRL] request failed (%s): %v", http.StatusText(code), err)
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
