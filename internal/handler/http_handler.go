package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/elviDev/ls-internet-radio-sub002/internal/broadcast"
)

// HTTPHandler serves the read-only broadcast API.
type HTTPHandler struct {
	manager *broadcast.Manager
}

func NewHTTPHandler(manager *broadcast.Manager) *HTTPHandler {
	return &HTTPHandler{manager: manager}
}

// LiveBroadcastsResponse is the API response for the live listing.
type LiveBroadcastsResponse struct {
	Broadcasts []string `json:"broadcasts"`
	Total      int      `json:"total"`
}

// GetLiveBroadcasts handles GET /api/v1/broadcasts
func (h *HTTPHandler) GetLiveBroadcasts(w http.ResponseWriter, r *http.Request) {
	ids := h.manager.LiveBroadcasts()
	writeJSON(w, LiveBroadcastsResponse{Broadcasts: ids, Total: len(ids)})
}

// GetBroadcastInfo handles GET /api/v1/broadcasts/{broadcast_id}
func (h *HTTPHandler) GetBroadcastInfo(w http.ResponseWriter, r *http.Request) {
	broadcastID := mux.Vars(r)["broadcast_id"]
	if broadcastID == "" {
		http.Error(w, "broadcast_id is required", http.StatusBadRequest)
		return
	}

	info, err := h.manager.Info(broadcastID)
	if err != nil {
		http.Error(w, "broadcast not found", http.StatusNotFound)
		return
	}
	writeJSON(w, info)
}

// GetBroadcastStats handles GET /api/v1/broadcasts/{broadcast_id}/stats
func (h *HTTPHandler) GetBroadcastStats(w http.ResponseWriter, r *http.Request) {
	broadcastID := mux.Vars(r)["broadcast_id"]
	if broadcastID == "" {
		http.Error(w, "broadcast_id is required", http.StatusBadRequest)
		return
	}

	stats, err := h.manager.Stats(broadcastID)
	if err != nil {
		http.Error(w, "broadcast not found", http.StatusNotFound)
		return
	}
	writeJSON(w, stats)
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// RegisterRoutes mounts the API on the router.
func (h *HTTPHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/broadcasts", h.GetLiveBroadcasts).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/broadcasts/{broadcast_id}", h.GetBroadcastInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/broadcasts/{broadcast_id}/stats", h.GetBroadcastStats).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
