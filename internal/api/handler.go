package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chideracloud/blue-green-deployment/internal/accesslog"
	"github.com/chideracloud/blue-green-deployment/internal/alerting"
	"github.com/chideracloud/blue-green-deployment/internal/history"
	"github.com/chideracloud/blue-green-deployment/internal/stream"
)

// JWTClaims represents the claims in a JWT token
type JWTClaims struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	UserID      string `json:"user_id"`
	jwt.RegisteredClaims
}

type Config struct {
	// JWTSecret guards /api and /ws routes. Empty leaves them open, which
	// is logged at startup.
	JWTSecret   string
	PrimaryPool accesslog.Pool
	Maintenance bool
	WebhookSet  bool
}

// Handler serves the watcher's operational API: health probes, a status
// snapshot, the alert journal, and the live alert feed.
type Handler struct {
	cfg       Config
	jwtSecret []byte

	failover *alerting.FailoverDetector
	errRate  *alerting.ErrorRateDetector
	journal  *history.Journal
	hub      *stream.Hub

	ready atomic.Bool
}

// NewHandler wires the API. journal may be nil when no history DSN is
// configured.
func NewHandler(cfg Config, failover *alerting.FailoverDetector, errRate *alerting.ErrorRateDetector, journal *history.Journal, hub *stream.Hub) *Handler {
	h := &Handler{
		cfg:      cfg,
		failover: failover,
		errRate:  errRate,
		journal:  journal,
		hub:      hub,
	}
	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, API authentication disabled")
	} else {
		h.jwtSecret = []byte(cfg.JWTSecret)
	}
	return h
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/readyz", h.handleReadyz)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/api/alerts", h.handleAlerts)
	mux.HandleFunc("/ws/alerts", h.handleWS)
}

// SetReady flips the readiness probe once the tailer is attached.
func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

type statusResponse struct {
	Pool              string                      `json:"pool"`
	PrimaryPool       string                      `json:"primary_pool"`
	LastChange        string                      `json:"last_change,omitempty"`
	Maintenance       bool                        `json:"maintenance"`
	WebhookConfigured bool                        `json:"webhook_configured"`
	Windows           []alerting.PoolWindowStatus `json:"windows"`
	WSClients         int                         `json:"ws_clients"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Pool:              string(h.failover.Current()),
		PrimaryPool:       string(h.cfg.PrimaryPool),
		Maintenance:       h.cfg.Maintenance,
		WebhookConfigured: h.cfg.WebhookSet,
		Windows:           h.errRate.Status(),
		WSClients:         h.hub.Subscribers(),
	}
	if lc := h.failover.LastChange(); !lc.IsZero() {
		resp.LastChange = lc.UTC().Format(time.RFC3339)
	}
	writeJSON(w, resp)
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	if h.journal == nil {
		writeJSON(w, []history.Entry{})
		return
	}

	entries, err := h.journal.Recent(limit)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, entries)
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	h.hub.ServeWS(w, r)
}

// authorize admits the request when no secret is configured or the token
// checks out, and writes the 401 itself otherwise.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.jwtSecret == nil {
		return true
	}
	if h.validateToken(getTokenFromRequest(r)) == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (h *Handler) validateToken(tokenString string) *JWTClaims {
	if h.jwtSecret == nil || tokenString == "" {
		return nil
	}
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return nil
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil
	}
	return claims
}

func getTokenFromRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return ""
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
