package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mikey/llm-spam-reply/internal/core"
	"go.uber.org/zap"
)

// Submitter schedules a workflow run for one inbound email
type Submitter interface {
	Submit(ctx context.Context, payload *core.InboundPayload) (*core.Run, error)
}

// Suppressor decides whether a sender must not receive a reply
type Suppressor interface {
	IsSuppressed(from string) bool
}

// Handler serves the inbound email webhook
type Handler struct {
	submitter    Submitter
	suppressor   Suppressor
	secret       string
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewHandler creates a new webhook handler. An empty secret disables the
// bearer check, a nil suppressor disables sender suppression.
func NewHandler(submitter Submitter, suppressor Suppressor, secret string, maxBodyBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		submitter:    submitter,
		suppressor:   suppressor,
		secret:       secret,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// Routes builds the chi router with the webhook and health endpoints
func (h *Handler) Routes(webhookPath string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Post(webhookPath, h.Inbound)

	return r
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Inbound validates the webhook body and schedules the workflow without
// waiting for it to finish
func (h *Handler) Inbound(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("Rejected malformed webhook", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	if err := payload.Validate(); err != nil {
		h.logger.Warn("Rejected incomplete webhook", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	inbound := payload.ToInbound()
	if h.suppressor != nil && h.suppressor.IsSuppressed(inbound.From) {
		h.logger.Info("Skipping suppressed sender",
			zap.String("email_id", inbound.EmailID),
			zap.String("from", inbound.From))
		writeJSON(w, http.StatusOK, map[string]bool{"skipped": true})
		return
	}

	run, err := h.submitter.Submit(r.Context(), inbound)
	if err != nil {
		h.logger.Error("Failed to schedule workflow",
			zap.String("email_id", inbound.EmailID),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.logger.Info("Workflow scheduled",
		zap.String("run_id", run.ID),
		zap.String("email_id", inbound.EmailID),
		zap.String("event", inbound.EventType))
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": run.ID})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
