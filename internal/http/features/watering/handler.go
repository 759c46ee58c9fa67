package watering

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flower-app/flower/internal/http/middleware"
	"github.com/flower-app/flower/internal/httputil"
	"github.com/flower-app/flower/pkg/directory"
	"github.com/flower-app/flower/pkg/domain"
	"github.com/flower-app/flower/pkg/watering"
)

// Handler handles the watering endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *watering.Service
	feed         *watering.Feed
	watchers     *watering.Watchers
	names        *directory.NameCache
	dryAfter     time.Duration
	tickInterval time.Duration
}

// NewHandler creates a new watering handler.
func NewHandler(logger *slog.Logger, service *watering.Service, feed *watering.Feed, watchers *watering.Watchers, names *directory.NameCache, dryAfter, tickInterval time.Duration) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		feed:         feed,
		watchers:     watchers,
		names:        names,
		dryAfter:     dryAfter,
		tickInterval: tickInterval,
	}
}

// RecordRequest represents a watering record request. ClientID is the
// client's optimistic-event identifier, echoed back on the stored event.
type RecordRequest struct {
	ClientID *uuid.UUID `json:"client_id,omitempty"`
}

// EventResponse is a watering event decorated with the actor's display
// name. Username is "" while the name is still resolving.
type EventResponse struct {
	ID        string     `json:"id"`
	CoupleID  string     `json:"couple_id"`
	UserID    string     `json:"user_id"`
	ClientID  *uuid.UUID `json:"client_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Username  string     `json:"username"`
}

func (h *Handler) eventResponse(e *domain.WateringEvent) EventResponse {
	return EventResponse{
		ID:        e.ID.String(),
		CoupleID:  e.CoupleID,
		UserID:    e.UserID.String(),
		ClientID:  e.ClientID,
		Timestamp: e.Timestamp,
		Username:  h.names.Lookup(e.UserID),
	}
}

// Record appends one watering event. Every tap is an event: there is no
// deduplication and no throttling here.
// POST /v1/couples/{coupleID}/waterings
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	coupleID := chi.URLParam(r, "coupleID")
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req RecordRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	// When the client stamped an id on its tap, its open watch streams get
	// the event immediately; the confirmed row retires the pending copy.
	if req.ClientID != nil {
		h.watchers.Optimistic(coupleID, userID, *req.ClientID, time.Now())
	}

	event, err := h.service.Record(r.Context(), coupleID, userID, req.ClientID)
	if err != nil {
		if req.ClientID != nil {
			h.watchers.Abandon(coupleID, userID, *req.ClientID)
		}
		h.logger.Error("recording watering failed", "error", err, "couple_id", coupleID)
		httputil.Error(w, http.StatusInternalServerError, "failed to record watering")
		return
	}

	httputil.JSON(w, http.StatusCreated, h.eventResponse(event))
}

// Today lists the couple's events since the caller's start-of-local-day.
// GET /v1/couples/{coupleID}/waterings/today?since=RFC3339
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	coupleID := chi.URLParam(r, "coupleID")
	since, err := parseSince(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.service.Today(r.Context(), coupleID, since)
	if err != nil {
		h.logger.Error("listing waterings failed", "error", err, "couple_id", coupleID)
		httputil.Error(w, http.StatusInternalServerError, "failed to list waterings")
		return
	}

	out := make([]EventResponse, 0, len(events))
	for i := range events {
		out = append(out, h.eventResponse(&events[i]))
	}
	httputil.JSON(w, http.StatusOK, out)
}

// Latest returns the couple's most recent event, or 204 when the log is
// empty.
// GET /v1/couples/{coupleID}/waterings/latest
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	coupleID := chi.URLParam(r, "coupleID")

	event, err := h.service.Latest(r.Context(), coupleID)
	if err != nil {
		h.logger.Error("loading latest watering failed", "error", err, "couple_id", coupleID)
		httputil.Error(w, http.StatusInternalServerError, "failed to load latest watering")
		return
	}
	if event == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.JSON(w, http.StatusOK, h.eventResponse(event))
}

// Watch streams view snapshots for the couple as server-sent events. One
// "view" event is sent per projection update; the stream ends when the
// client disconnects, releasing its subscriptions.
// GET /v1/couples/{coupleID}/watch?since=RFC3339
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	coupleID := chi.URLParam(r, "coupleID")
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	since, err := parseSince(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	runner := h.feed.Watch(r.Context(), coupleID, userID, since, h.dryAfter, h.tickInterval)
	defer runner.Close()
	release := h.watchers.Register(coupleID, userID, runner)
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case view, ok := <-runner.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(view)
			if err != nil {
				h.logger.Error("encoding view failed", "error", err)
				return
			}
			fmt.Fprintf(w, "event: view\ndata: %s\n\n", payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func parseSince(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, fmt.Errorf("since query parameter is required (RFC3339 start of local day)")
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since parameter: %v", err)
	}
	return since, nil
}
