package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
)

const streamKeepalive = 30 * time.Second

type PunchHandler interface {
	Preview(w http.ResponseWriter, r *http.Request)
	Commit(w http.ResponseWriter, r *http.Request)

	// SSE
	GetStreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type punchHandlerImpl struct {
	decisionService attendance.DecisionService
	jwtService      jwt.Service
	hub             *sse.Hub
}

func NewPunchHandler(decisionService attendance.DecisionService, jwtService jwt.Service, hub *sse.Hub) PunchHandler {
	return &punchHandlerImpl{
		decisionService: decisionService,
		jwtService:      jwtService,
		hub:             hub,
	}
}

type streamTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func decodePunch(r *http.Request) (attendance.PunchRequest, error) {
	var req attendance.PunchRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	return req, err
}

// Preview implements PunchHandler.
func (h *punchHandlerImpl) Preview(w http.ResponseWriter, r *http.Request) {
	req, err := decodePunch(r)
	if err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	decision, err := h.decisionService.Preview(r.Context(), req)
	if err != nil {
		response.HandleDecisionError(w, err, &decision)
		return
	}

	response.Success(w, decision)
}

// Commit implements PunchHandler.
func (h *punchHandlerImpl) Commit(w http.ResponseWriter, r *http.Request) {
	req, err := decodePunch(r)
	if err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	decision, err := h.decisionService.Commit(r.Context(), req)
	if err != nil {
		response.HandleDecisionError(w, err, &decision)
		return
	}

	response.Created(w, "Punch recorded", decision)
}

// GetStreamToken issues a short-lived token for the punch stream
func (h *punchHandlerImpl) GetStreamToken(w http.ResponseWriter, r *http.Request) {
	subject := middleware.Subject(r)
	if subject == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	token, expiresIn, err := h.jwtService.GenerateStreamToken(subject)
	if err != nil {
		slog.Error("Failed to generate stream token", "error", err)
		response.InternalServerError(w, "Failed to generate stream token")
		return
	}

	response.Success(w, streamTokenResponse{
		Token:     token,
		ExpiresIn: expiresIn,
	})
}

// Stream pushes committed punches to the caller. With person_id set only
// that person's punches are sent.
func (h *punchHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// EventSource can't send headers, so the token comes in the query
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	subject, err := h.jwtService.ValidateStreamToken(tokenStr)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	topic := sse.TopicPunches
	if raw := r.URL.Query().Get("person_id"); raw != "" {
		personID, ok := attendance.ParsePersonID(raw)
		if !ok {
			http.Error(w, "Invalid person_id", http.StatusBadRequest)
			return
		}
		topic = sse.PersonTopic(personID)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(topic)
	defer cleanup()

	connected, _ := json.Marshal(map[string]string{"status": "connected", "subscriber": subject, "topic": topic})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				slog.Warn("Failed to encode stream event", "event", event.Event, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
