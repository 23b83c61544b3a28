package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/medassist/internal/scheduling"
	"github.com/wolfman30/medassist/pkg/logging"
)

// Handler wires HTTP requests to the conversation engine. This is the only
// place real I/O happens outside the scheduling client itself.
type Handler struct {
	engine     *Engine
	scheduling SchedulingService
	transcript *TranscriptStore
	logger     *logging.Logger
}

// NewHandler creates a conversation handler. transcript may be nil when the
// turn log is disabled.
func NewHandler(engine *Engine, svc SchedulingService, transcript *TranscriptStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:     engine,
		scheduling: svc,
		transcript: transcript,
		logger:     logger,
	}
}

// ChatRequest is one inbound conversational turn.
type ChatRequest struct {
	Message    string       `json:"message"`
	Attributes AttributeBag `json:"attributes"`
}

// ChatResponse is the engine's answer; Attributes must be echoed back
// verbatim on the caller's next turn.
type ChatResponse struct {
	Response   string       `json:"response"`
	Action     string       `json:"action"`
	Attributes AttributeBag `json:"attributes"`
}

// DoctorsRequest is the secondary department roster lookup.
type DoctorsRequest struct {
	Department string `json:"department"`
}

// DoctorsResponse lists the doctors of a department.
type DoctorsResponse struct {
	Doctors    []string `json:"doctors"`
	Department string   `json:"department"`
}

// Chat handles POST /chat: decode the attribute bag, run exactly one engine
// transition, re-encode the bag. Only an undecodable request body is a hard
// HTTP error; everything downstream comes back as a conversational turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode chat request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	turn := h.engine.Transition(r.Context(), req.Message, req.Attributes)

	h.recordTurn(r, req, turn)

	h.writeJSON(w, http.StatusOK, ChatResponse{
		Response:   turn.Response,
		Action:     turn.Action,
		Attributes: turn.Attributes,
	})
}

// Doctors handles POST /doctors: a direct roster lookup for UIs that render
// department pickers. Department names are normalized to capitalized form
// before the upstream call.
func (h *Handler) Doctors(w http.ResponseWriter, r *http.Request) {
	var req DoctorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode doctors request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	department := capitalize(strings.TrimSpace(req.Department))

	doctors, err := h.scheduling.ListDoctors(r.Context(), department)
	if err != nil {
		if errors.Is(err, scheduling.ErrUnavailable) {
			h.logger.Error("scheduling service unreachable", "error", err)
			http.Error(w, "Service unavailable", http.StatusBadGateway)
			return
		}
		h.logger.Warn("doctor roster lookup rejected", "department", department, "error", err)
		http.Error(w, "No doctors found for this department", http.StatusNotFound)
		return
	}
	if len(doctors) == 0 {
		http.Error(w, "No doctors found for this department", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, DoctorsResponse{Doctors: doctors, Department: department})
}

// Transcript handles GET /conversations/{phone}/transcript.
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	if h.transcript == nil {
		http.Error(w, "Transcript store is not enabled", http.StatusNotFound)
		return
	}

	phone := chi.URLParam(r, "phone")
	entries, err := h.transcript.List(r.Context(), phone, 0)
	if err != nil {
		h.logger.Error("failed to list transcript", "phone", phone, "error", err)
		http.Error(w, "Failed to load transcript", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"phone": phone, "turns": entries})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordTurn appends the turn to the transcript store when one is configured
// and the caller's phone is known. Best effort: the turn is already decided
// and a logging failure must not change the response.
func (h *Handler) recordTurn(r *http.Request, req ChatRequest, turn Turn) {
	if h.transcript == nil {
		return
	}
	phone := turn.Attributes.Phone
	if phone == "" {
		phone = req.Attributes.Phone
	}
	if phone == "" {
		return
	}
	err := h.transcript.Append(r.Context(), phone, TranscriptEntry{
		Message:  strings.TrimSpace(req.Message),
		Response: turn.Response,
		Action:   turn.Action,
		State:    string(turn.Attributes.State),
	})
	if err != nil {
		h.logger.Warn("failed to record turn", "phone", phone, "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

// capitalize upper-cases the first rune and lower-cases the rest, matching
// how the rest of the platform normalizes department names.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
