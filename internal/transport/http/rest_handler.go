package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// RESTHandler exposes the session lifecycle over HTTP. Authentication happens
// upstream; the gateway forwards the validated identity in X-User-ID and
// X-User-Role headers.
type RESTHandler struct {
	service *app.SessionService
}

func NewRESTHandler(service *app.SessionService) *RESTHandler {
	return &RESTHandler{service: service}
}

// Register mounts the session routes on the router.
func (h *RESTHandler) Register(r *mux.Router) {
	r.HandleFunc("/quiz-sessions", h.CreateSession).Methods(http.MethodPost)
	r.HandleFunc("/quiz-sessions/joinQuizSession", h.Join).Methods(http.MethodPost)
	r.HandleFunc("/quiz-sessions/{id}/start", h.lifecycle(h.service.Start)).Methods(http.MethodPost)
	r.HandleFunc("/quiz-sessions/{id}/pause", h.lifecycle(h.service.Pause)).Methods(http.MethodPost)
	r.HandleFunc("/quiz-sessions/{id}/resume", h.lifecycle(h.service.Resume)).Methods(http.MethodPost)
	r.HandleFunc("/quiz-sessions/{id}/end", h.lifecycle(h.service.End)).Methods(http.MethodPost)
	r.HandleFunc("/quiz-sessions/{id}/submit", h.Submit).Methods(http.MethodPost)
	r.HandleFunc("/quiz-sessions/{id}/scoreboard", h.Scoreboard).Methods(http.MethodGet)
}

type createSessionRequest struct {
	QuizID      string `json:"quiz_id"`
	ClassroomID string `json:"classroom_id"`
}

func (h *RESTHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		writeError(w, http.StatusBadRequest, "M100", "quiz_id is required")
		return
	}
	session, err := h.service.CreateSession(r.Context(), identity, req.QuizID, req.ClassroomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type joinRequest struct {
	AccessCode string `json:"access_code"`
}

type joinResponse struct {
	Participant domain.Participant `json:"participant"`
	Rejoined    bool               `json:"rejoined"`
}

func (h *RESTHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidCode.Code, domain.ErrInvalidCode.Message)
		return
	}

	participant, err := h.service.JoinByCode(r.Context(), identity, req.AccessCode)
	if errors.Is(err, domain.ErrAlreadyJoined) {
		// M110 is a success path for the caller: the participant record exists.
		writeJSON(w, http.StatusOK, joinResponse{Participant: participant, Rejoined: true})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Participant: participant})
}

// lifecycle adapts a teacher-only transition use case to a handler.
func (h *RESTHandler) lifecycle(op func(ctx context.Context, sessionID string, caller domain.Identity) (domain.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := callerIdentity(w, r)
		if !ok {
			return
		}
		sessionID := mux.Vars(r)["id"]
		session, err := op(r.Context(), sessionID, identity)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

type submitRequest struct {
	Answers []domain.QuestionAnswer `json:"answers"`
}

type submitResponse struct {
	Accepted         bool                    `json:"accepted"`
	AlreadySubmitted bool                    `json:"alreadySubmitted,omitempty"`
	Results          []domain.QuestionResult `json:"results"`
	Summary          domain.ScoreSummary     `json:"summary"`
}

func (h *RESTHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "M100", "malformed submission payload")
		return
	}

	submission, err := h.service.Submit(r.Context(), sessionID, identity, req.Answers)
	if errors.Is(err, domain.ErrAlreadySubmitted) {
		// Report the stored score; retries never regrade.
		writeJSON(w, http.StatusOK, submitResponse{
			AlreadySubmitted: true,
			Results:          submission.Results,
			Summary:          submission.Summary,
		})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Accepted: true,
		Results:  submission.Results,
		Summary:  submission.Summary,
	})
}

func (h *RESTHandler) Scoreboard(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	entries, err := h.service.Scoreboard(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func callerIdentity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	userID := r.Header.Get("X-User-ID")
	role := r.Header.Get("X-User-Role")
	if userID == "" || role == "" {
		writeError(w, http.StatusUnauthorized, "M101", "missing validated identity headers")
		return domain.Identity{}, false
	}
	return domain.Identity{UserID: userID, Role: domain.Role(role)}, true
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeDomainError(w http.ResponseWriter, err error) {
	var coded *domain.Error
	if !errors.As(err, &coded) {
		log.Printf("unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, "M500", "internal error")
		return
	}
	writeError(w, statusForCode(coded.Code), coded.Code, coded.Message)
}

func statusForCode(code string) int {
	switch code {
	case domain.ErrInvalidCode.Code:
		return http.StatusBadRequest
	case domain.ErrSessionActive.Code,
		domain.ErrInvalidTransition.Code,
		domain.ErrNotOwner.Code,
		domain.ErrSessionNotPaused.Code,
		domain.ErrAlreadySubmitted.Code,
		domain.ErrSubmissionClosed.Code:
		return http.StatusConflict
	case domain.ErrSessionCompleted.Code:
		return http.StatusGone
	case domain.ErrSessionNotFound.Code,
		domain.ErrParticipantNotFound.Code,
		domain.ErrQuizNotFound.Code:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
