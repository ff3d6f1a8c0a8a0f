package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/app"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
)

// adminPasswordHeader carries the operator passphrase for admin endpoints.
const adminPasswordHeader = "X-Admin-Password"

// Handler exposes the quiz service over plain JSON endpoints.
type Handler struct {
	results       *app.ResultService
	certificates  *app.CertificateService
	adminPassword string
}

func NewHandler(results *app.ResultService, certificates *app.CertificateService, adminPassword string) *Handler {
	return &Handler{results: results, certificates: certificates, adminPassword: adminPassword}
}

// Register installs all routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/register", h.handleRegister)
	mux.HandleFunc("/api/results", h.handleRecordResult)
	mux.HandleFunc("/api/certificates", h.handleAllocate)
	mux.HandleFunc("/api/certificates/verify", h.handleVerify)
	mux.HandleFunc("/api/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/api/admin/stats", h.requireAdmin(h.handleStats))
	mux.HandleFunc("/api/admin/reset", h.requireAdmin(h.handleReset))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var input app.RegistrationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := h.results.Register(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type recordResultRequest struct {
	Email             string `json:"email"`
	Score             int    `json:"score"`
	CorrectAnswers    int    `json:"correctAnswers"`
	AttendedQuestions int    `json:"attendedQuestions"`
}

func (h *Handler) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req recordResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.results.RecordCompletion(r.Context(), req.Email, req.Score, req.CorrectAnswers, req.AttendedQuestions); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type allocateRequest struct {
	Email string `json:"email"`
}

type allocateResponse struct {
	CertificateID string `json:"certificateId"`
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := h.certificates.Allocate(r.Context(), app.NormalizeEmail(req.Email))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allocateResponse{CertificateID: id})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, err := h.certificates.Verify(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	lb, err := h.results.Leaderboard(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := h.results.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type resetRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.results.Reset(r.Context(), req.Email); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireAdmin gates operator endpoints behind the shared static passphrase.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.adminPassword == "" {
			writeError(w, http.StatusServiceUnavailable, "admin access not configured")
			return
		}
		supplied := r.Header.Get(adminPasswordHeader)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.adminPassword)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid admin password")
			return
		}
		next(w, r)
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidFormat), errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyRegistered), errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotEligible), errors.Is(err, domain.ErrIneligible):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeError(w, http.StatusInsufficientStorage, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable, try again later")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
