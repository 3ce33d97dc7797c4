package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"discount-code-service/internal/domain"
	"discount-code-service/internal/domain/model"
	"discount-code-service/internal/usecase"
)

const (
	maxBodyBytes        = 1 << 16
	internalErrorDetail = "internal error"
)

// ReadinessCheck reports whether the backing store is reachable.
type ReadinessCheck func(ctx context.Context) error

// Server exposes the discount code lifecycle over HTTP.
type Server struct {
	codes usecase.DiscountCodeUseCase
	ready ReadinessCheck
	log   *zerolog.Logger
}

// NewServer constructs the HTTP layer. ready may be nil (always ready).
func NewServer(codes usecase.DiscountCodeUseCase, ready ReadinessCheck, logger *zerolog.Logger) *Server {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Server{codes: codes, ready: ready, log: logger}
}

// --- DTOs ---

type CodeRequest struct {
	Code *string `json:"code"`
}

type GenerateResponse struct {
	Code string `json:"code"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ValidateResponse struct {
	Exists  bool   `json:"exists"`
	Used    *bool  `json:"used"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, ErrorResponse{Detail: detail})
}

// decodeCode reads {"code": "..."}; a missing body or field is a client error.
func decodeCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req CodeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is required")
			return "", false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return "", false
	}
	if req.Code == nil {
		writeError(w, http.StatusUnprocessableEntity, "field 'code' is required")
		return "", false
	}
	return *req.Code, true
}

// --- handlers ---

// GenerateCode handles GET /generate_code.
func (s *Server) GenerateCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.codes.Generate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalErrorDetail)
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{Code: code})
}

// GrantCode handles POST /grant_code.
func (s *Server) GrantCode(w http.ResponseWriter, r *http.Request) {
	code, ok := decodeCode(w, r)
	if !ok {
		return
	}
	_, err := s.codes.Grant(r.Context(), code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Code '%s' granted and saved successfully.", code)})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("field 'code' must be a non-empty string of at most %d bytes without NUL characters", model.MaxCodeBytes))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, fmt.Sprintf("Code '%s' already exists.", code))
	default:
		writeError(w, http.StatusInternalServerError, internalErrorDetail)
	}
}

// ValidateCode handles POST /validate_code. Absence is a normal 200 response.
func (s *Server) ValidateCode(w http.ResponseWriter, r *http.Request) {
	code, ok := decodeCode(w, r)
	if !ok {
		return
	}
	st, err := s.codes.Validate(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalErrorDetail)
		return
	}
	resp := ValidateResponse{Exists: st.Exists, Used: st.Used}
	switch {
	case !st.Exists:
		resp.Message = fmt.Sprintf("Code '%s' does not exist.", code)
	case st.Used != nil && *st.Used:
		resp.Message = fmt.Sprintf("Code '%s' is valid and is used.", code)
	default:
		resp.Message = fmt.Sprintf("Code '%s' is valid and is unused.", code)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UseCode handles POST /use_code.
func (s *Server) UseCode(w http.ResponseWriter, r *http.Request) {
	code, ok := decodeCode(w, r)
	if !ok {
		return
	}
	err := s.codes.Use(r.Context(), code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Code '%s' marked as used successfully.", code)})
	case errors.Is(err, domain.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Code '%s' does not exist.", code))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, fmt.Sprintf("Code '%s' has already been used.", code))
	default:
		writeError(w, http.StatusInternalServerError, internalErrorDetail)
	}
}

func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
