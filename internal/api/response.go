package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/engine"
	"github.com/shaiso/ReleaseTrain/internal/gateway"
	"github.com/shaiso/ReleaseTrain/internal/orchestrator"
	"github.com/shaiso/ReleaseTrain/internal/repo"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeDependencyNotMet  ErrorCode = "DEPENDENCY_NOT_MET"
	ErrCodeMergeNotSupported ErrorCode = "MERGE_NOT_SUPPORTED"
	ErrCodeUpstream          ErrorCode = "UPSTREAM_ERROR"
	ErrCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrCodeMethodNotAllow    ErrorCode = "METHOD_NOT_ALLOWED"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	// UpstreamStatus — HTTP статус ответа GitHub (для UPSTREAM_ERROR).
	UpstreamStatus int `json:"upstream_status,omitempty"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict отправляет ошибку 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InvalidState отправляет ошибку 422.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleRepoError преобразует ошибку репозитория в HTTP ответ.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, notFoundMsg)
		return true
	}

	if errors.Is(err, repo.ErrAlreadyExists) {
		Conflict(w, err.Error())
		return true
	}

	InternalError(w, logger, err)
	return true
}

// HandleServiceError преобразует ошибку оркестратора в HTTP ответ.
//
//	validation          → 400
//	not found           → 404
//	already exists      → 409
//	state / dependency  → 422
//	merge not supported → 422
//	GitHub API error    → 502
func HandleServiceError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	var apiErr *gateway.APIError
	var graphErr *engine.ValidationError

	switch {
	case errors.Is(err, gateway.ErrMergeNotSupported):
		Error(w, http.StatusUnprocessableEntity, ErrCodeMergeNotSupported, err.Error())
	case errors.Is(err, engine.ErrDependencyNotMet):
		Error(w, http.StatusUnprocessableEntity, ErrCodeDependencyNotMet, err.Error())
	case errors.Is(err, orchestrator.ErrState), errors.Is(err, domain.ErrInvalidTransition):
		InvalidState(w, err.Error())
	case errors.Is(err, orchestrator.ErrValidation), errors.As(err, &graphErr):
		BadRequest(w, err.Error())
	case errors.As(err, &apiErr):
		logger.Warn("github request failed", "op", apiErr.Op, "status", apiErr.StatusCode)
		JSON(w, http.StatusBadGateway, ErrorResponse{Error: ErrorDetail{
			Code:           ErrCodeUpstream,
			Message:        err.Error(),
			UpstreamStatus: apiErr.StatusCode,
		}})
	default:
		return HandleRepoError(w, logger, err, notFoundMsg)
	}
	return true
}
