// Package protocol defines the API response envelope and request/response
// types.
package protocol

import (
	"encoding/json"
	"net/http"

	"github.com/draftdesk/draftdesk/internal/apperr"
)

// Response is the envelope every API endpoint returns.
type Response struct {
	Code      int    `json:"code"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode,omitempty"`
	Data      any    `json:"data"`
}

// LoginRequest is the body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries a freshly issued session token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
	Username  string `json:"username"`
}

// TokenRequest is the body for POST /api/v1/auth/verify and /refresh.
type TokenRequest struct {
	Token string `json:"token"`
}

// VerifyResponse reports token validity.
type VerifyResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
}

// UploadResult is the per-file outcome of a batch upload.
type UploadResult struct {
	ID        string `json:"id,omitempty"`
	FileName  string `json:"fileName"`
	FileType  string `json:"fileType,omitempty"`
	FileSize  int64  `json:"fileSize,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// GrantRequest is the body for POST /api/v1/render/config.
type GrantRequest struct {
	FileID string `json:"fileId"`
	Mode   string `json:"mode"`
}

// DocumentInfo describes one stored collaborative document snapshot.
type DocumentInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// WriteSuccess writes a success envelope with HTTP 200.
func WriteSuccess(w http.ResponseWriter, data any, message string) {
	WriteStatus(w, http.StatusOK, data, message)
}

// WriteStatus writes a success envelope with an explicit HTTP status.
func WriteStatus(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Code:    status,
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteError writes a failure envelope, mapping apperr codes to HTTP
// statuses. Errors without a code become 500s.
func WriteError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusInternalServerError
	if code != "" {
		status = apperr.HTTPStatus(code)
	}
	WriteFailure(w, status, code, err.Error())
}

// WriteFailure writes a failure envelope with explicit status and code.
func WriteFailure(w http.ResponseWriter, status int, code apperr.Code, message string) {
	WriteFailureData(w, status, code, message, nil)
}

// WriteFailureData writes a failure envelope carrying a data payload,
// such as per-file results for a batch that failed entirely.
func WriteFailureData(w http.ResponseWriter, status int, code apperr.Code, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Code:      status,
		Success:   false,
		Message:   message,
		ErrorCode: string(code),
		Data:      data,
	})
}
