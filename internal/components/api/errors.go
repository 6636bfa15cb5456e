// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 OpenCloudMesh Authors

// Package api provides the JSON response envelope shared by all /api handlers.
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/appctx"
)

// maxBodyBytes bounds request bodies decoded by DecodeJSON.
const maxBodyBytes = 1 << 20

// ErrorEnvelope is the body of every failed response.
type ErrorEnvelope struct {
	Success       bool     `json:"success"`
	Error         string   `json:"error"`
	Code          string   `json:"code"`
	RetryAfter    *int     `json:"retryAfter,omitempty"`
	Role          string   `json:"role,omitempty"`
	RequiredRoles []string `json:"requiredRoles,omitempty"`
}

// Envelope is the body of every successful response.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindRateLimit:
		return http.StatusTooManyRequests
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes a success envelope around data.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Data: data})
}

// WriteError writes a failure envelope with an explicit status and code.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeEnvelope(w, statusCode, ErrorEnvelope{Error: message, Code: code})
}

// WriteAppError maps err onto the failure envelope. Internal errors are
// logged with their cause and surfaced with a generic message.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.Normalize(err)
	if e == nil {
		return
	}

	status := StatusFor(e.Kind)
	if e.Kind == apperr.KindInternal {
		appctx.GetLogger(r.Context()).Error("request failed", "error", err)
	}

	env := ErrorEnvelope{
		Error:         e.Message,
		Code:          e.Code,
		Role:          e.Role,
		RequiredRoles: e.RequiredRoles,
	}
	if e.Kind == apperr.KindRateLimit {
		secs := retryAfterSeconds(e)
		env.RetryAfter = &secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeEnvelope(w, status, env)
}

// DecodeJSON decodes a bounded JSON request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.Validation(apperr.CodeInvalidRequest, "request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation(apperr.CodeInvalidRequest, "request body too large")
		}
		return apperr.Validation(apperr.CodeInvalidRequest, "invalid JSON body")
	}
	return nil
}

func writeEnvelope(w http.ResponseWriter, statusCode int, env ErrorEnvelope) {
	env.Success = false
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(env)
}

// retryAfterSeconds rounds up to whole seconds, minimum 1.
func retryAfterSeconds(e *apperr.Error) int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
