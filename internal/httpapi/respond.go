package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"kingsbuilder.org/internal/auth"
	"kingsbuilder.org/internal/estate"
)

// Stable error codes exposed in the response envelope. Clients branch on
// these, not on the message text.
const (
	codeBadCredentials  = "bad_credentials"
	codeInactive        = "account_inactive"
	codeInvalidToken    = "invalid_token"
	codeExpiredToken    = "expired_token"
	codeForbidden       = "forbidden"
	codeNotFound        = "not_found"
	codeConflict        = "conflict"
	codeUnitUnavailable = "unit_unavailable"
	codeProjectLimit    = "project_limit_reached"
	codeValidation      = "validation_error"
	codeInternal        = "internal_error"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": msg,
		},
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, codeValidation, errMessage(err))
	case errors.Is(err, auth.ErrBadCredentials):
		writeError(w, r, http.StatusUnauthorized, codeBadCredentials, "incorrect username or password")
	case errors.Is(err, auth.ErrAccountInactive):
		writeError(w, r, http.StatusUnauthorized, codeInactive, "account is inactive")
	case errors.Is(err, auth.ErrExpiredToken):
		writeError(w, r, http.StatusUnauthorized, codeExpiredToken, "token has expired")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, codeInvalidToken, "could not validate credentials")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, codeForbidden, "not enough permissions")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, codeConflict, "resource already exists")
	default:
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func handleEstateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, estate.ErrValidation):
		writeError(w, r, http.StatusBadRequest, codeValidation, errMessage(err))
	case errors.Is(err, estate.ErrProjectLimit):
		writeError(w, r, http.StatusBadRequest, codeProjectLimit, errMessage(err))
	case errors.Is(err, estate.ErrUnitUnavailable):
		writeError(w, r, http.StatusConflict, codeUnitUnavailable, "unit is not available for booking")
	case errors.Is(err, estate.ErrForbidden), errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, codeForbidden, "not enough permissions")
	case errors.Is(err, estate.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
	case errors.Is(err, estate.ErrConflict):
		writeError(w, r, http.StatusConflict, codeConflict, errMessage(err))
	default:
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// errMessage strips the sentinel prefix so the client sees the detail half
// of a wrapped error ("validation: price must be positive" -> "price must be
// positive").
func errMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}

type listEnvelope struct {
	Items any         `json:"items"`
	Page  estate.Page `json:"pagination"`
}

func parsePagination(r *http.Request) (skip, limit int, err error) {
	q := r.URL.Query()
	skip, err = parseIntParam(q.Get("skip"), 0)
	if err != nil {
		return 0, 0, errors.New("skip must be a non-negative integer")
	}
	limit, err = parseIntParam(q.Get("limit"), 10)
	if err != nil {
		return 0, 0, errors.New("limit must be a non-negative integer")
	}
	return skip, limit, nil
}

func parseIntParam(raw string, def int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0, errors.New("invalid integer")
	}
	return val, nil
}

// resourceID extracts the trailing path segment after prefix. Nested paths
// are rejected by returning the empty string.
func resourceID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimSuffix(id, "/")
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
