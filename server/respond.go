package server

import (
	"encoding/json"
	"errors"
	"io"
	"maps"
	"mime"
	"net/http"
	"slices"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/authflow"
	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// errorBody is the console's error envelope, the same shape the fleet API uses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// nextBody tells a script where the flow continues.
type nextBody struct {
	Redirect string `json:"redirect"`
	Message  string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write response")
	}
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// respondNext finishes a successful flow step: JSON callers get the next
// route in the body, page loads are redirected to it.
func respondNext(w http.ResponseWriter, r *http.Request, next, message string) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, nextBody{Redirect: next, Message: message})
		return
	}
	redirectSuccess(w, r, next)
}

// respondFlowError reports a failed flow step. Page loads are sent back to
// the form they came from with the message in the query.
func respondFlowError(w http.ResponseWriter, r *http.Request, formPath string, err error) {
	var verr *authflow.ValidationError
	var ferr *authflow.FlowError

	switch {
	case errors.As(err, &verr):
		if !wantsJSON(r) {
			redirectWithError(w, r, formPath, firstFieldMessage(verr))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code:    "VALIDATION_ERROR",
			Message: firstFieldMessage(verr),
			Fields:  verr.Fields,
		}})
	case errors.As(err, &ferr):
		if !wantsJSON(r) {
			redirectWithError(w, r, formPath, ferr.Message)
			return
		}
		writeJSONError(w, upstreamStatus(ferr.Err), "REQUEST_FAILED", ferr.Message)
	default:
		handleAPIError(w, r, err)
	}
}

// handleAPIError maps an upstream failure onto the console's response. A
// 401 that survived the refresh attempt means the session is gone, so the
// browser is sent to the login page.
func handleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	if fleeterrors.Is(err, fleeterrors.ErrUnauthorized) || fleeterrors.Is(err, fleeterrors.ErrSessionSuperseded) {
		if wantsJSON(r) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Code: "UNAUTHORIZED", Message: "Session expired"}})
			return
		}
		redirectSuccess(w, r, RouteLogin)
		return
	}

	var verr *authflow.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code:    "VALIDATION_ERROR",
			Message: firstFieldMessage(verr),
			Fields:  verr.Fields,
		}})
		return
	}

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code == "" {
			code = "UPSTREAM_ERROR"
		}
		writeJSONError(w, apiErr.StatusCode, code, apiclient.UserMessage(err, http.StatusText(apiErr.StatusCode)))
		return
	}

	log.Err(err).Str("path", r.URL.Path).Msg("Fleet API call failed")
	writeJSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "The fleet service is unavailable")
}

func upstreamStatus(err error) int {
	if status := apiclient.StatusCode(err); status >= 400 {
		return status
	}
	return http.StatusBadGateway
}

func firstFieldMessage(verr *authflow.ValidationError) string {
	for _, field := range slices.Sorted(maps.Keys(verr.Fields)) {
		return verr.Fields[field]
	}
	return "Invalid input"
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fleeterrors.Wrapf(fleeterrors.ErrInvalidRequest, "read body: %v", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fleeterrors.Wrapf(fleeterrors.ErrInvalidRequest, "decode body: %v", err)
	}
	return nil
}

// decodeForm reads a flat string form either as JSON or as an urlencoded
// form. Form keys are the JSON field names of dst.
func decodeForm(r *http.Request, dst any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return decodeJSON(r, dst)
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return fleeterrors.Wrapf(fleeterrors.ErrInvalidRequest, "parse form: %v", err)
	}
	fields := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fleeterrors.Wrapf(fleeterrors.ErrInvalidRequest, "decode form: %v", err)
	}
	return nil
}

// badRequest answers a body that could not be decoded.
func badRequest(w http.ResponseWriter, err error) {
	log.Debug().Err(err).Msg("Rejected request body")
	writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
}
