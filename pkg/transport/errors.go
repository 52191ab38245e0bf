package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mbertram/relais/pkg/api"
	"github.com/mbertram/relais/pkg/auth"
	"github.com/mbertram/relais/pkg/codeassist"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP
// status code.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeBackend, api.ErrorTypeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// APIErrorFor converts any error from the request path into a
// structured error payload plus HTTP status. Backend rejections keep
// the upstream status; exhausted endpoints surface as 502.
func APIErrorFor(err error) (*api.APIError, int) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr, HTTPStatusFromError(apiErr)
	}

	if errors.Is(err, auth.ErrAuthenticationRequired) {
		return api.NewAuthenticationError(err.Error()), http.StatusUnauthorized
	}
	var refreshErr *auth.RefreshError
	if errors.As(err, &refreshErr) {
		return api.NewAuthenticationError(refreshErr.Error()), http.StatusUnauthorized
	}

	var rejected *codeassist.RejectedError
	if errors.As(err, &rejected) {
		return api.NewBackendError(strconv.Itoa(rejected.Status), rejected.Body), rejected.Status
	}
	if errors.Is(err, codeassist.ErrEndpointsExhausted) {
		return api.NewUnavailableError(err.Error()), http.StatusBadGateway
	}

	return api.NewServerError(err.Error()), http.StatusInternalServerError
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteError maps err and writes the resulting payload.
func WriteError(w http.ResponseWriter, err error) {
	apiErr, status := APIErrorFor(err)
	WriteErrorResponse(w, apiErr, status)
}
