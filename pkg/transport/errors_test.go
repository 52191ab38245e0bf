package transport

import (
	"errors"
	"net/http"
	"testing"

	"github.com/mbertram/relais/pkg/api"
	"github.com/mbertram/relais/pkg/auth"
	"github.com/mbertram/relais/pkg/codeassist"
)

func TestAPIErrorFor(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantType   api.ErrorType
		wantStatus int
	}{
		{
			name:       "no credential",
			err:        auth.ErrAuthenticationRequired,
			wantType:   api.ErrorTypeAuthentication,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "refresh failed",
			err:        &auth.RefreshError{StatusCode: 400, Body: `{"error":"invalid_grant"}`},
			wantType:   api.ErrorTypeAuthentication,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "validation",
			err:        api.NewInvalidRequestError("model", "unknown model: x"),
			wantType:   api.ErrorTypeInvalidRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "backend rejected keeps upstream status",
			err:        &codeassist.RejectedError{Status: http.StatusTooManyRequests, Body: "quota"},
			wantType:   api.ErrorTypeBackend,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "endpoints exhausted",
			err:        codeassist.ErrEndpointsExhausted,
			wantType:   api.ErrorTypeUnavailable,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantType:   api.ErrorTypeServerError,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr, status := APIErrorFor(tc.err)
			if apiErr.Type != tc.wantType {
				t.Errorf("type = %q, want %q", apiErr.Type, tc.wantType)
			}
			if status != tc.wantStatus {
				t.Errorf("status = %d, want %d", status, tc.wantStatus)
			}
		})
	}
}

func TestAPIErrorFor_WrappedError(t *testing.T) {
	wrapped := &codeassist.RejectedError{Status: 418, Body: "teapot"}
	apiErr, status := APIErrorFor(errorsJoin(wrapped))
	if apiErr.Type != api.ErrorTypeBackend || status != 418 {
		t.Errorf("wrapped rejection not unwrapped: %v / %d", apiErr, status)
	}
}

func errorsJoin(err error) error {
	return errors.Join(errors.New("context"), err)
}
