package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func callDispatch(t *testing.T, mw func(http.Handler) http.Handler, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/dispatch", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestDispatchAuth_BearerAccepted(t *testing.T) {
	mw := DispatchAuth("s3cret", false)
	rec := callDispatch(t, mw, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer s3cret")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDispatchAuth_WrongBearerRejected(t *testing.T) {
	mw := DispatchAuth("s3cret", false)
	rec := callDispatch(t, mw, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer wrong")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatchAuth_MissingCredentialsRejected(t *testing.T) {
	mw := DispatchAuth("s3cret", false)
	rec := callDispatch(t, mw, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid dispatch secret")
}

func TestDispatchAuth_HeaderRejectedByDefault(t *testing.T) {
	mw := DispatchAuth("s3cret", false)
	rec := callDispatch(t, mw, func(r *http.Request) {
		r.Header.Set("X-Dispatch-Secret", "s3cret")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatchAuth_HeaderAcceptedWhenEnabled(t *testing.T) {
	mw := DispatchAuth("s3cret", true)

	rec := callDispatch(t, mw, func(r *http.Request) {
		r.Header.Set("X-Dispatch-Secret", "s3cret")
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = callDispatch(t, mw, func(r *http.Request) {
		r.Header.Set("X-Dispatch-Secret", "wrong")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatchAuth_EmptySecretOpen(t *testing.T) {
	mw := DispatchAuth("", false)
	rec := callDispatch(t, mw, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
