package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maharab24/Bottle-Collection/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCacheControl_GetAndHead(t *testing.T) {
	h := CacheControl(300)(okHandler)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/static/app.css", nil))
		assert.Equal(t, "public, max-age=300", rr.Header().Get("Cache-Control"), method)
	}
}

func TestCacheControl_SkipsWrites(t *testing.T) {
	rr := httptest.NewRecorder()
	CacheControl(300)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Empty(t, rr.Header().Get("Cache-Control"))
}

func TestNoStore(t *testing.T) {
	rr := httptest.NewRecorder()
	NoStore(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestRecovery_ReturnsEnvelope(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	h := RequestLogging(l)(Recovery(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/bottles", nil)
	req.Header.Set(CorrelationHeader, "corr-panic")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "corr-panic", body.Error.RequestID)
	assert.Contains(t, buf.String(), "handler panicked")
}

func TestRecovery_PlainTextForBrowsers(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("template exploded"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "Internal Server Error\n", rr.Body.String())
	assert.Contains(t, buf.String(), "template exploded")
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events", nil))
	})
}

func TestRequestLogging_ReusesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := RequestLogging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/b-001", nil)
	req.Header.Set(CorrelationHeader, "corr-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "corr-1", seen)
	assert.Equal(t, "corr-1", rr.Header().Get(CorrelationHeader))

	out := decodeLine(t, &buf)
	assert.Equal(t, "http request", out["msg"])
	assert.Equal(t, float64(http.StatusNoContent), out["status"])
	assert.Equal(t, "INFO", out["level"])
}

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	rr := httptest.NewRecorder()
	RequestLogging(newTestLogger(&buf))(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, rr.Header().Get(CorrelationHeader), 36)
}

func TestRequestLogging_ServerErrorLogsAtError(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, "ERROR", decodeLine(t, &buf)["level"])
}

func TestRequestLogging_ClientErrorLogsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/b-404", nil)
	req.Header.Set(CorrelationHeader, "corr-404")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := decodeLine(t, &buf)
	assert.Equal(t, "WARN", out["level"])
	assert.Equal(t, "corr-404", out["correlation_id"])
}
