package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingChecker struct{}

func (failingChecker) Check() error {
	return errors.New("store unavailable")
}

func TestHealthEndpoint(t *testing.T) {
	startup := NewStartupCompleteChecker()
	checker := NewMultiChecker(startup)
	mux := http.NewServeMux()
	SetupHttpMux(mux, checker)

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		return w
	}

	assert.Equal(t, http.StatusServiceUnavailable, get().Code)

	startup.MarkComplete()
	assert.Equal(t, http.StatusNoContent, get().Code)

	checker.Add(failingChecker{})
	w := get()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "store unavailable")
}

func TestMultiChecker_ReportsEveryFailure(t *testing.T) {
	checker := NewMultiChecker(
		CheckFunc(func() error { return nil }),
		CheckFunc(func() error { return errors.New("redis unreachable") }),
		failingChecker{},
	)
	err := checker.Check()
	assert.ErrorContains(t, err, "redis unreachable")
	assert.ErrorContains(t, err, "store unavailable")

	assert.NoError(t, NewMultiChecker().Check())
}
