package health

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

type Checker interface {
	Check() error
}

// CheckFunc adapts a function to a Checker.
type CheckFunc func() error

func (f CheckFunc) Check() error {
	return f()
}

// StartupCompleteChecker fails until MarkComplete is called.
type StartupCompleteChecker struct {
	complete atomic.Bool
}

func NewStartupCompleteChecker() *StartupCompleteChecker {
	return &StartupCompleteChecker{}
}

func (c *StartupCompleteChecker) MarkComplete() {
	c.complete.Store(true)
}

func (c *StartupCompleteChecker) Check() error {
	if c.complete.Load() {
		return nil
	}
	return errors.New("startup is not complete")
}

// MultiChecker passes only when every checker passes and reports all failures otherwise.
type MultiChecker struct {
	mu       sync.Mutex
	checkers []Checker
}

func NewMultiChecker(checkers ...Checker) *MultiChecker {
	return &MultiChecker{checkers: checkers}
}

func (mc *MultiChecker) Add(checker Checker) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.checkers = append(mc.checkers, checker)
}

func (mc *MultiChecker) Check() error {
	mc.mu.Lock()
	checkers := append([]Checker(nil), mc.checkers...)
	mc.mu.Unlock()

	var result *multierror.Error
	for _, checker := range checkers {
		if err := checker.Check(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// SetupHttpMux serves checker on /health: 204 when healthy, 503 with the failures otherwise.
func SetupHttpMux(mux *http.ServeMux, checker Checker) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		err := checker.Check()
		if err == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.Warnf("Health check failed: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte(err.Error())); err != nil {
			log.Errorf("Failed to write health check response: %v", err)
		}
	})
}
