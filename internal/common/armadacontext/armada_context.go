// Package armadacontext carries a logger alongside a context.Context, so that log lines written while handling a
// job or a request keep the fields (job id, node, worker) of whoever started the work.
package armadacontext

import (
	"context"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus/ctxlogrus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Context struct {
	context.Context
	Log *logrus.Entry
}

// Background is context.Background with the standard logger.
func Background() *Context {
	return New(context.Background(), logrus.NewEntry(logrus.StandardLogger()))
}

// FromGrpcCtx wraps the context of a gRPC request, logging with the entry the logrus interceptor stored in it.
// The logger is a no-op if the interceptor did not run.
func FromGrpcCtx(ctx context.Context) *Context {
	return New(ctx, ctxlogrus.Extract(ctx))
}

func New(ctx context.Context, log *logrus.Entry) *Context {
	return &Context{Context: ctx, Log: log}
}

func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	c, cancel := context.WithCancel(parent.Context)
	return New(c, parent.Log), cancel
}

func WithTimeout(parent *Context, timeout time.Duration) (*Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(parent.Context, timeout)
	return New(c, parent.Log), cancel
}

func WithLogField(parent *Context, key string, val interface{}) *Context {
	return New(parent.Context, parent.Log.WithField(key, val))
}

func WithLogFields(parent *Context, fields logrus.Fields) *Context {
	return New(parent.Context, parent.Log.WithFields(fields))
}

// Detached keeps the logger of parent but is never cancelled. Jobs outlive the request that submitted them, so
// their contexts are rooted here.
func Detached(parent *Context) *Context {
	return New(context.Background(), parent.Log)
}

// ErrGroup is errgroup.WithContext for a *Context.
func ErrGroup(ctx *Context) (*errgroup.Group, *Context) {
	group, goctx := errgroup.WithContext(ctx)
	return group, New(goctx, ctx.Log)
}
