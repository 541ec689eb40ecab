// Package armadaerrors contains the errors compute node operations return to say why a request was refused. They
// map onto gRPC status codes, both when a remote node describes a failure to its caller and in the server
// interceptor.
//
// Operations that fail on several nodes at once (e.g., a broadcast) return a *multierror.Error from
// github.com/hashicorp/go-multierror wrapping the individual errors.
package armadaerrors

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrAlreadyExists is returned when a resource, e.g. a job id, is registered twice.
// Type and Message are omitted from the error message if empty.
type ErrAlreadyExists struct {
	Type    string // e.g. "job" or "node"
	Value   string
	Message string
}

func (err *ErrAlreadyExists) Error() string {
	return describe(err.Type, err.Value, "already exists", err.Message)
}

// ErrNotFound is returned when a resource is unknown to this node.
// Type and Message are omitted from the error message if empty.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() string {
	return describe(err.Type, err.Value, "does not exist", err.Message)
}

// ErrInvalidArgument is returned when a request carries a value the node refuses to act on.
type ErrInvalidArgument struct {
	Name    string      // e.g. "retryOnFail"
	Value   interface{} // the rejected value
	Message string      // optional explanation
}

func (err *ErrInvalidArgument) Error() string {
	s := fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	if err.Message != "" {
		s += "; " + err.Message
	}
	return s
}

// ErrResourceExhausted is returned when a bounded resource, such as the job queue, cannot take more work.
type ErrResourceExhausted struct {
	Resource string
	Message  string
}

func (err *ErrResourceExhausted) Error() string {
	s := fmt.Sprintf("%s is exhausted", err.Resource)
	if err.Message != "" {
		s += "; " + err.Message
	}
	return s
}

func describe(kind, value, what, message string) string {
	s := fmt.Sprintf("resource %q", value)
	if kind != "" {
		s += fmt.Sprintf(" of type %q", kind)
	}
	s += " " + what
	if message != "" {
		s += "; " + message
	}
	return s
}

// CodeFromError maps err to a gRPC code, looking through the whole chain of err.
// A nil error maps to OK and a gRPC status keeps its own code.
func CodeFromError(err error) codes.Code {
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	var (
		alreadyExists *ErrAlreadyExists
		notFound      *ErrNotFound
		invalid       *ErrInvalidArgument
		exhausted     *ErrResourceExhausted
	)
	switch {
	case errors.As(err, &alreadyExists):
		return codes.AlreadyExists
	case errors.As(err, &notFound):
		return codes.NotFound
	case errors.As(err, &invalid):
		return codes.InvalidArgument
	case errors.As(err, &exhausted):
		return codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Unknown
}

// UnaryServerInterceptor converts errors returned by handlers into gRPC status errors carrying the code and
// message of the cause. gRPC status errors pass through unchanged.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		rv, err := handler(ctx, req)
		if _, ok := status.FromError(err); ok {
			return rv, err
		}
		cause := errors.Cause(err)
		return rv, status.Error(CodeFromError(cause), cause.Error())
	}
}
