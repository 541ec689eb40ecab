package transport

import (
	"fmt"
	"sync"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/compute/execution"
	"github.com/G-Research/armada-compute/internal/compute/job"
	"github.com/G-Research/armada-compute/internal/compute/message"
	"github.com/G-Research/armada-compute/internal/compute/placement"
)

// TransportError is returned when a request could not be delivered to a node or its response could not be read.
type TransportError struct {
	Node   string
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to call %s on node %s: %s", e.Method, e.Node, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client sends job control requests to other nodes. Connections are opened lazily and reused.
type Client struct {
	topology placement.TopologyProvider
	// Deadline of every request except JobResult, which waits as long as the caller does.
	requestTimeout time.Duration
	dialOptions    []grpc.DialOption

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func NewClient(topology placement.TopologyProvider, requestTimeout time.Duration, opts ...grpc.DialOption) *Client {
	dialOptions := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithChainUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
	}
	return &Client{
		topology:       topology,
		requestTimeout: requestTimeout,
		dialOptions:    append(dialOptions, opts...),
		conns:          make(map[string]*grpc.ClientConn),
	}
}

var _ execution.RemoteControl = (*Client)(nil)

func (c *Client) conn(node string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[node]; ok {
		return conn, nil
	}
	member, ok := c.topology.Member(node)
	if !ok {
		return nil, errors.WithStack(&armadaerrors.ErrNotFound{Type: "node", Value: node})
	}
	conn, err := grpc.Dial(member.Address, c.dialOptions...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	c.conns[node] = conn
	return conn, nil
}

func (c *Client) invoke(ctx *armadacontext.Context, node, method string, timeout bool, req, resp interface{}) error {
	conn, err := c.conn(node)
	if err != nil {
		return err
	}
	if timeout && c.requestTimeout > 0 {
		var cancel func()
		ctx, cancel = armadacontext.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	if err := conn.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return &TransportError{Node: node, Method: method, Err: err}
	}
	return nil
}

func (c *Client) CancelJob(ctx *armadacontext.Context, node string, id uuid.UUID) (execution.CancelResult, error) {
	resp := &message.JobCancelResponse{}
	if err := c.invoke(ctx, node, "CancelJob", true, &message.JobCancelRequest{JobId: id}, resp); err != nil {
		return execution.CancelNotFound, err
	}
	if err := resp.Throwable.Err(node); err != nil {
		return execution.CancelNotFound, err
	}
	return resp.Result, nil
}

// JobStates returns the statuses of the given jobs on node, or of every job node knows about if ids is empty.
// Jobs node does not know are omitted.
func (c *Client) JobStates(ctx *armadacontext.Context, node string, ids ...uuid.UUID) ([]job.Status, error) {
	resp := &message.JobStatesResponse{}
	if err := c.invoke(ctx, node, "JobStates", true, &message.JobStatesRequest{JobIds: ids}, resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, &TransportError{Node: node, Method: "JobStates", Err: err}
	}
	if err := resp.Throwable.Err(node); err != nil {
		return nil, err
	}
	return resp.States, nil
}

func (c *Client) JobStatus(ctx *armadacontext.Context, node string, id uuid.UUID) (job.Status, bool, error) {
	states, err := c.JobStates(ctx, node, id)
	if err != nil || len(states) == 0 {
		return job.Status{}, false, err
	}
	return states[0], true, nil
}

func (c *Client) ChangePriority(ctx *armadacontext.Context, node string, id uuid.UUID, priority int64) (bool, error) {
	req := &message.JobChangePriorityRequest{JobId: id, Priority: priority}
	resp := &message.JobChangePriorityResponse{}
	if err := c.invoke(ctx, node, "ChangePriority", true, req, resp); err != nil {
		return false, err
	}
	if err := resp.Throwable.Err(node); err != nil {
		return false, err
	}
	return resp.Changed, nil
}

// SubmitJob asks node to run spec and returns the id it assigned.
func (c *Client) SubmitJob(ctx *armadacontext.Context, node string, spec job.Spec) (uuid.UUID, error) {
	resp := &message.JobSubmitResponse{}
	if err := c.invoke(ctx, node, "SubmitJob", true, message.NewJobSubmitRequest(spec), resp); err != nil {
		return uuid.Nil, err
	}
	if err := resp.Throwable.Err(node); err != nil {
		return uuid.Nil, err
	}
	return resp.JobId, nil
}

func (c *Client) JobResult(ctx *armadacontext.Context, node string, id uuid.UUID) (any, error) {
	resp := &message.JobResultResponse{}
	if err := c.invoke(ctx, node, "JobResult", false, &message.JobResultRequest{JobId: id}, resp); err != nil {
		return nil, err
	}
	if err := resp.Throwable.Err(node); err != nil {
		return nil, err
	}
	if resp.Cancelled {
		return nil, &execution.CancelledError{JobId: id}
	}
	return resp.Result, nil
}

// Close closes every open connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result *multierror.Error
	for node, conn := range c.conns {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to close connection to %s", node))
		}
		delete(c.conns, node)
	}
	return result.ErrorOrNil()
}
