package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/G-Research/armada-compute/internal/compute/message"
)

const serviceName = "compute.JobControl"

// JobControlServer is the server side of the job control service.
// Application errors are returned inside the response messages; a returned error means the request could not be
// handled at all.
type JobControlServer interface {
	CancelJob(context.Context, *message.JobCancelRequest) (*message.JobCancelResponse, error)
	JobStates(context.Context, *message.JobStatesRequest) (*message.JobStatesResponse, error)
	ChangePriority(context.Context, *message.JobChangePriorityRequest) (*message.JobChangePriorityResponse, error)
	SubmitJob(context.Context, *message.JobSubmitRequest) (*message.JobSubmitResponse, error)
	JobResult(context.Context, *message.JobResultRequest) (*message.JobResultResponse, error)
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unaryMethod[Req any, Resp any](
	method string,
	call func(JobControlServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(JobControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(JobControlServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var jobControlServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*JobControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CancelJob", JobControlServer.CancelJob),
		unaryMethod("JobStates", JobControlServer.JobStates),
		unaryMethod("ChangePriority", JobControlServer.ChangePriority),
		unaryMethod("SubmitJob", JobControlServer.SubmitJob),
		unaryMethod("JobResult", JobControlServer.JobResult),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "compute/job_control",
}

// RegisterJobControlServer registers srv with s.
func RegisterJobControlServer(s *grpc.Server, srv JobControlServer) {
	s.RegisterService(&jobControlServiceDesc, srv)
}
