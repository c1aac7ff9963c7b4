package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nadzzz/qadesk/internal/fault"
	"github.com/nadzzz/qadesk/internal/message"
	"github.com/nadzzz/qadesk/internal/transport"
)

func startServer(t *testing.T, handler transport.Handler) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	tr := New(0)
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx, lis, handler) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("grpc server did not stop")
		}
	})
	return conn
}

func TestDispatch(t *testing.T) {
	var got *message.Request
	conn := startServer(t, func(_ context.Context, req *message.Request) (*message.Result, error) {
		got = req
		return &message.Result{
			Action:   req.Action,
			Response: "Photosynthesis is... ...light energy.",
			View:     &message.View{SessionID: req.SessionID, Mode: message.ModeTextQuestion},
		}, nil
	})

	res, err := NewClient(conn).Dispatch(context.Background(), &message.Request{
		SessionID: "s1",
		Action:    message.ActionSubmitText,
		Question:  "What is photosynthesis?",
	})
	require.NoError(t, err)

	assert.Equal(t, "What is photosynthesis?", got.Question)
	assert.Equal(t, "Photosynthesis is... ...light energy.", res.Response)
	require.NotNil(t, res.View)
	assert.Equal(t, message.ModeTextQuestion, res.View.Mode)
}

func TestDispatch_AudioRoundTrip(t *testing.T) {
	conn := startServer(t, func(_ context.Context, req *message.Request) (*message.Result, error) {
		res := &message.Result{Action: req.Action, Transcript: string(req.Audio)}
		res.SetAudioBytes(req.Audio)
		return res, nil
	})

	res, err := NewClient(conn).Dispatch(context.Background(), &message.Request{
		SessionID: "s1",
		Action:    message.ActionSubmitVoice,
		Audio:     []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0xff},
	})
	require.NoError(t, err)
	audio, err := res.AudioBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0xff}, audio)
}

func TestDispatch_ErrorKindsBecomeStatusCodes(t *testing.T) {
	tests := []struct {
		kind fault.Kind
		want codes.Code
	}{
		{fault.KindInput, codes.InvalidArgument},
		{fault.KindRecognitionEmpty, codes.InvalidArgument},
		{fault.KindInvalidTransition, codes.FailedPrecondition},
		{fault.KindNotFound, codes.NotFound},
		{fault.KindServiceUnavailable, codes.Unavailable},
		{fault.KindSynthesis, codes.Unavailable},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			conn := startServer(t, func(_ context.Context, req *message.Request) (*message.Result, error) {
				return &message.Result{Action: req.Action, ErrorKind: string(tc.kind), Error: "Please enter a question."}, nil
			})
			_, err := NewClient(conn).Dispatch(context.Background(), &message.Request{SessionID: "s1", Action: message.ActionSubmitText})
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tc.want, st.Code())
			assert.Equal(t, "Please enter a question.", st.Message())
		})
	}
}

func TestDispatch_HandlerError(t *testing.T) {
	conn := startServer(t, func(context.Context, *message.Request) (*message.Result, error) {
		return nil, errors.New("nil request")
	})
	_, err := NewClient(conn).Dispatch(context.Background(), &message.Request{})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestHealth(t *testing.T) {
	conn := startServer(t, func(context.Context, *message.Request) (*message.Result, error) {
		return &message.Result{}, nil
	})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
