package grpcapi

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/example/haneul-palette/internal/logging"
	"github.com/example/haneul-palette/internal/usecase"
)

func startBufServer(t *testing.T) *Client {
	t.Helper()
	return startBufServerWithLogger(t, zap.NewNop())
}

func startBufServerWithLogger(t *testing.T, clientLogger *zap.Logger) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	uc := usecase.NewAnalysisUseCase(nil, nil, nil, zap.NewNop())
	srv, healthServer := NewGRPCServer(NewServer(uc, zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, srv, lis, healthServer)
	}()

	client, err := Dial(context.Background(), "bufnet", clientLogger,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		cancel()
		t.Fatalf("failed to dial bufconn: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server did not stop cleanly: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("server did not stop in time")
		}
	})
	return client
}

func encodeUniformPNG(t *testing.T, size int, c color.Color) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestAnalyzeOverGRPC(t *testing.T) {
	client := startBufServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Analyze(ctx, encodeUniformPNG(t, 90, color.White))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if resp["undertone"] != "Neutral" || resp["brightness_softness"] != "Bright" || resp["depth"] != "Light" {
		t.Fatalf("unexpected labels: %v", resp)
	}
	cheek, ok := resp["cheek_sample_rgb"].([]interface{})
	if !ok || len(cheek) != 3 || cheek[0] != 255.0 {
		t.Fatalf("unexpected cheek sample: %v", resp["cheek_sample_rgb"])
	}
	if id, _ := resp["request_id"].(string); id == "" {
		t.Fatal("missing request id")
	}
}

func TestAnalyzeOverGRPCErrors(t *testing.T) {
	client := startBufServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tests := []struct {
		name    string
		payload []byte
		want    codes.Code
	}{
		{"missing input", nil, codes.InvalidArgument},
		{"not an image", []byte("hello"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Analyze(ctx, tt.payload)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := status.Code(logging.Cause(err)); got != tt.want {
				t.Fatalf("expected code %v, got %v (%v)", tt.want, got, err)
			}
		})
	}
}

func TestClientLogsFailedAnalyze(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	client := startBufServerWithLogger(t, zap.New(core))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := client.Analyze(ctx, []byte("hello")); err == nil {
		t.Fatal("expected error")
	}

	entries := logs.FilterMessage("analyze call failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["code"]; got != codes.Internal.String() {
		t.Fatalf("expected code %s in log, got %v", codes.Internal, got)
	}
	if entries[0].LoggerName != "analyzer_client" {
		t.Fatalf("unexpected logger name %q", entries[0].LoggerName)
	}
}

func TestHealthService(t *testing.T) {
	client := startBufServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(client.Conn()).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected status: %v", resp.GetStatus())
	}
}
