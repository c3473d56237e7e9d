package grpcapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/haneul-palette/internal/logging"
)

// Client calls a remote Analyzer service.
type Client struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// Dial returns a ready-to-use client for the analyzer service at addr.
func Dial(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, opts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcapi.dial", "", err)
		logger.Error("failed to dial analyzer", zap.Error(wrapped), zap.String("addr", addr))
		return nil, wrapped
	}
	return &Client{conn: conn, logger: logger.Named("analyzer_client")}, nil
}

// Analyze sends image bytes and returns the response fields.
func (c *Client) Analyze(ctx context.Context, imageBytes []byte) (map[string]interface{}, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, analyzeMethod, wrapperspb.Bytes(imageBytes), out); err != nil {
		c.logger.Warn("analyze call failed",
			zap.Error(err),
			zap.String("code", status.Code(err).String()),
			zap.String("target", c.conn.Target()),
			zap.Int("bytes", len(imageBytes)),
		)
		return nil, logging.NewOperationError("grpcapi.analyze", "", err)
	}
	return out.AsMap(), nil
}

// Conn exposes the underlying connection, e.g. for health checks.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
