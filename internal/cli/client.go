package cli

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	grpcTransport "pawbook/backend/internal/transport/grpc"
)

// dialBooking is swapped out in tests.
var dialBooking = func(addr string) (*grpcTransport.BookingClient, func() error, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, nil, err
	}
	return grpcTransport.NewBookingClient(conn), conn.Close, nil
}

// withClient dials opts.addr and runs fn under the request timeout.
func withClient(ctx context.Context, opts *options, fn func(ctx context.Context, c *grpcTransport.BookingClient) error) error {
	client, closeFn, err := dialBooking(opts.addr)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	return fn(ctx, client)
}

func withIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "idempotency-key", key)
}
