package ports

import "context"

// Server defines the interface for the long running ingress
type Server interface {
	// Start starts serving in the background
	Start() error

	// Stop stops serving, waiting for in-flight requests until ctx is done
	Stop(ctx context.Context) error
}
