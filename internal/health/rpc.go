package health

import (
	"context"

	"github.com/devblac/root-relay/internal/chain"
)

// RPCChecker pings the host execution node.
type RPCChecker struct {
	client chain.BlockClient
}

// NewRPCChecker creates a checker over the follower's client.
func NewRPCChecker(client chain.BlockClient) *RPCChecker {
	return &RPCChecker{client: client}
}

// Ping fetches the latest header to verify the endpoint is responsive.
func (c *RPCChecker) Ping(ctx context.Context) error {
	_, err := c.client.HeaderByNumber(ctx, nil)
	return err
}
