package webwallet

import (
	"context"

	"github.com/ethereum/go-ethereum/rpc"
	"moff.io/moff-connect/internal/chains"
	"moff.io/moff-connect/pkg/errors"
)

// Provider reads chain state for the account a web wallet exposes.
type Provider interface {
	NodeURL() string
	ChainID(ctx context.Context) (string, error)
}

// RPCProvider is a Provider talking JSON-RPC to a starknet node.
type RPCProvider struct {
	nodeURL string
	client  *rpc.Client
}

// NewRPCProvider prepares a JSON-RPC client for nodeURL; nothing is sent until the first call.
func NewRPCProvider(nodeURL string) (*RPCProvider, error) {
	client, err := rpc.DialHTTP(nodeURL)
	if err != nil {
		return nil, errors.Wrapf(err, "rpc provider %s", nodeURL)
	}
	return &RPCProvider{nodeURL: nodeURL, client: client}, nil
}

func (p *RPCProvider) NodeURL() string {
	return p.nodeURL
}

// ChainID returns the hex encoded chain id of the node.
func (p *RPCProvider) ChainID(ctx context.Context) (string, error) {
	var id string
	if err := p.client.CallContext(ctx, &id, "starknet_chainId"); err != nil {
		return "", errors.Wrapf(err, "starknet_chainId on %s", p.nodeURL)
	}
	return id, nil
}

// Chain resolves the node chain id against the known chains.
func (p *RPCProvider) Chain(ctx context.Context) (*chains.Blockchain, error) {
	id, err := p.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if c, ok := chains.FromHex(id); ok {
		return c, nil
	}
	name, err := chains.DecodeShortString(id)
	if err != nil {
		return nil, errors.Wrapf(err, "decode chain id %s", id)
	}
	return &chains.Blockchain{ID: name, IDHex: id, Name: name}, nil
}

func (p *RPCProvider) Close() {
	p.client.Close()
}
