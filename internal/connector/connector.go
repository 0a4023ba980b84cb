// Package connector mediates discovery, connection, authorization and
// account-change notification against wallets whose availability changes at
// runtime. Callers depend on Connector only; Injected and the web wallet
// connector are the two implementations.
package connector

import "context"

// StarknetVersion is the protocol version every connector asks a wallet to enable.
const StarknetVersion = "v5"

// Event names a wallet event kind.
type Event string

// AccountsChanged is the only wallet event a connector subscribes to.
const AccountsChanged Event = "accountsChanged"

// Account is the opaque account/signing object a connected wallet exposes.
// Connectors only forward it.
type Account interface {
	Address() string
}

type EnableOptions struct {
	StarknetVersion string `json:"starknetVersion"`
}

// Wallet is the capability surface of one concrete, currently available wallet.
type Wallet interface {
	ID() string
	Name() string
	Icon() string
	IsConnected() bool
	// Account returns nil while the wallet exposes no account.
	Account() Account
	IsPreauthorized(ctx context.Context) (bool, error)
	Enable(ctx context.Context, options EnableOptions) error
	On(event Event, handler AccountsChangedHandler)
	Off(event Event, handler AccountsChangedHandler)
}

// Registry enumerates the wallets available right now.
type Registry interface {
	GetAvailableWallets(ctx context.Context) ([]Wallet, error)
}

// RegistryFunc adapts a function to Registry.
type RegistryFunc func(ctx context.Context) ([]Wallet, error)

func (f RegistryFunc) GetAvailableWallets(ctx context.Context) ([]Wallet, error) {
	return f(ctx)
}

type Connector interface {
	ID() string
	// Name and Icon never trigger resolution; they fail with
	// ErrConnectorNotConnected while no wallet has been resolved.
	Name() (string, error)
	Icon() (string, error)
	Wallet() (Wallet, error)
	State() State

	Available(ctx context.Context) bool
	Ready(ctx context.Context) (bool, error)
	Connect(ctx context.Context) (Account, error)
	Disconnect(ctx context.Context) error
	// Account returns a nil Account without error when the wallet is resolved but exposes no account.
	Account(ctx context.Context) (Account, error)
	InitEventListener(ctx context.Context, handler AccountsChangedHandler) error
	RemoveEventListener(ctx context.Context, handler AccountsChangedHandler) error
}

// State is derived from the cached wallet, never stored on its own.
type State int

const (
	StateUnresolved State = iota
	StateUnavailable
	StateAvailableUnauthorized
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateUnavailable:
		return "unavailable"
	case StateAvailableUnauthorized:
		return "available"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
