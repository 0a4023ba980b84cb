package connector

import "moff.io/moff-connect/pkg/errors"

var (
	// ErrConnectorNotFound no wallet matched when one was required to connect or disconnect.
	ErrConnectorNotFound = errors.New("connector not found")
	// ErrConnectorNotConnected identity or account access without any resolved wallet.
	ErrConnectorNotConnected = errors.New("connector not connected")
	// ErrUserNotConnected disconnect on a resolved wallet that is not connected.
	ErrUserNotConnected = errors.New("user not connected")
	// ErrUserRejectedRequest the wallet's authorization failed or left it disconnected.
	ErrUserRejectedRequest = errors.New("user rejected request")
)
