package solana

import "context"

// WSClient defines the chain WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature subscribes to the confirmation of one
	// transaction signature. The returned channel delivers at most one
	// notification and is closed afterwards; the cluster removes the
	// subscription once it fires.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification reports that a signature reached the confirmed
// commitment.
type SignatureNotification struct {
	Signature string
	Slot      int64
	// Err is non-nil when the transaction executed and failed on chain.
	Err interface{}
}
