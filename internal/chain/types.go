package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrConfirmationTimeout reports that a confirmation wait ended without the
// receipt being observed. The transaction may still land; callers must not
// treat this as a definite failure.
var ErrConfirmationTimeout = errors.New("confirmation wait deadline exceeded")

// Confirmation is the parsed result of a confirmation wait.
type Confirmation struct {
	// Succeeded is the receipt status: true for a successful execution,
	// false for a reverted transaction.
	Succeeded   bool
	BlockNumber uint64
	GasUsed     uint64
}

// Client is the chain access contract consumed by the sweep engine. Any
// network implementation must provide it so higher layers stay uniform.
type Client interface {
	// NativeBalance returns the gas-token balance of an address.
	NativeBalance(ctx context.Context, address common.Address) (*big.Int, error)
	// TokenBalance returns the ERC-20 balance of holder on token.
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	// SendRawTransaction broadcasts a signed transaction and returns its hash.
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	// WaitForConfirmation blocks until the transaction has the requested
	// confirmation depth or ctx expires (ErrConfirmationTimeout).
	WaitForConfirmation(ctx context.Context, tx common.Hash, confirmations uint64) (Confirmation, error)
	Close()
}
