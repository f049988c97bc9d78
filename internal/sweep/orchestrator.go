package sweep

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"TreasurySweep/internal/chain"
	"TreasurySweep/internal/custody"
	xerrors "TreasurySweep/internal/errors"
	"TreasurySweep/pkg/logger"
)

// ChainBackend is the slice of the chain client the orchestrator consumes.
type ChainBackend interface {
	NativeBalance(ctx context.Context, address common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	WaitForConfirmation(ctx context.Context, tx common.Hash, confirmations uint64) (chain.Confirmation, error)
}

// Signer signs and broadcasts a transaction on behalf of a wallet inside its
// isolation realm. The backend evaluates the realm's restrictions before it
// will sign.
type Signer interface {
	SignAndSend(ctx context.Context, realm, signingID string, tx custody.TxRequest) (string, error)
}

// Params fix the sweep policy for one orchestrator instance.
type Params struct {
	Network       string
	ChainID       int64
	Token         common.Address
	TokenDecimals int
	Destination   common.Address
	// Threshold is the minimum token balance (base units) worth sweeping.
	Threshold *big.Int
	// MinGas is the native-balance reserve required to pay for one transfer.
	MinGas *big.Int
}

const (
	defaultConfirmations  = 1
	defaultConfirmTimeout = 2 * time.Minute
)

// Orchestrator runs the per-wallet sweep state machine:
// gas check -> balance check -> transfer -> confirmation.
type Orchestrator struct {
	chain          ChainBackend
	signer         Signer
	params         Params
	confirmations  uint64
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// Option configures optional orchestrator behaviour.
type Option func(*Orchestrator)

// WithLogger overrides the component logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = log
	}
}

// WithConfirmations sets the confirmation depth required for success.
func WithConfirmations(n uint64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.confirmations = n
		}
	}
}

// WithConfirmTimeout bounds the confirmation wait per attempt.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.confirmTimeout = d
		}
	}
}

// New constructs an Orchestrator.
func New(chainClient ChainBackend, signer Signer, params Params, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chain:          chainClient,
		signer:         signer,
		params:         params,
		confirmations:  defaultConfirmations,
		confirmTimeout: defaultConfirmTimeout,
	}
	if o.params.Threshold == nil {
		o.params.Threshold = new(big.Int)
	}
	if o.params.MinGas == nil {
		o.params.MinGas = new(big.Int)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = logger.Named("sweep")
	}
	return o
}

// Sweep attempts to consolidate the full token balance of one wallet. It
// never returns an error: every path yields a classified outcome. The amount
// is populated only on paths that reached the transfer step, and a broadcast
// hash is reported even when confirmation is never observed.
func (o *Orchestrator) Sweep(ctx context.Context, target Target) Outcome {
	started := time.Now()
	out := Outcome{
		AttemptID: uuid.NewString(),
		RealmID:   target.RealmID,
		Wallet:    strings.ToLower(target.Wallet.Address),
	}
	defer func() {
		out.Duration = time.Since(started)
		o.audit(out)
	}()

	source := common.HexToAddress(target.Wallet.Address)

	gas, err := o.chain.NativeBalance(ctx, source)
	if err != nil {
		return o.fail(out, KindUnknown, err)
	}
	if gas.Cmp(o.params.MinGas) < 0 {
		out.Kind = KindInsufficientGas
		return out
	}

	balance, err := o.chain.TokenBalance(ctx, o.params.Token, source)
	if err != nil {
		return o.fail(out, KindUnknown, err)
	}
	if balance.Sign() == 0 {
		out.Kind = KindNoBalance
		return out
	}
	if balance.Cmp(o.params.Threshold) < 0 {
		out.Kind = KindBelowThreshold
		return out
	}

	// Partial sweeps are not supported: moving the entire balance makes the
	// operation idempotent, a wallet swept to zero has nothing to resweep.
	amount := new(big.Int).Set(balance)
	out.Amount = amount
	out.AmountStr = FormatUnits(amount, o.params.TokenDecimals)

	data, err := chain.PackTransfer(o.params.Destination, amount)
	if err != nil {
		return o.fail(out, KindUnknown, err)
	}

	txHash, err := o.signer.SignAndSend(ctx, target.RealmID, target.Wallet.SigningIdentifier(), custody.TxRequest{
		Network: o.params.Network,
		ChainID: o.params.ChainID,
		To:      strings.ToLower(o.params.Token.Hex()),
		Data:    hexutil.Encode(data),
		Value:   "0",
	})
	if err != nil {
		switch xerrors.CodeOf(err) {
		case xerrors.CodeSigningRejected:
			return o.fail(out, KindSigningRejected, err)
		case xerrors.CodeSigningUnavailable:
			return o.fail(out, KindSigningUnavailable, err)
		default:
			return o.fail(out, KindSigningUnavailable, err)
		}
	}
	out.TxHash = txHash

	confirmCtx, cancel := context.WithTimeout(ctx, o.confirmTimeout)
	defer cancel()
	confirmation, err := o.chain.WaitForConfirmation(confirmCtx, common.HexToHash(txHash), o.confirmations)
	if err != nil {
		// Timeout or RPC failure: the transaction may still land, which is
		// why this is distinct from TRANSACTION_FAILED.
		return o.fail(out, KindConfirmationUnknown, err)
	}
	if !confirmation.Succeeded {
		return o.fail(out, KindTransactionFailed,
			xerrors.New(xerrors.CodeTransactionFailed, "",
				xerrors.WithMetadata("block", FormatUnits(new(big.Int).SetUint64(confirmation.BlockNumber), 0))))
	}

	out.Kind = KindSuccess
	return out
}

func (o *Orchestrator) fail(out Outcome, kind Kind, err error) Outcome {
	out.Kind = kind
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func (o *Orchestrator) audit(out Outcome) {
	attrs := []any{
		slog.String("attempt_id", out.AttemptID),
		slog.String("realm_id", out.RealmID),
		slog.String("wallet", out.Wallet),
		slog.String("kind", string(out.Kind)),
		slog.String("network", o.params.Network),
		slog.Duration("duration", out.Duration),
	}
	if out.AmountStr != "" {
		attrs = append(attrs, slog.String("amount", out.AmountStr))
	}
	if out.TxHash != "" {
		attrs = append(attrs, slog.String("tx_hash", out.TxHash))
	}
	switch {
	case out.Succeeded():
		logger.Audit().Info("sweep succeeded", attrs...)
	case out.Skipped():
		o.logger.Debug("sweep skipped", attrs...)
	default:
		attrs = append(attrs, slog.String("error", out.Error))
		logger.Audit().Warn("sweep failed", attrs...)
	}
}
