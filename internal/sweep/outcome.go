package sweep

import (
	"math/big"
	"time"

	"TreasurySweep/internal/custody"
	xerrors "TreasurySweep/internal/errors"
)

// Kind is the stable classification of a sweep attempt. Values are the
// shared error-code strings so callers can assert on kind independent of
// message wording.
type Kind string

const (
	KindSuccess             Kind = "SUCCESS"
	KindInsufficientGas     Kind = Kind(xerrors.CodeInsufficientGas)
	KindNoBalance           Kind = Kind(xerrors.CodeNoBalance)
	KindBelowThreshold      Kind = Kind(xerrors.CodeBelowThreshold)
	KindSigningRejected     Kind = Kind(xerrors.CodeSigningRejected)
	KindSigningUnavailable  Kind = Kind(xerrors.CodeSigningUnavailable)
	KindTransactionFailed   Kind = Kind(xerrors.CodeTransactionFailed)
	KindConfirmationUnknown Kind = Kind(xerrors.CodeConfirmationUnknown)
	KindUnknown             Kind = Kind(xerrors.CodeUnknown)
)

// Target identifies one wallet to sweep inside its isolation realm.
type Target struct {
	RealmID string
	Wallet  custody.Wallet
}

// Outcome is the ephemeral record of one sweep attempt. It is consumed
// immediately by the scheduler for aggregation and never persisted.
type Outcome struct {
	AttemptID string        `json:"attempt_id"`
	RealmID   string        `json:"realm_id"`
	Wallet    string        `json:"wallet"`
	Kind      Kind          `json:"kind"`
	Amount    *big.Int      `json:"-"`
	AmountStr string        `json:"amount,omitempty"`
	TxHash    string        `json:"tx_hash,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"-"`
}

// Skipped reports whether the attempt ended in an expected non-error skip.
func (o Outcome) Skipped() bool {
	switch o.Kind {
	case KindInsufficientGas, KindNoBalance, KindBelowThreshold:
		return true
	}
	return false
}

// Succeeded reports whether the full balance was swept and confirmed.
func (o Outcome) Succeeded() bool {
	return o.Kind == KindSuccess
}

// Failed reports whether the attempt ended in a recorded failure.
func (o Outcome) Failed() bool {
	return !o.Skipped() && !o.Succeeded()
}

// Code maps the outcome kind back onto the shared error-code space.
func (o Outcome) Code() xerrors.Code {
	if o.Kind == KindSuccess {
		return ""
	}
	return xerrors.Code(o.Kind)
}
