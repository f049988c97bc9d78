package sweep

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"TreasurySweep/internal/chain"
	"TreasurySweep/internal/custody"
	xerrors "TreasurySweep/internal/errors"
)

type fakeChain struct {
	native       *big.Int
	token        *big.Int
	nativeErr    error
	tokenErr     error
	confirmation chain.Confirmation
	confirmErr   error

	tokenCalls   int
	confirmCalls int
}

func (f *fakeChain) NativeBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	if f.nativeErr != nil {
		return nil, f.nativeErr
	}
	return new(big.Int).Set(f.native), nil
}

func (f *fakeChain) TokenBalance(_ context.Context, _, _ common.Address) (*big.Int, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return new(big.Int).Set(f.token), nil
}

func (f *fakeChain) WaitForConfirmation(_ context.Context, _ common.Hash, _ uint64) (chain.Confirmation, error) {
	f.confirmCalls++
	if f.confirmErr != nil {
		return chain.Confirmation{}, f.confirmErr
	}
	return f.confirmation, nil
}

type fakeSigner struct {
	hash string
	err  error

	calls    int
	lastTx   custody.TxRequest
	lastSign string
}

func (f *fakeSigner) SignAndSend(_ context.Context, _ string, signingID string, tx custody.TxRequest) (string, error) {
	f.calls++
	f.lastTx = tx
	f.lastSign = signingID
	if f.err != nil {
		return "", f.err
	}
	return f.hash, nil
}

var (
	testToken = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testDest  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func testParams(t *testing.T) Params {
	t.Helper()
	threshold, err := ParseUnits("0.03", 6)
	if err != nil {
		t.Fatalf("parse threshold: %v", err)
	}
	minGas, err := ParseUnits("0.0005", 18)
	if err != nil {
		t.Fatalf("parse min gas: %v", err)
	}
	return Params{
		Network:       "sepolia",
		ChainID:       11155111,
		Token:         testToken,
		TokenDecimals: 6,
		Destination:   testDest,
		Threshold:     threshold,
		MinGas:        minGas,
	}
}

func testTarget() Target {
	return Target{
		RealmID: "realm-1",
		Wallet: custody.Wallet{
			Address: "0x3333333333333333333333333333333333333333",
			Handle:  "wallet-1",
		},
	}
}

func mustParse(t *testing.T, value string, decimals int) *big.Int {
	t.Helper()
	amount, err := ParseUnits(value, decimals)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return amount
}

func TestSweepSuccess(t *testing.T) {
	backend := &fakeChain{
		native:       mustParse(t, "0.01", 18),
		token:        mustParse(t, "0.05", 6),
		confirmation: chain.Confirmation{Succeeded: true, BlockNumber: 100},
	}
	signer := &fakeSigner{hash: "0xabc"}
	o := New(backend, signer, testParams(t))

	out := o.Sweep(context.Background(), testTarget())
	if out.Kind != KindSuccess {
		t.Fatalf("kind = %s, want %s (error: %s)", out.Kind, KindSuccess, out.Error)
	}
	if out.AmountStr != "0.05" {
		t.Fatalf("amount = %s, want 0.05", out.AmountStr)
	}
	if out.TxHash != "0xabc" {
		t.Fatalf("tx hash = %s, want 0xabc", out.TxHash)
	}
	if out.AttemptID == "" {
		t.Fatal("attempt id not assigned")
	}

	wantData, err := chain.PackTransfer(testDest, mustParse(t, "0.05", 6))
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}
	if signer.lastTx.Data != hexutil.Encode(wantData) {
		t.Fatalf("calldata = %s, want full-balance transfer to destination", signer.lastTx.Data)
	}
	if signer.lastTx.To != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("tx target = %s, want token contract", signer.lastTx.To)
	}
	if signer.lastTx.Value != "0" {
		t.Fatalf("tx value = %s, want 0", signer.lastTx.Value)
	}
	if signer.lastSign != "0x3333333333333333333333333333333333333333" {
		t.Fatalf("signing id = %s, want wallet address fallback", signer.lastSign)
	}
}

func TestSweepPrefersLinkedSigningKey(t *testing.T) {
	backend := &fakeChain{
		native:       mustParse(t, "0.01", 18),
		token:        mustParse(t, "1", 6),
		confirmation: chain.Confirmation{Succeeded: true},
	}
	signer := &fakeSigner{hash: "0xabc"}
	o := New(backend, signer, testParams(t))

	target := testTarget()
	target.Wallet.SigningKeyID = "key-42"
	o.Sweep(context.Background(), target)
	if signer.lastSign != "key-42" {
		t.Fatalf("signing id = %s, want linked key", signer.lastSign)
	}
}

func TestSweepBelowThresholdSkipsWithoutTransfer(t *testing.T) {
	backend := &fakeChain{
		native: mustParse(t, "0.01", 18),
		token:  mustParse(t, "0.02", 6),
	}
	signer := &fakeSigner{hash: "0xabc"}
	o := New(backend, signer, testParams(t))

	out := o.Sweep(context.Background(), testTarget())
	if out.Kind != KindBelowThreshold {
		t.Fatalf("kind = %s, want %s", out.Kind, KindBelowThreshold)
	}
	if signer.calls != 0 {
		t.Fatalf("signer called %d times for a dust balance", signer.calls)
	}
	if out.TxHash != "" || out.AmountStr != "" {
		t.Fatalf("skip outcome carries transfer fields: %+v", out)
	}
}

func TestSweepNoBalance(t *testing.T) {
	backend := &fakeChain{
		native: mustParse(t, "0.01", 18),
		token:  big.NewInt(0),
	}
	signer := &fakeSigner{}
	o := New(backend, signer, testParams(t))

	// An empty wallet stays empty: repeating the attempt yields the same
	// skip without side effects.
	for i := 0; i < 2; i++ {
		out := o.Sweep(context.Background(), testTarget())
		if out.Kind != KindNoBalance {
			t.Fatalf("kind = %s, want %s", out.Kind, KindNoBalance)
		}
	}
	if signer.calls != 0 {
		t.Fatalf("signer called %d times for an empty wallet", signer.calls)
	}
}

func TestSweepInsufficientGas(t *testing.T) {
	backend := &fakeChain{
		native: mustParse(t, "0.0001", 18),
		token:  mustParse(t, "1", 6),
	}
	signer := &fakeSigner{}
	o := New(backend, signer, testParams(t))

	out := o.Sweep(context.Background(), testTarget())
	if out.Kind != KindInsufficientGas {
		t.Fatalf("kind = %s, want %s", out.Kind, KindInsufficientGas)
	}
	if backend.tokenCalls != 0 {
		t.Fatal("token balance queried despite failed gas check")
	}
}

func TestSweepSigningRejected(t *testing.T) {
	backend := &fakeChain{
		native: mustParse(t, "0.01", 18),
		token:  mustParse(t, "1", 6),
	}
	signer := &fakeSigner{err: xerrors.New(xerrors.CodeSigningRejected, "restriction predicate denied transfer")}
	o := New(backend, signer, testParams(t))

	out := o.Sweep(context.Background(), testTarget())
	if out.Kind != KindSigningRejected {
		t.Fatalf("kind = %s, want %s", out.Kind, KindSigningRejected)
	}
	if out.TxHash != "" {
		t.Fatalf("rejected attempt carries tx hash %s", out.TxHash)
	}
	if backend.confirmCalls != 0 {
		t.Fatal("confirmation awaited for a rejected attempt")
	}
}

func TestSweepSigningUnavailable(t *testing.T) {
	backend := &fakeChain{
		native: mustParse(t, "0.01", 18),
		token:  mustParse(t, "1", 6),
	}
	signer := &fakeSigner{err: errors.New("dial tcp: connection refused")}
	o := New(backend, signer, testParams(t))

	out := o.Sweep(context.Background(), testTarget())
	if out.Kind != KindSigningUnavailable {
		t.Fatalf("kind = %s, want %s", out.Kind, KindSigningUnavailable)
	}
}

func TestSweepConfirmationUnknownKeepsHash(t *testing.T) {
	backend := &fakeChain{
		native:     mustParse(t, "0.01", 18),
		token:      mustParse(t, "1", 6),
		confirmErr: chain.ErrConfirmationTimeout,
	}
	signer := &fakeSigner{hash: "0xdeadbeef"}
	o := New(backend, signer, testParams(t))

	out := o.Sweep(context.Background(), testTarget())
	if out.Kind != KindConfirmationUnknown {
		t.Fatalf("kind = %s, want %s", out.Kind, KindConfirmationUnknown)
	}
	if out.TxHash != "0xdeadbeef" {
		t.Fatalf("tx hash = %s, want broadcast hash retained", out.TxHash)
	}
	if out.AmountStr != "1" {
		t.Fatalf("amount = %s, want 1", out.AmountStr)
	}
}

func TestSweepTransactionFailed(t *testing.T) {
	backend := &fakeChain{
		native:       mustParse(t, "0.01", 18),
		token:        mustParse(t, "1", 6),
		confirmation: chain.Confirmation{Succeeded: false, BlockNumber: 321},
	}
	signer := &fakeSigner{hash: "0xabc"}
	o := New(backend, signer, testParams(t))

	out := o.Sweep(context.Background(), testTarget())
	if out.Kind != KindTransactionFailed {
		t.Fatalf("kind = %s, want %s", out.Kind, KindTransactionFailed)
	}
	if out.TxHash != "0xabc" {
		t.Fatalf("tx hash = %s, want 0xabc", out.TxHash)
	}
}

func TestSweepExactThresholdProceeds(t *testing.T) {
	backend := &fakeChain{
		native:       mustParse(t, "0.01", 18),
		token:        mustParse(t, "0.03", 6),
		confirmation: chain.Confirmation{Succeeded: true},
	}
	signer := &fakeSigner{hash: "0xabc"}
	o := New(backend, signer, testParams(t))

	out := o.Sweep(context.Background(), testTarget())
	if out.Kind != KindSuccess {
		t.Fatalf("kind = %s, want %s for balance equal to threshold", out.Kind, KindSuccess)
	}
	if out.AmountStr != "0.03" {
		t.Fatalf("amount = %s, want 0.03", out.AmountStr)
	}
}
