package ethereum

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"TreasurySweep/internal/chain"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeBackend struct {
	balance      *big.Int
	callOutput   []byte
	receipt      *types.Receipt
	receiptAfter int
	head         uint64

	receiptCalls int
}

func (f *fakeBackend) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeBackend) CallContract(_ context.Context, _ gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	return f.callOutput, nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	f.receiptCalls++
	if f.receipt == nil || f.receiptCalls <= f.receiptAfter {
		return nil, gethcore.NotFound
	}
	return f.receipt, nil
}

func (f *fakeBackend) BlockNumber(_ context.Context) (uint64, error) {
	return f.head, nil
}

func TestTokenBalanceDecodesCallOutput(t *testing.T) {
	want := big.NewInt(123456)
	output := make([]byte, 32)
	want.FillBytes(output)
	client := NewBackendClient("test", &fakeBackend{callOutput: output})

	got, err := client.TokenBalance(context.Background(),
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"))
	if err != nil {
		t.Fatalf("TokenBalance returned error: %v", err)
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("balance = %s, want %s", got, want)
	}
}

func TestWaitForConfirmationSuccess(t *testing.T) {
	backend := &fakeBackend{
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(100),
			GasUsed:     21000,
		},
		receiptAfter: 2,
	}
	client := NewBackendClient("test", backend)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	confirmation, err := client.WaitForConfirmation(ctx, common.HexToHash("0x1"), 1)
	if err != nil {
		t.Fatalf("WaitForConfirmation returned error: %v", err)
	}
	if !confirmation.Succeeded {
		t.Fatal("confirmation not marked successful")
	}
	if confirmation.BlockNumber != 100 || confirmation.GasUsed != 21000 {
		t.Fatalf("confirmation = %+v, want block 100 gas 21000", confirmation)
	}
	if backend.receiptCalls <= backend.receiptAfter {
		t.Fatal("receipt returned before the transaction was mined")
	}
}

func TestWaitForConfirmationReportsRevert(t *testing.T) {
	backend := &fakeBackend{
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusFailed,
			BlockNumber: big.NewInt(50),
		},
	}
	client := NewBackendClient("test", backend)

	confirmation, err := client.WaitForConfirmation(context.Background(), common.HexToHash("0x1"), 1)
	if err != nil {
		t.Fatalf("WaitForConfirmation returned error: %v", err)
	}
	if confirmation.Succeeded {
		t.Fatal("reverted transaction reported as successful")
	}
}

func TestWaitForConfirmationDepth(t *testing.T) {
	backend := &fakeBackend{
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(100),
		},
		head: 102,
	}
	client := NewBackendClient("test", backend)

	// Head 102 with the tx mined at 100 gives 3 confirmations.
	if _, err := client.WaitForConfirmation(context.Background(), common.HexToHash("0x1"), 3); err != nil {
		t.Fatalf("WaitForConfirmation returned error: %v", err)
	}

	// Depth 5 is unreachable within the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.WaitForConfirmation(ctx, common.HexToHash("0x1"), 5)
	if !errors.Is(err, chain.ErrConfirmationTimeout) {
		t.Fatalf("error = %v, want ErrConfirmationTimeout", err)
	}
}

var _ chain.Client = (*Client)(nil)

func TestWaitForConfirmationTimeout(t *testing.T) {
	client := NewBackendClient("test", &fakeBackend{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.WaitForConfirmation(ctx, common.HexToHash("0x1"), 1)
	if !errors.Is(err, chain.ErrConfirmationTimeout) {
		t.Fatalf("error = %v, want ErrConfirmationTimeout", err)
	}
}
