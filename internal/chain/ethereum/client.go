package ethereum

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"TreasurySweep/internal/chain"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name         string
	RPCURL       string
	ChainID      int64
	PollInterval time.Duration
	Notes        string
}

// defaultPollInterval paces receipt polling during confirmation waits.
const defaultPollInterval = 3 * time.Second

// Client implements the chain.Client interface for EVM compatible chains.
type Client struct {
	name         string
	notes        string
	rpcClient    *gethrpc.Client
	eth          backend
	pollInterval time.Duration
	chainID      *big.Int
}

// backend mirrors the subset of ethclient methods the sweep engine needs so
// tests can substitute a fake without a live node.
type backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use
// client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("ethereum rpc url is not configured")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum node: %w", err)
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	var chainID *big.Int
	if cfg.ChainID > 0 {
		chainID = big.NewInt(cfg.ChainID)
	}

	return &Client{
		name:         cfg.Name,
		notes:        cfg.Notes,
		rpcClient:    rpcClient,
		eth:          ethclient.NewClient(rpcClient),
		pollInterval: poll,
		chainID:      chainID,
	}, nil
}

// NewBackendClient wraps an existing backend, used by tests.
func NewBackendClient(name string, be backend) *Client {
	return &Client{
		name:         name,
		eth:          be,
		pollInterval: time.Millisecond,
		notes:        "injected backend",
	}
}

// Name returns the configured network name.
func (c *Client) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	if c == nil || c.rpcClient == nil {
		return
	}
	c.rpcClient.Close()
	c.rpcClient = nil
}

// NativeBalance returns the gas-token balance of an address.
func (c *Client) NativeBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	if c == nil || c.eth == nil {
		return nil, errors.New("ethereum client is not initialised")
	}
	balance, err := c.eth.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("query native balance of %s: %w", address.Hex(), err)
	}
	return balance, nil
}

// TokenBalance returns the ERC-20 balance of holder on token.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	if c == nil || c.eth == nil {
		return nil, errors.New("ethereum client is not initialised")
	}
	data, err := chain.PackBalanceOf(holder)
	if err != nil {
		return nil, err
	}
	output, err := c.eth.CallContract(ctx, gethcore.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("query token balance of %s on %s: %w", holder.Hex(), token.Hex(), err)
	}
	return chain.UnpackBalance(output)
}

// SendRawTransaction broadcasts a signed transaction payload.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	if c == nil || c.rpcClient == nil {
		return common.Hash{}, errors.New("ethereum client has no rpc connection")
	}
	var hash common.Hash
	payload := "0x" + hex.EncodeToString(raw)
	if err := c.rpcClient.CallContext(ctx, &hash, "eth_sendRawTransaction", payload); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast transaction: %w", err)
	}
	return hash, nil
}

// WaitForConfirmation polls for the transaction receipt until the requested
// confirmation depth is reached or ctx expires.
func (c *Client) WaitForConfirmation(ctx context.Context, tx common.Hash, confirmations uint64) (chain.Confirmation, error) {
	if c == nil || c.eth == nil {
		return chain.Confirmation{}, errors.New("ethereum client is not initialised")
	}
	if confirmations == 0 {
		confirmations = 1
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, tx)
		if err == nil && receipt != nil {
			confirmed, checkErr := c.depthReached(ctx, receipt, confirmations)
			if checkErr == nil && confirmed {
				return chain.Confirmation{
					Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
					BlockNumber: receipt.BlockNumber.Uint64(),
					GasUsed:     receipt.GasUsed,
				}, nil
			}
			// Depth not reached yet, or a transient head query error: keep
			// polling until the deadline decides.
		} else if err != nil && !errors.Is(err, gethcore.NotFound) && ctx.Err() != nil {
			break
		}

		select {
		case <-ctx.Done():
			return chain.Confirmation{}, fmt.Errorf("%w: %s", chain.ErrConfirmationTimeout, tx.Hex())
		case <-ticker.C:
		}
	}
	return chain.Confirmation{}, fmt.Errorf("%w: %s", chain.ErrConfirmationTimeout, tx.Hex())
}

func (c *Client) depthReached(ctx context.Context, receipt *types.Receipt, confirmations uint64) (bool, error) {
	if confirmations <= 1 {
		return true, nil
	}
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return false, err
	}
	mined := receipt.BlockNumber.Uint64()
	return head >= mined && head-mined+1 >= confirmations, nil
}
