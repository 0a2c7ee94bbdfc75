package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/kelsos/wallet-session/internal/errno"
	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
)

// ErrNoIndexer is returned by per-position lookups when no indexing service is configured
var ErrNoIndexer = errors.New("no transaction index configured")

// Signer is the injected signing provider: it holds the keys and asks the
// holder to authorize requests.
type Signer interface {
	RequestAccounts(ctx context.Context) ([]models.Account, error)
	SubscribeAccounts(handler func([]models.Account)) (unsubscribe func())
	SendTransaction(ctx context.Context, req models.TransferRequest) (string, error)
}

// Ledger is the read-only ledger endpoint
type Ledger interface {
	Balance(ctx context.Context, account models.Account) (*big.Int, error)
	HeadNumber(ctx context.Context) (uint64, error)
	BlockTransactions(ctx context.Context, number uint64) ([]models.TransactionRecord, error)
}

// Indexer looks up an account's transactions by position. TransactionAt
// returns a nil record when the position holds no transaction.
type Indexer interface {
	TransactionCount(ctx context.Context, account models.Account) (uint64, error)
	TransactionAt(ctx context.Context, account models.Account, index uint64) (*models.TransactionRecord, error)
}

// Gateway is the single entry point to the signing provider and the
// ledger. A nil signer means no provider is present. None of its methods
// impose a timeout; bound them with the context.
type Gateway struct {
	signer  Signer
	ledger  Ledger
	indexer Indexer
}

// NewGateway creates a gateway over the given capabilities. signer and indexer may be nil.
func NewGateway(signer Signer, ledger Ledger, indexer Indexer) *Gateway {
	return &Gateway{
		signer:  signer,
		ledger:  ledger,
		indexer: indexer,
	}
}

// HasSigner reports whether a signing provider is present
func (g *Gateway) HasSigner() bool {
	return g.signer != nil
}

// HasIndexer reports whether per-position lookups are available
func (g *Gateway) HasIndexer() bool {
	return g.indexer != nil
}

// RequestAccounts asks the provider for the holder's accounts
func (g *Gateway) RequestAccounts(ctx context.Context) ([]models.Account, error) {
	if g.signer == nil {
		return nil, errno.ProviderUnavailable
	}

	var accounts []models.Account
	err := timed("requestAccounts", func() error {
		var err error
		accounts, err = g.signer.RequestAccounts(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request accounts: %w", err)
	}

	return accounts, nil
}

// SubscribeAccounts registers handler for provider-initiated account changes
func (g *Gateway) SubscribeAccounts(handler func([]models.Account)) func() {
	if g.signer == nil {
		return func() {}
	}
	return g.signer.SubscribeAccounts(handler)
}

// GetBalance returns the balance of account in atomic units
func (g *Gateway) GetBalance(ctx context.Context, account models.Account) (*big.Int, error) {
	var balance *big.Int
	err := timed("getBalance", func() error {
		var err error
		balance, err = g.ledger.Balance(ctx, account)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance for %s: %w", account, err)
	}

	return balance, nil
}

// SendTransaction submits req through the provider and returns the transaction hash.
// Any provider error is reported as SubmissionFailed with the provider's message.
func (g *Gateway) SendTransaction(ctx context.Context, req models.TransferRequest) (string, error) {
	if g.signer == nil {
		return "", errno.ProviderUnavailable
	}

	var hash string
	err := timed("sendTransaction", func() error {
		var err error
		hash, err = g.signer.SendTransaction(ctx, req)
		return err
	})
	if err != nil {
		return "", errno.Wrap(errno.SubmissionFailed, err)
	}

	return hash, nil
}

// GetTransactionCount returns the number of indexed positions for account
func (g *Gateway) GetTransactionCount(ctx context.Context, account models.Account) (uint64, error) {
	if g.indexer == nil {
		return 0, ErrNoIndexer
	}

	var count uint64
	err := timed("getTransactionCount", func() error {
		var err error
		count, err = g.indexer.TransactionCount(ctx, account)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transaction count for %s: %w", account, err)
	}

	return count, nil
}

// GetTransactionAt returns the transaction at an indexed position, or nil when the position is empty
func (g *Gateway) GetTransactionAt(ctx context.Context, account models.Account, index uint64) (*models.TransactionRecord, error) {
	if g.indexer == nil {
		return nil, ErrNoIndexer
	}

	var record *models.TransactionRecord
	err := timed("getTransactionAt", func() error {
		var err error
		record, err = g.indexer.TransactionAt(ctx, account, index)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %d for %s: %w", index, account, err)
	}

	return record, nil
}

// HeadNumber returns the latest block number of the ledger
func (g *Gateway) HeadNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := timed("headNumber", func() error {
		var err error
		head, err = g.ledger.HeadNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch head block number: %w", err)
	}

	return head, nil
}

// BlockTransactions returns all transactions of one block
func (g *Gateway) BlockTransactions(ctx context.Context, number uint64) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	err := timed("blockTransactions", func() error {
		var err error
		records, err = g.ledger.BlockTransactions(ctx, number)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %d: %w", number, err)
	}

	return records, nil
}

func timed(call string, fn func() error) error {
	start := time.Now()
	logger.Debug("Starting provider call %s", call)

	err := fn()

	elapsed := time.Since(start)
	if err != nil {
		logger.Debug("Provider call %s failed after %v: %v", call, elapsed, err)
		return err
	}
	logger.Debug("Provider call %s completed in %v", call, elapsed)
	return nil
}
