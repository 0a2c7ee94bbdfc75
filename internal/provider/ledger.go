package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
)

// NodeLedger reads balances and blocks from a ledger node
type NodeLedger struct {
	client  *ethclient.Client
	chainID *big.Int
	signer  types.Signer
}

// DialLedger connects to the ledger node at rawURL and reads its chain id
func DialLedger(ctx context.Context, rawURL string) (*NodeLedger, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger %s: %w", rawURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}

	logger.Info("Connected to ledger at %s (chain id %s)", rawURL, chainID)

	return &NodeLedger{
		client:  client,
		chainID: chainID,
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

// ChainID returns the chain id reported by the node at dial time
func (l *NodeLedger) ChainID() *big.Int {
	return new(big.Int).Set(l.chainID)
}

func (l *NodeLedger) Balance(ctx context.Context, account models.Account) (*big.Int, error) {
	return l.client.BalanceAt(ctx, common.HexToAddress(account.String()), nil)
}

func (l *NodeLedger) HeadNumber(ctx context.Context) (uint64, error) {
	return l.client.BlockNumber(ctx)
}

// BlockTransactions returns the transactions of block number with their senders recovered
func (l *NodeLedger) BlockTransactions(ctx context.Context, number uint64) ([]models.TransactionRecord, error) {
	block, err := l.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, err
	}

	records := make([]models.TransactionRecord, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		record, ok := toRecord(l.signer, tx, number)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// Close closes the node connection
func (l *NodeLedger) Close() {
	l.client.Close()
}

func toRecord(signer types.Signer, tx *types.Transaction, blockNumber uint64) (models.TransactionRecord, bool) {
	from, err := types.Sender(signer, tx)
	if err != nil {
		// unprotected or foreign tx types we cannot attribute
		logger.Debug("Skipping tx %s in block %d: %v", tx.Hash().Hex(), blockNumber, err)
		return models.TransactionRecord{}, false
	}

	to := ""
	if tx.To() != nil {
		to = tx.To().Hex()
	}

	value := tx.Value()
	if value == nil {
		value = big.NewInt(0)
	}

	n := blockNumber
	return models.TransactionRecord{
		Hash:        tx.Hash().Hex(),
		From:        from.Hex(),
		To:          to,
		Value:       new(big.Int).Set(value),
		BlockNumber: &n,
	}, true
}
