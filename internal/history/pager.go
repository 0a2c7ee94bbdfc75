package history

import (
	"context"

	"github.com/kelsos/wallet-session/internal/models"
	"github.com/kelsos/wallet-session/internal/provider"
)

// Pages is one scan's view of an account's history. Fetch may be called
// concurrently for any position below Count and returns zero or more records.
type Pages struct {
	Count uint64
	Fetch func(ctx context.Context, pos uint64) ([]models.TransactionRecord, error)
}

// Pager splits an account's history into independently fetchable positions
type Pager interface {
	Open(ctx context.Context, account models.Account) (Pages, error)
}

// GatewayPager walks the per-account positions reported by the gateway's indexer
type GatewayPager struct {
	gateway *provider.Gateway
}

func NewGatewayPager(gateway *provider.Gateway) *GatewayPager {
	return &GatewayPager{gateway: gateway}
}

func (p *GatewayPager) Open(ctx context.Context, account models.Account) (Pages, error) {
	count, err := p.gateway.GetTransactionCount(ctx, account)
	if err != nil {
		return Pages{}, err
	}

	fetch := func(ctx context.Context, pos uint64) ([]models.TransactionRecord, error) {
		record, err := p.gateway.GetTransactionAt(ctx, account, pos)
		if err != nil {
			return nil, err
		}
		// empty position
		if record == nil {
			return nil, nil
		}
		return []models.TransactionRecord{*record}, nil
	}

	return Pages{Count: count, Fetch: fetch}, nil
}

// BlockPager scans a window of the most recent blocks for transactions
// sent from or to the account. Position 0 is the oldest block of the window.
type BlockPager struct {
	gateway *provider.Gateway
	window  uint64
}

func NewBlockPager(gateway *provider.Gateway, window uint64) *BlockPager {
	return &BlockPager{gateway: gateway, window: window}
}

func (p *BlockPager) Open(ctx context.Context, account models.Account) (Pages, error) {
	head, err := p.gateway.HeadNumber(ctx)
	if err != nil {
		return Pages{}, err
	}

	// the head is pinned so positions stay stable while new blocks arrive
	count := min(p.window, head+1)
	first := head + 1 - count

	fetch := func(ctx context.Context, pos uint64) ([]models.TransactionRecord, error) {
		records, err := p.gateway.BlockTransactions(ctx, first+pos)
		if err != nil {
			return nil, err
		}
		return involving(account, records), nil
	}

	return Pages{Count: count, Fetch: fetch}, nil
}

func involving(account models.Account, records []models.TransactionRecord) []models.TransactionRecord {
	var matched []models.TransactionRecord
	for _, record := range records {
		if account.Same(models.Account(record.From)) || account.Same(models.Account(record.To)) {
			matched = append(matched, record)
		}
	}
	return matched
}
