package history

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kelsos/wallet-session/internal/errno"
	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
)

// ProgressFunc is called after each completed position. It may be called
// from several goroutines at once.
type ProgressFunc func(done, total uint64)

// Scanner reconstructs an account's history from a Pager, fetching up to
// workers positions concurrently.
type Scanner struct {
	pager    Pager
	workers  int
	progress ProgressFunc
}

func NewScanner(pager Pager, workers int) *Scanner {
	if workers < 1 {
		workers = 1
	}
	return &Scanner{pager: pager, workers: workers}
}

// OnProgress registers fn to observe scan progress
func (s *Scanner) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

// Scan returns the account's records in position order. On failure the
// returned result holds the records of every position before the first
// one that could not be fetched, and the error wraps errno.HistoryFetchFailed.
func (s *Scanner) Scan(ctx context.Context, account models.Account) (models.HistoryResult, error) {
	result := models.HistoryResult{Account: account}
	if account.IsZero() {
		return result, errno.NotConnected
	}

	start := time.Now()
	pages, err := s.pager.Open(ctx, account)
	if err != nil {
		logger.Error("Failed to open history for %s: %v", account, err)
		return result, errno.Wrap(errno.HistoryFetchFailed, err)
	}

	logger.Info("Scanning %d history positions for %s", pages.Count, account)
	if pages.Count == 0 {
		return result, nil
	}

	records := make([][]models.TransactionRecord, pages.Count)
	fetched := make([]bool, pages.Count)
	var done atomic.Uint64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for pos := uint64(0); pos < pages.Count; pos++ {
		if gctx.Err() != nil {
			break
		}
		pos := pos
		g.Go(func() error {
			page, err := pages.Fetch(gctx, pos)
			if err != nil {
				return fmt.Errorf("position %d: %w", pos, err)
			}
			records[pos] = page
			fetched[pos] = true

			n := done.Add(1)
			if s.progress != nil {
				s.progress(n, pages.Count)
			}
			return nil
		})
	}

	err = g.Wait()

	// positions complete out of order; keep the unbroken prefix
	var prefix uint64
	for prefix < pages.Count && fetched[prefix] {
		result.Transactions = append(result.Transactions, records[prefix]...)
		prefix++
	}

	if err == nil && prefix < pages.Count {
		err = ctx.Err()
		if err == nil {
			err = errors.New("scan stopped early")
		}
	}

	if err != nil {
		logger.Error("History scan for %s failed after %d/%d positions: %v", account, prefix, pages.Count, err)
		return result, errno.Wrap(errno.HistoryFetchFailed, err)
	}

	logger.Info("Found %d transactions for %s in %v", result.Len(), account, time.Since(start))
	return result, nil
}
