package session

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
)

// ErrSuperseded is returned by Connect when a disconnect or a provider
// account change overtook the pending request. The response was dropped.
var ErrSuperseded = errors.New("connect superseded")

// AccountSource is the part of the gateway a session needs
type AccountSource interface {
	RequestAccounts(ctx context.Context) ([]models.Account, error)
	SubscribeAccounts(handler func([]models.Account)) (unsubscribe func())
}

// Session owns the connection state of one wallet. It is safe for
// concurrent use; every mutation bumps a generation counter so responses
// of superseded requests can be recognised and dropped.
type Session struct {
	source   AccountSource
	defaults models.FormDraft

	// notifyMu orders listener calls the same way mutations were applied
	notifyMu sync.Mutex

	mu         sync.Mutex
	state      models.ConnectionState
	account    models.Account
	balance    string
	draft      models.FormDraft
	history    models.HistoryResult
	generation uint64
	listeners  []func(models.Snapshot)

	closeOnce   sync.Once
	unsubscribe func()
}

// New creates a disconnected session and subscribes it to the source's
// account changes. defaults are the form values restored on every reset.
func New(source AccountSource, defaults models.FormDraft) *Session {
	s := &Session{
		source:   source,
		defaults: defaults,
		state:    models.StateDisconnected,
		draft:    defaults,
	}
	s.unsubscribe = source.SubscribeAccounts(s.HandleAccountsChanged)
	return s
}

// OnChange registers fn to receive a snapshot after every state change.
// fn must not call mutating session methods.
func (s *Session) OnChange(fn func(models.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Connect asks the provider for its accounts and connects the first one.
// Calling Connect while connected returns the current account without
// asking the provider again.
func (s *Session) Connect(ctx context.Context) (models.Account, error) {
	var generation uint64
	ok := s.mutate(func() bool {
		if s.state == models.StateConnected {
			return false
		}
		s.generation++
		generation = s.generation
		s.state = models.StateConnecting
		return true
	})
	if !ok {
		snapshot := s.Snapshot()
		logger.Debug("Already connected as %s", snapshot.Account)
		return snapshot.Account, nil
	}

	logger.Info("Requesting accounts from provider")
	accounts, err := s.source.RequestAccounts(ctx)

	var account models.Account
	stale := false
	s.mutate(func() bool {
		if s.generation != generation || s.state != models.StateConnecting {
			stale = true
			return false
		}
		s.generation++

		account = models.FirstAccount(accounts)
		if err != nil || account.IsZero() {
			s.resetLocked()
			return true
		}
		s.connectLocked(account)
		return true
	})

	switch {
	case stale:
		logger.Info("Dropping superseded connect response")
		return models.NoAccount, ErrSuperseded
	case err != nil:
		logger.Error("Connect failed: %v", err)
		return models.NoAccount, err
	case account.IsZero():
		logger.Warn("Provider returned no accounts")
		return models.NoAccount, nil
	}

	logger.Info("Connected as %s", account)
	return account, nil
}

// Disconnect resets the session from any state. A pending Connect
// response is dropped when it arrives.
func (s *Session) Disconnect() {
	s.mutate(func() bool {
		s.generation++
		s.resetLocked()
		return true
	})
	logger.Info("Disconnected")
}

// HandleAccountsChanged applies a provider-initiated account change.
// Changes are ignored while disconnected.
func (s *Session) HandleAccountsChanged(accounts []models.Account) {
	first := models.FirstAccount(accounts)

	s.mutate(func() bool {
		switch s.state {
		case models.StateDisconnected:
			return false
		case models.StateConnected:
			if !first.IsZero() && first.Same(s.account) {
				return false
			}
		}

		s.generation++
		if first.IsZero() {
			logger.Info("Provider reported no accounts, disconnecting")
			s.resetLocked()
			return true
		}

		logger.Info("Provider switched account to %s", first)
		s.connectLocked(first)
		return true
	})
}

// Snapshot returns a copy of the current session state
func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetBalance stores the display balance of account. It returns false when
// account is no longer the connected one.
func (s *Session) SetBalance(account models.Account, balance string) bool {
	return s.mutate(func() bool {
		if !s.isCurrentLocked(account) {
			return false
		}
		s.balance = balance
		return true
	})
}

// SetHistory replaces the stored history. Results for any account other
// than the connected one are discarded.
func (s *Session) SetHistory(result models.HistoryResult) bool {
	return s.mutate(func() bool {
		if !s.isCurrentLocked(result.Account) {
			return false
		}
		s.history = models.HistoryResult{
			Account:      result.Account,
			Transactions: slices.Clone(result.Transactions),
		}
		return true
	})
}

// SetDraft stores the pending form values
func (s *Session) SetDraft(draft models.FormDraft) {
	s.mutate(func() bool {
		s.draft = draft
		return true
	})
}

// Close releases the account change subscription
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}

// mutate applies fn under the lock and, when fn reports a change,
// notifies listeners with the resulting snapshot.
func (s *Session) mutate(fn func() bool) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := fn()
	snapshot := s.snapshotLocked()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if changed {
		for _, listener := range listeners {
			listener(snapshot)
		}
	}
	return changed
}

func (s *Session) connectLocked(account models.Account) {
	s.state = models.StateConnected
	s.account = account
	s.balance = ""
	s.history = models.HistoryResult{}
}

func (s *Session) resetLocked() {
	s.state = models.StateDisconnected
	s.account = models.NoAccount
	s.balance = ""
	s.draft = s.defaults
	s.history = models.HistoryResult{}
}

func (s *Session) isCurrentLocked(account models.Account) bool {
	return s.state == models.StateConnected && !account.IsZero() && account.Same(s.account)
}

func (s *Session) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		State:   s.state,
		Account: s.account,
		Balance: s.balance,
		Draft:   s.draft,
		History: models.HistoryResult{
			Account:      s.history.Account,
			Transactions: slices.Clone(s.history.Transactions),
		},
	}
}
