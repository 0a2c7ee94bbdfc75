package provider

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
)

// AccountsFetcher returns the accounts the provider currently exposes
type AccountsFetcher func(ctx context.Context) ([]models.Account, error)

// AccountWatcher turns periodic account queries into change notifications.
// It polls only while at least one handler is subscribed.
type AccountWatcher struct {
	fetch         AccountsFetcher
	handlers      map[int]func([]models.Account)
	nextID        int
	last          []models.Account
	mu            sync.Mutex
	pollInterval  time.Duration
	stopPolling   chan struct{}
	pollingActive bool
}

func NewAccountWatcher(fetch AccountsFetcher, pollInterval time.Duration) *AccountWatcher {
	return &AccountWatcher{
		fetch:        fetch,
		handlers:     make(map[int]func([]models.Account)),
		pollInterval: pollInterval,
		stopPolling:  make(chan struct{}),
	}
}

// Subscribe registers handler and returns a function that removes it
func (w *AccountWatcher) Subscribe(handler func([]models.Account)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = handler

	if !w.pollingActive {
		w.pollingActive = true
		// Recreate stopPolling channel if it was closed from previous stop
		w.stopPolling = make(chan struct{})
		go w.poll(w.stopPolling)
	}
	w.mu.Unlock()

	logger.Debug("Registered account change handler %d", id)

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.handlers, id)
			empty := len(w.handlers) == 0
			w.mu.Unlock()

			logger.Debug("Removed account change handler %d", id)
			if empty {
				w.Stop()
			}
		})
	}
}

func (w *AccountWatcher) poll(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.checkAccounts(stop)
		}
	}
}

func (w *AccountWatcher) checkAccounts(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), w.pollInterval)
	defer cancel()

	accounts, err := w.fetch(ctx)
	if err != nil {
		logger.Error("Failed to poll provider accounts: %v", err)
		return
	}

	w.mu.Lock()
	select {
	case <-stop:
		w.mu.Unlock()
		return
	default:
	}

	if slices.Equal(accounts, w.last) {
		w.mu.Unlock()
		return
	}
	w.last = slices.Clone(accounts)

	handlers := make([]func([]models.Account), 0, len(w.handlers))
	for _, id := range sortedKeys(w.handlers) {
		handlers = append(handlers, w.handlers[id])
	}
	w.mu.Unlock()

	logger.Info("Provider accounts changed: %d account(s)", len(accounts))
	for _, handler := range handlers {
		handler(slices.Clone(accounts))
	}
}

// Stop halts polling. A later Subscribe restarts it.
func (w *AccountWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pollingActive {
		close(w.stopPolling)
		w.pollingActive = false
		w.last = nil
	}
}

func sortedKeys(m map[int]func([]models.Account)) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
