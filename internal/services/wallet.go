package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kelsos/wallet-session/internal/config"
	"github.com/kelsos/wallet-session/internal/errno"
	"github.com/kelsos/wallet-session/internal/history"
	"github.com/kelsos/wallet-session/internal/indexer"
	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
	"github.com/kelsos/wallet-session/internal/provider"
	"github.com/kelsos/wallet-session/internal/session"
	"github.com/kelsos/wallet-session/internal/transfer"
	"github.com/kelsos/wallet-session/internal/units"
)

// WalletService wires the gateway, the session and the operations the
// user interface calls.
type WalletService struct {
	config    *config.Config
	converter *units.Converter
	gateway   *provider.Gateway
	session   *session.Session
	builder   *transfer.Builder
	scanner   *history.Scanner
	closers   []func()
}

// NewWalletService dials the configured endpoints and creates a
// disconnected session
func NewWalletService(ctx context.Context, cfg *config.Config) (*WalletService, error) {
	ledger, err := provider.DialLedger(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}
	closers := []func(){ledger.Close}

	// interfaces stay nil when a capability is absent
	var signer provider.Signer
	if cfg.HasProvider() {
		rpcSigner, err := provider.DialSigner(ctx, cfg.ProviderURL, cfg.AccountPollInterval)
		if err != nil {
			ledger.Close()
			return nil, err
		}
		signer = rpcSigner
		closers = append(closers, rpcSigner.Close)
	} else {
		logger.Warn("No wallet provider configured, connect and send are unavailable")
	}

	var index provider.Indexer
	if cfg.IndexerURL != "" {
		index = indexer.NewClient(cfg.IndexerURL, cfg.IndexerKey)
	}

	gateway := provider.NewGateway(signer, ledger, index)
	service := newWalletService(cfg, gateway)
	service.closers = closers
	return service, nil
}

func newWalletService(cfg *config.Config, gateway *provider.Gateway) *WalletService {
	converter := units.NewConverter(cfg.Decimals)

	var pager history.Pager
	switch cfg.HistorySource {
	case config.HistoryFromIndexer:
		pager = history.NewGatewayPager(gateway)
	default:
		pager = history.NewBlockPager(gateway, cfg.HistoryBlocks)
	}

	defaults := models.FormDraft{
		GasLimit: strconv.FormatUint(cfg.DefaultGasLimit, 10),
		GasPrice: cfg.DefaultGasPrice,
	}

	return &WalletService{
		config:    cfg,
		converter: converter,
		gateway:   gateway,
		session:   session.New(gateway, defaults),
		builder:   transfer.NewBuilder(converter, gateway),
		scanner:   history.NewScanner(pager, cfg.HistoryWorkers),
	}
}

// Connect asks the provider for accounts and connects the first one
func (s *WalletService) Connect(ctx context.Context) (models.Account, error) {
	return s.session.Connect(ctx)
}

// Accounts returns every account the provider exposes without changing the session
func (s *WalletService) Accounts(ctx context.Context) ([]models.Account, error) {
	return s.gateway.RequestAccounts(ctx)
}

// Disconnect resets the session
func (s *WalletService) Disconnect() {
	s.session.Disconnect()
}

// RefreshBalance fetches the connected account's balance and stores it in
// display denomination
func (s *WalletService) RefreshBalance(ctx context.Context) (string, error) {
	snapshot := s.session.Snapshot()
	if !snapshot.Connected() {
		return "", errno.NotConnected
	}

	balance, err := s.BalanceOf(ctx, snapshot.Account)
	if err != nil {
		return "", err
	}

	if !s.session.SetBalance(snapshot.Account, balance) {
		logger.Debug("Account changed while fetching balance of %s", snapshot.Account)
	}
	return balance, nil
}

// BalanceOf returns the display balance of any account
func (s *WalletService) BalanceOf(ctx context.Context, account models.Account) (string, error) {
	atomic, err := s.gateway.GetBalance(ctx, account)
	if err != nil {
		return "", err
	}
	return s.converter.ToDisplay(atomic), nil
}

// UpdateDraft stores the pending transfer form values
func (s *WalletService) UpdateDraft(draft models.FormDraft) {
	s.session.SetDraft(draft)
}

// Send validates draft and submits it from the connected account.
// Empty gas fields let the provider decide.
func (s *WalletService) Send(ctx context.Context, draft models.FormDraft) (string, error) {
	s.session.SetDraft(draft)
	snapshot := s.session.Snapshot()
	if !snapshot.Connected() {
		return "", errno.NotConnected
	}

	gas, err := transfer.ParseGas(draft.GasLimit, draft.GasPrice)
	if err != nil {
		return "", err
	}

	req, err := s.builder.Build(snapshot, draft.Recipient, draft.Amount, gas)
	if err != nil {
		return "", err
	}

	return s.builder.Send(ctx, req)
}

// FetchHistory rebuilds the connected account's history. The result is
// stored in the session unless the account changed during the scan; a
// failed scan returns the partial result alongside the error.
func (s *WalletService) FetchHistory(ctx context.Context) (models.HistoryResult, error) {
	snapshot := s.session.Snapshot()
	if !snapshot.Connected() {
		return models.HistoryResult{}, errno.NotConnected
	}

	result, err := s.scanner.Scan(ctx, snapshot.Account)
	if err != nil {
		return result, err
	}

	if !s.session.SetHistory(result) {
		logger.Info("Discarding history of %s, account changed during scan", snapshot.Account)
	}
	return result, nil
}

// OnHistoryProgress registers fn to observe history scans
func (s *WalletService) OnHistoryProgress(fn history.ProgressFunc) {
	s.scanner.OnProgress(fn)
}

// Session returns the wallet session
func (s *WalletService) Session() *session.Session {
	return s.session
}

// Converter returns the unit converter for the configured ledger
func (s *WalletService) Converter() *units.Converter {
	return s.converter
}

// GetConfig returns the current configuration
func (s *WalletService) GetConfig() *config.Config {
	return s.config
}

// HasProvider reports whether a signing provider is available
func (s *WalletService) HasProvider() bool {
	return s.gateway.HasSigner()
}

// Close releases the session subscription and closes all connections
func (s *WalletService) Close() {
	s.session.Close()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
