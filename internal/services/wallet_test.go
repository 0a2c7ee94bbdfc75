package services

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/wallet-session/internal/config"
	"github.com/kelsos/wallet-session/internal/errno"
	"github.com/kelsos/wallet-session/internal/models"
	"github.com/kelsos/wallet-session/internal/provider"
)

const (
	alice = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	bob   = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

type stubSigner struct {
	mu       sync.Mutex
	accounts []models.Account
	handler  func([]models.Account)
	sent     []models.TransferRequest
}

func (s *stubSigner) RequestAccounts(ctx context.Context) ([]models.Account, error) {
	return s.accounts, nil
}

func (s *stubSigner) SubscribeAccounts(handler func([]models.Account)) func() {
	s.handler = handler
	return func() {}
}

func (s *stubSigner) SendTransaction(ctx context.Context, req models.TransferRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return "0xhash", nil
}

type stubLedger struct {
	balance *big.Int
	head    uint64
	blocks  map[uint64][]models.TransactionRecord
	// onBlock runs before a block is served
	onBlock func(number uint64)
}

func (l *stubLedger) Balance(ctx context.Context, account models.Account) (*big.Int, error) {
	return l.balance, nil
}

func (l *stubLedger) HeadNumber(ctx context.Context) (uint64, error) {
	return l.head, nil
}

func (l *stubLedger) BlockTransactions(ctx context.Context, number uint64) ([]models.TransactionRecord, error) {
	if l.onBlock != nil {
		l.onBlock(number)
	}
	return l.blocks[number], nil
}

type stubIndexer struct {
	records []models.TransactionRecord
}

func (i *stubIndexer) TransactionCount(ctx context.Context, account models.Account) (uint64, error) {
	return uint64(len(i.records)), nil
}

func (i *stubIndexer) TransactionAt(ctx context.Context, account models.Account, index uint64) (*models.TransactionRecord, error) {
	return &i.records[index], nil
}

func newTestService(t *testing.T, cfg *config.Config, signer *stubSigner, ledger *stubLedger, index provider.Indexer) *WalletService {
	t.Helper()
	s := newWalletService(cfg, provider.NewGateway(signer, ledger, index))
	t.Cleanup(s.Close)
	return s
}

func record(hash, from, to string) models.TransactionRecord {
	return models.TransactionRecord{Hash: hash, From: from, To: to, Value: big.NewInt(1)}
}

func TestRefreshBalance(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	s := newTestService(t, config.NewConfig(), &stubSigner{accounts: []models.Account{alice}}, &stubLedger{balance: wei}, nil)

	_, err := s.RefreshBalance(context.Background())
	assert.ErrorIs(t, err, errno.NotConnected)

	_, err = s.Connect(context.Background())
	require.NoError(t, err)

	balance, err := s.RefreshBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.5", balance)
	assert.Equal(t, "1.5", s.Session().Snapshot().Balance)

	s.Disconnect()
	assert.Empty(t, s.Session().Snapshot().Balance)
}

func TestSend(t *testing.T) {
	signer := &stubSigner{accounts: []models.Account{alice}}
	s := newTestService(t, config.NewConfig(), signer, &stubLedger{}, nil)

	defaults := s.Session().Snapshot().Draft
	assert.Equal(t, "21000", defaults.GasLimit)
	assert.Equal(t, "20000000000", defaults.GasPrice)

	draft := defaults
	draft.Recipient = bob
	draft.Amount = "0.5"

	_, err := s.Send(context.Background(), draft)
	assert.ErrorIs(t, err, errno.NotConnected)

	_, err = s.Connect(context.Background())
	require.NoError(t, err)

	hash, err := s.Send(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "0xhash", hash)

	require.Len(t, signer.sent, 1)
	sent := signer.sent[0]
	assert.Equal(t, models.Account(alice), sent.From)
	assert.Equal(t, models.Account(bob), sent.To)
	assert.Equal(t, "500000000000000000", sent.Value.String())
	require.NotNil(t, sent.Gas)
	assert.Equal(t, uint64(21000), sent.Gas.Limit)
	assert.Equal(t, "20000000000", sent.Gas.Price.String())

	// the draft survives until disconnect
	assert.Equal(t, draft, s.Session().Snapshot().Draft)
	s.Disconnect()
	assert.Equal(t, defaults, s.Session().Snapshot().Draft)
}

func TestSendRejectsBadInput(t *testing.T) {
	signer := &stubSigner{accounts: []models.Account{alice}}
	s := newTestService(t, config.NewConfig(), signer, &stubLedger{}, nil)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	_, err = s.Send(context.Background(), models.FormDraft{Recipient: bob, Amount: "1", GasLimit: "zero", GasPrice: "1"})
	assert.ErrorIs(t, err, errno.InvalidGas)

	_, err = s.Send(context.Background(), models.FormDraft{Recipient: bob})
	assert.ErrorIs(t, err, errno.MissingField)

	_, err = s.Send(context.Background(), models.FormDraft{Recipient: bob, Amount: "1.2.3"})
	assert.ErrorIs(t, err, errno.InvalidAmount)

	assert.Empty(t, signer.sent)
}

func TestSendWithoutProvider(t *testing.T) {
	s := newWalletService(config.NewConfig(), provider.NewGateway(nil, &stubLedger{}, nil))
	defer s.Close()

	assert.False(t, s.HasProvider())
	_, err := s.Connect(context.Background())
	assert.ErrorIs(t, err, errno.ProviderUnavailable)
	assert.Equal(t, models.StateDisconnected, s.Session().Snapshot().State)
}

func TestFetchHistoryFromIndexer(t *testing.T) {
	cfg := config.NewConfig()
	cfg.HistorySource = config.HistoryFromIndexer

	index := &stubIndexer{records: []models.TransactionRecord{
		record("0x01", alice, bob),
		record("0x02", bob, alice),
	}}
	s := newTestService(t, cfg, &stubSigner{accounts: []models.Account{alice}}, &stubLedger{}, index)

	_, err := s.FetchHistory(context.Background())
	assert.ErrorIs(t, err, errno.NotConnected)

	_, err = s.Connect(context.Background())
	require.NoError(t, err)

	result, err := s.FetchHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Len())

	stored := s.Session().Snapshot().History
	assert.Equal(t, models.Account(alice), stored.Account)
	require.Equal(t, 2, stored.Len())
	assert.Equal(t, "0x01", stored.Transactions[0].Hash)
	assert.Equal(t, "0x02", stored.Transactions[1].Hash)
}

func TestFetchHistoryFromBlocks(t *testing.T) {
	cfg := config.NewConfig()
	cfg.HistoryBlocks = 2

	ledger := &stubLedger{
		head: 3,
		blocks: map[uint64][]models.TransactionRecord{
			1: {record("0x10", alice, bob)},
			2: {record("0x20", bob, bob)},
			3: {record("0x30", bob, alice)},
		},
	}
	s := newTestService(t, cfg, &stubSigner{accounts: []models.Account{alice}}, ledger, nil)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	var progress sync.Map
	s.OnHistoryProgress(func(done, total uint64) {
		progress.Store(done, total)
	})

	result, err := s.FetchHistory(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())
	assert.Equal(t, "0x30", result.Transactions[0].Hash)

	total, ok := progress.Load(uint64(2))
	assert.True(t, ok)
	assert.Equal(t, uint64(2), total)
}

func TestFetchHistoryDiscardedAfterAccountChange(t *testing.T) {
	signer := &stubSigner{accounts: []models.Account{alice}}
	ledger := &stubLedger{
		head:   0,
		blocks: map[uint64][]models.TransactionRecord{0: {record("0x01", alice, bob)}},
	}
	ledger.onBlock = func(uint64) {
		signer.handler([]models.Account{bob})
	}

	s := newTestService(t, config.NewConfig(), signer, ledger, nil)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	result, err := s.FetchHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Len())

	snapshot := s.Session().Snapshot()
	assert.Equal(t, models.Account(bob), snapshot.Account)
	assert.Equal(t, 0, snapshot.History.Len())
}
