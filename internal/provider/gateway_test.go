package provider

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/wallet-session/internal/errno"
	"github.com/kelsos/wallet-session/internal/models"
)

type stubSigner struct {
	accounts []models.Account
	err      error
	hash     string
	sent     []models.TransferRequest
}

func (s *stubSigner) RequestAccounts(ctx context.Context) ([]models.Account, error) {
	return s.accounts, s.err
}

func (s *stubSigner) SubscribeAccounts(handler func([]models.Account)) func() {
	return func() {}
}

func (s *stubSigner) SendTransaction(ctx context.Context, req models.TransferRequest) (string, error) {
	s.sent = append(s.sent, req)
	return s.hash, s.err
}

type stubLedger struct {
	balance *big.Int
	err     error
}

func (l *stubLedger) Balance(ctx context.Context, account models.Account) (*big.Int, error) {
	return l.balance, l.err
}

func (l *stubLedger) HeadNumber(ctx context.Context) (uint64, error) {
	return 0, l.err
}

func (l *stubLedger) BlockTransactions(ctx context.Context, number uint64) ([]models.TransactionRecord, error) {
	return nil, l.err
}

func TestGatewayWithoutSigner(t *testing.T) {
	g := NewGateway(nil, &stubLedger{}, nil)
	ctx := context.Background()

	assert.False(t, g.HasSigner())

	_, err := g.RequestAccounts(ctx)
	assert.ErrorIs(t, err, errno.ProviderUnavailable)

	_, err = g.SendTransaction(ctx, models.TransferRequest{From: "0xabc"})
	assert.ErrorIs(t, err, errno.ProviderUnavailable)

	unsubscribe := g.SubscribeAccounts(func([]models.Account) {})
	assert.NotPanics(t, unsubscribe)
}

func TestGatewayRequestAccounts(t *testing.T) {
	signer := &stubSigner{accounts: []models.Account{"0xABC", "0xDEF"}}
	g := NewGateway(signer, &stubLedger{}, nil)

	accounts, err := g.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Account{"0xABC", "0xDEF"}, accounts)

	signer.err = errno.Wrap(errno.UserRejected, errors.New("User rejected the request."))
	_, err = g.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, errno.UserRejected)
}

func TestGatewaySendTransactionSurfacesProviderMessage(t *testing.T) {
	signer := &stubSigner{err: errors.New("insufficient funds for gas * price + value")}
	g := NewGateway(signer, &stubLedger{}, nil)

	_, err := g.SendTransaction(context.Background(), models.TransferRequest{From: "0xabc", To: "0xdef", Value: big.NewInt(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.SubmissionFailed)

	_, msg := errno.Decode(err)
	assert.Contains(t, msg, "insufficient funds for gas * price + value")
	assert.Len(t, signer.sent, 1)
}

func TestGatewayBalance(t *testing.T) {
	g := NewGateway(nil, &stubLedger{balance: big.NewInt(42)}, nil)

	balance, err := g.GetBalance(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance.Int64())

	g = NewGateway(nil, &stubLedger{err: errors.New("dial tcp: connection refused")}, nil)
	_, err = g.GetBalance(context.Background(), "0xabc")
	assert.ErrorContains(t, err, "connection refused")
}

func TestGatewayWithoutIndexer(t *testing.T) {
	g := NewGateway(nil, &stubLedger{}, nil)

	_, err := g.GetTransactionCount(context.Background(), "0xabc")
	assert.ErrorIs(t, err, ErrNoIndexer)

	_, err = g.GetTransactionAt(context.Background(), "0xabc", 0)
	assert.ErrorIs(t, err, ErrNoIndexer)
}
