package transfer

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kelsos/wallet-session/internal/errno"
	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
	"github.com/kelsos/wallet-session/internal/units"
)

// Submitter hands a transfer to the signing provider
type Submitter interface {
	SendTransaction(ctx context.Context, req models.TransferRequest) (string, error)
}

// Builder validates user input into transfer requests and submits them
type Builder struct {
	converter *units.Converter
	submitter Submitter
}

func NewBuilder(converter *units.Converter, submitter Submitter) *Builder {
	return &Builder{
		converter: converter,
		submitter: submitter,
	}
}

// Build assembles a transfer from the connected account of snapshot.
// gas is passed through unchanged; nil lets the provider decide.
func (b *Builder) Build(snapshot models.Snapshot, recipient, amount string, gas *models.GasParams) (models.TransferRequest, error) {
	if !snapshot.Connected() {
		return models.TransferRequest{}, errno.NotConnected
	}

	recipient = strings.TrimSpace(recipient)
	amount = strings.TrimSpace(amount)
	if recipient == "" || amount == "" {
		return models.TransferRequest{}, errno.MissingField
	}

	from, err := checkAddress("sender", snapshot.Account.String())
	if err != nil {
		return models.TransferRequest{}, err
	}
	to, err := checkAddress("recipient", recipient)
	if err != nil {
		return models.TransferRequest{}, err
	}

	value, err := b.converter.ToAtomic(amount)
	if err != nil {
		return models.TransferRequest{}, err
	}

	return models.TransferRequest{
		From:  from,
		To:    to,
		Value: value,
		Gas:   gas,
	}, nil
}

// Send submits req once. A failed submission is returned as is; it is
// never retried since the ledger may still include the first attempt.
func (b *Builder) Send(ctx context.Context, req models.TransferRequest) (string, error) {
	if req.From.IsZero() {
		return "", errno.NotConnected
	}

	logger.Info("Submitting transfer of %s from %s to %s", b.converter.ToDisplay(req.Value), req.From, req.To)

	hash, err := b.submitter.SendTransaction(ctx, req)
	if err != nil {
		logger.Error("Transfer from %s failed: %v", req.From, err)
		return "", err
	}

	logger.Info("Transfer submitted: %s", hash)
	return hash, nil
}

// ParseGas reads form gas fields. Both empty means no gas settings.
func ParseGas(limit, price string) (*models.GasParams, error) {
	limit = strings.TrimSpace(limit)
	price = strings.TrimSpace(price)
	if limit == "" && price == "" {
		return nil, nil
	}

	l, err := strconv.ParseUint(limit, 10, 64)
	if err != nil || l == 0 {
		return nil, errno.Wrap(errno.InvalidGas, fmt.Errorf("gas limit %q", limit))
	}

	p, ok := new(big.Int).SetString(price, 10)
	if !ok || p.Sign() < 0 {
		return nil, errno.Wrap(errno.InvalidGas, fmt.Errorf("gas price %q", price))
	}

	return &models.GasParams{Limit: l, Price: p}, nil
}

func checkAddress(role, raw string) (models.Account, error) {
	if !common.IsHexAddress(raw) {
		return models.NoAccount, errno.Wrap(errno.InvalidAddress, fmt.Errorf("%s %q", role, raw))
	}
	return models.Account(common.HexToAddress(raw).Hex()), nil
}
