package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/kelsos/wallet-session/internal/errno"
	"github.com/kelsos/wallet-session/internal/models"
)

// JSON-RPC error codes a signing provider may report (EIP-1193 and JSON-RPC 2.0)
const (
	codeUserRejected   = 4001
	codeUnauthorized   = 4100
	codeMethodNotFound = -32601
)

// RPCSigner is a signing provider reached over JSON-RPC, such as an
// external signer or a node holding unlocked accounts.
type RPCSigner struct {
	client  *rpc.Client
	watcher *AccountWatcher
}

// sendTxArgs mirrors the eth_sendTransaction parameter object
type sendTxArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	Value    *hexutil.Big    `json:"value"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
}

// DialSigner connects to the signing provider at rawURL
func DialSigner(ctx context.Context, rawURL string, pollInterval time.Duration) (*RPCSigner, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, errno.Wrap(errno.ProviderUnavailable, err)
	}
	return NewRPCSigner(client, pollInterval), nil
}

// NewRPCSigner wraps an established RPC client
func NewRPCSigner(client *rpc.Client, pollInterval time.Duration) *RPCSigner {
	s := &RPCSigner{client: client}
	s.watcher = NewAccountWatcher(s.Accounts, pollInterval)
	return s
}

// RequestAccounts asks the holder to expose accounts. Providers without
// an authorization prompt get a plain eth_accounts query instead.
func (s *RPCSigner) RequestAccounts(ctx context.Context) ([]models.Account, error) {
	var addrs []common.Address
	err := s.client.CallContext(ctx, &addrs, "eth_requestAccounts")
	if errorCode(err) == codeMethodNotFound {
		return s.Accounts(ctx)
	}
	if err != nil {
		return nil, classify(err)
	}
	return toAccounts(addrs), nil
}

// Accounts returns the accounts currently exposed, without prompting
func (s *RPCSigner) Accounts(ctx context.Context) ([]models.Account, error) {
	var addrs []common.Address
	if err := s.client.CallContext(ctx, &addrs, "eth_accounts"); err != nil {
		return nil, classify(err)
	}
	return toAccounts(addrs), nil
}

// SubscribeAccounts registers handler for account changes
func (s *RPCSigner) SubscribeAccounts(handler func([]models.Account)) func() {
	return s.watcher.Subscribe(handler)
}

// SendTransaction asks the provider to sign and broadcast req
func (s *RPCSigner) SendTransaction(ctx context.Context, req models.TransferRequest) (string, error) {
	to := common.HexToAddress(req.To.String())
	args := sendTxArgs{
		From:  common.HexToAddress(req.From.String()),
		To:    &to,
		Value: (*hexutil.Big)(req.Value),
	}
	if req.Gas != nil {
		gas := hexutil.Uint64(req.Gas.Limit)
		args.Gas = &gas
		if req.Gas.Price != nil {
			args.GasPrice = (*hexutil.Big)(req.Gas.Price)
		}
	}

	var hash common.Hash
	if err := s.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return "", classify(err)
	}
	return hash.Hex(), nil
}

// Close stops account polling and closes the connection
func (s *RPCSigner) Close() {
	s.watcher.Stop()
	s.client.Close()
}

func toAccounts(addrs []common.Address) []models.Account {
	accounts := make([]models.Account, 0, len(addrs))
	for _, addr := range addrs {
		accounts = append(accounts, models.Account(addr.Hex()))
	}
	return accounts
}

func errorCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}

// classify maps provider failures onto the wallet's error kinds, keeping
// the provider message as the cause.
func classify(err error) error {
	switch errorCode(err) {
	case codeUserRejected, codeUnauthorized:
		return errno.Wrap(errno.UserRejected, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errno.Wrap(errno.ProviderUnavailable, err)
	}

	return fmt.Errorf("provider error: %w", err)
}
