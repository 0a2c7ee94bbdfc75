package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelsos/wallet-session/internal/config"
	"github.com/kelsos/wallet-session/internal/errno"
	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
	"github.com/kelsos/wallet-session/internal/services"
	"github.com/kelsos/wallet-session/internal/tui"
	"github.com/kelsos/wallet-session/internal/units"
	"github.com/kelsos/wallet-session/internal/utils"
)

func main() {
	utils.LoadEnvironment()

	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()

	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:   "wallet",
		Short: "A terminal wallet session manager",
		Long: `wallet connects to a signing provider and a ledger node, shows the
connected account's balance and history, and submits value transfers.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := logger.InitFileOnly(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
				os.Exit(1)
			}
			defer logger.Close()

			walletService := newWalletService(cfg, timeout)
			defer walletService.Close()

			monitor := tui.NewWalletMonitor(walletService)
			if err := monitor.Start(); err != nil {
				logger.Fatal("Failed to start monitor: %v", err)
			}
			if err := monitor.Run(); err != nil {
				logger.Fatal("Monitor failed: %v", err)
			}
		},
	}

	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts exposed by the signing provider",
		Run: func(cmd *cobra.Command, args []string) {
			withService(cfg, timeout, func(ctx context.Context, ws *services.WalletService) error {
				accounts, err := ws.Accounts(ctx)
				if err != nil {
					return err
				}
				if len(accounts) == 0 {
					fmt.Println("No accounts available")
				}
				for _, account := range accounts {
					fmt.Println(account)
				}
				return nil
			})
		},
	}

	balanceCmd := &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the balance of an address or of the connected account",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withService(cfg, timeout, func(ctx context.Context, ws *services.WalletService) error {
				var (
					balance string
					err     error
				)
				if len(args) == 1 {
					balance, err = ws.BalanceOf(ctx, models.Account(args[0]))
				} else {
					if _, err := connect(ctx, ws); err != nil {
						return err
					}
					balance, err = ws.RefreshBalance(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", balance, cfg.Symbol)
				return nil
			})
		},
	}

	var draft models.FormDraft
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send a value transfer from the connected account",
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("gas-limit") {
				draft.GasLimit = fmt.Sprint(cfg.DefaultGasLimit)
			}
			if !cmd.Flags().Changed("gas-price") {
				draft.GasPrice = cfg.DefaultGasPrice
			}
			withService(cfg, timeout, func(ctx context.Context, ws *services.WalletService) error {
				if _, err := connect(ctx, ws); err != nil {
					return err
				}
				hash, err := ws.Send(ctx, draft)
				if err != nil {
					return err
				}
				fmt.Printf("Transaction Sent! %s\n", hash)
				return nil
			})
		},
	}
	sendCmd.Flags().StringVar(&draft.Recipient, "to", "", "Recipient address")
	sendCmd.Flags().StringVar(&draft.Amount, "amount", "", "Amount in display denomination")
	sendCmd.Flags().StringVar(&draft.GasLimit, "gas-limit", "", "Gas limit (empty with --gas-price \"\" lets the provider decide)")
	sendCmd.Flags().StringVar(&draft.GasPrice, "gas-price", "", "Gas price in atomic units")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the transaction history of the connected account",
		Run: func(cmd *cobra.Command, args []string) {
			withService(cfg, timeout, func(ctx context.Context, ws *services.WalletService) error {
				if _, err := connect(ctx, ws); err != nil {
					return err
				}
				result, err := ws.FetchHistory(ctx)
				printHistory(ws.Converter(), cfg.Symbol, result)
				return err
			})
		},
	}

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert amounts between display and atomic units",
	}

	toAtomicCmd := &cobra.Command{
		Use:   "to-atomic <amount>",
		Short: "Convert a display amount to atomic units",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			atomic, err := units.NewConverter(cfg.Decimals).ToAtomic(args[0])
			if err != nil {
				exitWith(err)
			}
			fmt.Println(atomic.String())
		},
	}

	toDisplayCmd := &cobra.Command{
		Use:   "to-display <atomic>",
		Short: "Convert an atomic amount to display units",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			atomic, ok := new(big.Int).SetString(args[0], 10)
			if !ok || atomic.Sign() < 0 {
				exitWith(errno.Wrap(errno.InvalidAmount, fmt.Errorf("%q is not a non-negative integer", args[0])))
			}
			fmt.Println(units.NewConverter(cfg.Decimals).ToDisplay(atomic))
		},
	}

	// Add flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.RPCURL, "rpc-url", cfg.RPCURL, "Ledger node RPC endpoint")
	flags.StringVar(&cfg.ProviderURL, "provider-url", cfg.ProviderURL, "Signing provider RPC endpoint")
	flags.StringVar(&cfg.IndexerURL, "indexer-url", cfg.IndexerURL, "Etherscan-compatible indexer API endpoint")
	flags.StringVar((*string)(&cfg.HistorySource), "history-source", string(cfg.HistorySource), "History source: blocks or indexer")
	flags.Uint64Var(&cfg.HistoryBlocks, "history-blocks", cfg.HistoryBlocks, "Number of recent blocks scanned for history")
	flags.IntVar(&cfg.HistoryWorkers, "history-workers", cfg.HistoryWorkers, "Concurrent history lookups")
	flags.Uint8Var(&cfg.Decimals, "decimals", cfg.Decimals, "Decimals of the ledger's atomic unit")
	flags.DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for provider and ledger calls")

	// Add subcommands
	convertCmd.AddCommand(toAtomicCmd, toDisplayCmd)
	rootCmd.AddCommand(accountsCmd, balanceCmd, sendCmd, historyCmd, convertCmd)

	// Execute the root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute command: %v\n", err)
		os.Exit(1)
	}
}

func newWalletService(cfg *config.Config, timeout time.Duration) *services.WalletService {
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	walletService, err := services.NewWalletService(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to start wallet service: %v", err)
	}
	return walletService
}

// withService runs fn against a fresh wallet service and exits non-zero on error
func withService(cfg *config.Config, timeout time.Duration, fn func(ctx context.Context, ws *services.WalletService) error) {
	logger.Init()

	ws := newWalletService(cfg, timeout)

	// interrupting abandons the pending call, not the provider prompt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	err := fn(ctx, ws)
	cancel()
	stop()
	ws.Close()

	if err != nil {
		exitWith(err)
	}
}

func connect(ctx context.Context, ws *services.WalletService) (models.Account, error) {
	account, err := ws.Connect(ctx)
	if err != nil {
		return models.NoAccount, err
	}
	if account.IsZero() {
		return models.NoAccount, errno.NotConnected
	}
	return account, nil
}

func printHistory(converter *units.Converter, symbol string, result models.HistoryResult) {
	for _, tx := range result.Transactions {
		block := "pending"
		if tx.BlockNumber != nil {
			block = fmt.Sprint(*tx.BlockNumber)
		}
		fmt.Printf("%s  %s -> %s  %s %s  block %s\n", tx.Hash, tx.From, tx.To, converter.ToDisplay(tx.Value), symbol, block)
	}
	fmt.Printf("%d transactions for %s\n", result.Len(), result.Account)
}

func exitWith(err error) {
	code, msg := errno.Decode(err)
	fmt.Fprintf(os.Stderr, "Error %d: %s\n", code, msg)
	os.Exit(1)
}
