package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelsos/wallet-session/internal/errno"
	"github.com/kelsos/wallet-session/internal/logger"
	"github.com/kelsos/wallet-session/internal/models"
	"github.com/kelsos/wallet-session/internal/services"
	"github.com/kelsos/wallet-session/internal/session"
)

// connect and send wait on the holder approving a prompt
const (
	promptTimeout = 5 * time.Minute
	readTimeout   = 2 * time.Minute
)

type WalletMonitor struct {
	walletService *services.WalletService
	program       *tea.Program
}

func NewWalletMonitor(walletService *services.WalletService) *WalletMonitor {
	return &WalletMonitor{
		walletService: walletService,
	}
}

func (wm *WalletMonitor) Start() error {
	cfg := wm.walletService.GetConfig()
	model := NewModel(wm, wm.walletService.Converter(), cfg.Symbol)
	wm.program = tea.NewProgram(model, tea.WithAltScreen())

	wm.walletService.Session().OnChange(func(snapshot models.Snapshot) {
		wm.program.Send(SessionUpdate{Snapshot: snapshot})
	})
	wm.walletService.OnHistoryProgress(func(done, total uint64) {
		wm.program.Send(HistoryProgress{Done: done, Total: total})
	})

	return nil
}

func (wm *WalletMonitor) Stop() {
	if wm.program != nil {
		wm.program.Quit()
	}
}

func (wm *WalletMonitor) AddLog(message string) {
	if wm.program != nil {
		wm.program.Send(LogMessage{
			Message: message,
		})
	}
}

func (wm *WalletMonitor) Run() error {
	if !wm.walletService.HasProvider() {
		go wm.AddLog("No wallet provider configured, set WALLET_PROVIDER_URL to connect")
	}

	// Run the TUI (blocks until quit)
	if _, err := wm.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}

// Perform runs op against the wallet service
func (wm *WalletMonitor) Perform(op Operation, draft models.FormDraft) tea.Msg {
	done := OperationDone{Op: op}
	ws := wm.walletService

	switch op {
	case OpConnect:
		ctx, cancel := context.WithTimeout(context.Background(), promptTimeout)
		defer cancel()
		account, err := ws.Connect(ctx)
		switch {
		case errors.Is(err, session.ErrSuperseded):
			done.Message = "Connect request was superseded"
		case err != nil:
			done.Err = describe(err)
		case account.IsZero():
			done.Message = "Provider returned no accounts"
		default:
			done.Message = fmt.Sprintf("Connected as %s", account)
		}

	case OpDisconnect:
		ws.Disconnect()
		done.Message = "Disconnected"

	case OpBalance:
		ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
		defer cancel()
		balance, err := ws.RefreshBalance(ctx)
		if err != nil {
			done.Err = describe(err)
		} else {
			done.Message = fmt.Sprintf("Balance: %s %s", balance, ws.GetConfig().Symbol)
		}

	case OpHistory:
		ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
		defer cancel()
		result, err := ws.FetchHistory(ctx)
		if err != nil {
			done.Err = describe(err)
			if result.Len() > 0 {
				wm.AddLog(fmt.Sprintf("Partial history for %s: %d transactions", result.Account, result.Len()))
			}
		} else {
			done.Message = fmt.Sprintf("Found %d transactions", result.Len())
		}

	case OpSend:
		ctx, cancel := context.WithTimeout(context.Background(), promptTimeout)
		defer cancel()
		hash, err := ws.Send(ctx, draft)
		if err != nil {
			done.Err = describe(err)
		} else {
			done.Message = fmt.Sprintf("Transaction Sent! %s", hash)
		}

	case OpSaveDraft:
		ws.UpdateDraft(draft)

	default:
		logger.Warn("Unknown monitor operation: %s", op)
		done.Err = fmt.Errorf("unknown operation %q", op)
	}

	return done
}

// describe maps err to its user-facing message
func describe(err error) error {
	code, msg := errno.Decode(err)
	logger.Error("Operation failed (code %d): %v", code, err)
	return errors.New(msg)
}
