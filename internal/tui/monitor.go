package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kelsos/wallet-session/internal/models"
	"github.com/kelsos/wallet-session/internal/units"
)

// Operation is a user action the monitor hands to its Runner
type Operation string

const (
	OpConnect    Operation = "connect"
	OpDisconnect Operation = "disconnect"
	OpBalance    Operation = "balance"
	OpHistory    Operation = "history"
	OpSend       Operation = "send"
	OpSaveDraft  Operation = "save-draft"
)

// Runner performs operations. Perform blocks and is called off the UI loop.
type Runner interface {
	Perform(op Operation, draft models.FormDraft) tea.Msg
}

const maxHistoryRows = 8

// form field order
const (
	fieldRecipient = iota
	fieldAmount
	fieldGasLimit
	fieldGasPrice
)

type Model struct {
	runner    Runner
	converter *units.Converter
	symbol    string

	snapshot models.Snapshot
	busy     Operation
	status   string
	failed   bool

	historyDone  uint64
	historyTotal uint64

	editing bool
	focus   int
	inputs  []textinput.Model

	logs     []string
	spinner  spinner.Model
	progress progress.Model
	width    int
	height   int
	quit     bool
}

// SessionUpdate carries the latest session snapshot
type SessionUpdate struct {
	Snapshot models.Snapshot
}

// OperationDone reports the outcome of an operation
type OperationDone struct {
	Op      Operation
	Message string
	Err     error
}

// HistoryProgress reports scanned positions of a history fetch
type HistoryProgress struct {
	Done  uint64
	Total uint64
}

type LogMessage struct {
	Message string
}

func NewModel(runner Runner, converter *units.Converter, symbol string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pr := progress.New(progress.WithDefaultGradient())

	return Model{
		runner:    runner,
		converter: converter,
		symbol:    symbol,
		snapshot:  models.Snapshot{State: models.StateDisconnected},
		inputs:    newFormInputs(),
		logs:      []string{},
		spinner:   sp,
		progress:  pr,
		width:     80,
		height:    24,
	}
}

func newFormInputs() []textinput.Model {
	labels := []struct {
		prompt      string
		placeholder string
		limit       int
	}{
		{"Recipient: ", "0x…", 42},
		{"Amount:    ", "0.0", 40},
		{"Gas limit: ", "21000", 20},
		{"Gas price: ", "20000000000", 40},
	}

	inputs := make([]textinput.Model, len(labels))
	for i, l := range labels {
		in := textinput.New()
		in.Prompt = l.prompt
		in.Placeholder = l.placeholder
		in.CharLimit = l.limit
		in.Width = 48
		in.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
		inputs[i] = in
	}
	return inputs
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quit = true
			return m, tea.Quit
		}
		if m.editing {
			return m.handleFormKey(msg)
		}
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case SessionUpdate:
		m.snapshot = msg.Snapshot

	case OperationDone:
		m = m.handleOperationDone(msg)

	case HistoryProgress:
		m.historyDone = msg.Done
		m.historyTotal = msg.Total

	case LogMessage:
		m = m.handleLogMessage(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quit = true
		return m, tea.Quit
	case "c":
		return m.start(OpConnect, models.FormDraft{})
	case "d":
		return m.start(OpDisconnect, models.FormDraft{})
	case "b":
		return m.start(OpBalance, models.FormDraft{})
	case "h":
		m.historyDone, m.historyTotal = 0, 0
		return m.start(OpHistory, models.FormDraft{})
	case "s":
		return m.openForm()
	}
	return m, nil
}

func (m Model) openForm() (tea.Model, tea.Cmd) {
	draft := m.snapshot.Draft
	values := []string{draft.Recipient, draft.Amount, draft.GasLimit, draft.GasPrice}
	for i := range m.inputs {
		m.inputs[i].SetValue(values[i])
		m.inputs[i].Blur()
	}
	m.editing = true
	m.focus = fieldRecipient
	return m, m.inputs[m.focus].Focus()
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		return m.start(OpSaveDraft, m.draft())
	case "enter":
		m.editing = false
		return m.start(OpSend, m.draft())
	case "tab", "down":
		return m.focusField((m.focus + 1) % len(m.inputs))
	case "shift+tab", "up":
		return m.focusField((m.focus + len(m.inputs) - 1) % len(m.inputs))
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) focusField(i int) (tea.Model, tea.Cmd) {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m, m.inputs[m.focus].Focus()
}

func (m Model) draft() models.FormDraft {
	return models.FormDraft{
		Recipient: m.inputs[fieldRecipient].Value(),
		Amount:    m.inputs[fieldAmount].Value(),
		GasLimit:  m.inputs[fieldGasLimit].Value(),
		GasPrice:  m.inputs[fieldGasPrice].Value(),
	}
}

// start runs op unless another operation is in flight
func (m Model) start(op Operation, draft models.FormDraft) (tea.Model, tea.Cmd) {
	if m.busy != "" && op != OpDisconnect && op != OpSaveDraft {
		m.status = fmt.Sprintf("Waiting for %s to finish", m.busy)
		m.failed = false
		return m, nil
	}
	if op != OpDisconnect && op != OpSaveDraft {
		m.busy = op
	}

	runner := m.runner
	return m, func() tea.Msg {
		return runner.Perform(op, draft)
	}
}

func (m Model) handleOperationDone(msg OperationDone) Model {
	if msg.Op == m.busy {
		m.busy = ""
	}
	if msg.Op == OpSaveDraft && msg.Err == nil {
		return m
	}

	m.failed = msg.Err != nil
	if m.failed {
		m.status = msg.Err.Error()
	} else {
		m.status = msg.Message
	}
	return m.handleLogMessage(LogMessage{Message: fmt.Sprintf("%s: %s", msg.Op, m.status)})
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.progress.Width = msg.Width - 40
	return m
}

func (m Model) handleLogMessage(msg LogMessage) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s",
		time.Now().Format("15:04:05"), msg.Message))
	if len(m.logs) > 10 {
		m.logs = m.logs[len(m.logs)-10:]
	}
	return m
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("Wallet Session Monitor"))
	s.WriteString("\n\n")

	s.WriteString(m.sessionView())
	s.WriteString("\n\n")

	if m.editing {
		s.WriteString(m.formView())
	} else {
		s.WriteString(m.historyView())
	}
	s.WriteString("\n\n")

	if m.status != "" {
		color := "82"
		if m.failed {
			color = "196"
		}
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(m.status))
		s.WriteString("\n\n")
	}

	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(8)

	var logSection strings.Builder
	logSection.WriteString("Recent Logs\n")
	for _, log := range m.logs {
		logSection.WriteString(log + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	footer := "c connect | d disconnect | b balance | h history | s send | q quit | Logs: logs/wallet_*.log"
	if m.editing {
		footer = "tab next field | enter send | esc close"
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

func (m Model) sessionView() string {
	sectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	stateStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(stateColor(m.snapshot.State)))

	var b strings.Builder
	b.WriteString(fmt.Sprintf("State:   %s", stateStyle.Render(string(m.snapshot.State))))
	if m.busy != "" {
		b.WriteString(fmt.Sprintf("  %s %s", m.spinner.View(), m.busy))
	}
	b.WriteString("\n")

	account := "-"
	if !m.snapshot.Account.IsZero() {
		account = m.snapshot.Account.String()
	}
	b.WriteString(fmt.Sprintf("Account: %s\n", account))

	balance := "-"
	if m.snapshot.Balance != "" {
		balance = fmt.Sprintf("%s %s", m.snapshot.Balance, m.symbol)
	}
	b.WriteString(fmt.Sprintf("Balance: %s", balance))

	return sectionStyle.Render(b.String())
}

func (m Model) formView() string {
	sectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(1).
		Width(m.width - 2)

	var b strings.Builder
	b.WriteString("Send Transaction\n\n")
	for _, in := range m.inputs {
		b.WriteString(in.View() + "\n")
	}
	return sectionStyle.Render(b.String())
}

func (m Model) historyView() string {
	sectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Transaction History (%d)\n", m.snapshot.History.Len()))
	b.WriteString(strings.Repeat("─", 60) + "\n")

	if m.busy == OpHistory && m.historyTotal > 0 {
		ratio := float64(m.historyDone) / float64(m.historyTotal)
		b.WriteString(fmt.Sprintf("%s %d/%d\n", m.progress.ViewAs(ratio), m.historyDone, m.historyTotal))
	}

	txs := m.snapshot.History.Transactions
	if len(txs) > maxHistoryRows {
		txs = txs[len(txs)-maxHistoryRows:]
	}
	for _, tx := range txs {
		b.WriteString(m.transactionLine(tx) + "\n")
	}

	return sectionStyle.Render(b.String())
}

func (m Model) transactionLine(tx models.TransactionRecord) string {
	direction, counterparty := "in ", tx.From
	if m.snapshot.Account.Same(models.Account(tx.From)) {
		direction, counterparty = "out", tx.To
	}
	if counterparty == "" {
		counterparty = "(contract creation)"
	}

	block := "pending"
	if tx.BlockNumber != nil {
		block = fmt.Sprintf("#%d", *tx.BlockNumber)
	}

	return fmt.Sprintf("%s %-13s %-20s %s %s  %s",
		direction,
		truncate(tx.Hash, 13),
		truncate(counterparty, 20),
		m.converter.ToDisplay(tx.Value),
		m.symbol,
		block)
}

func stateColor(state models.ConnectionState) string {
	switch state {
	case models.StateConnected:
		return "82"
	case models.StateConnecting:
		return "214"
	default:
		return "244"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
