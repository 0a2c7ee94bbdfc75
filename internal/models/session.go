package models

// ConnectionState is the state of a wallet session
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// FormDraft holds the pending transfer form values of a session
type FormDraft struct {
	Recipient string
	Amount    string
	GasLimit  string
	GasPrice  string
}

// Snapshot is a point-in-time copy of a wallet session
type Snapshot struct {
	State   ConnectionState
	Account Account
	// Balance is in display denomination, empty until fetched
	Balance string
	Draft   FormDraft
	History HistoryResult
}

// Connected reports whether the snapshot has a connected account
func (s Snapshot) Connected() bool {
	return s.State == StateConnected && !s.Account.IsZero()
}
