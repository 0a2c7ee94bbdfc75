package errno

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapMatchesKindAndCause(t *testing.T) {
	cause := errors.New("insufficient funds for gas * price + value")
	err := fmt.Errorf("send: %w", Wrap(SubmissionFailed, cause))

	assert.ErrorIs(t, err, SubmissionFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, HistoryFetchFailed)
	assert.Contains(t, err.Error(), "insufficient funds for gas * price + value")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"nil", nil, OK.Code, OK.Message},
		{"bare kind", NotConnected, NotConnected.Code, NotConnected.Message},
		{"wrapped kind", Wrap(HistoryFetchFailed, errors.New("connection reset")), HistoryFetchFailed.Code, HistoryFetchFailed.Message + ": connection reset"},
		{"kind behind fmt wrap", fmt.Errorf("build: %w", MissingField), MissingField.Code, MissingField.Message},
		{"unknown", errors.New("boom"), Internal.Code, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := Decode(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestKindsHaveDistinctCodes(t *testing.T) {
	kinds := []Errno{ProviderUnavailable, UserRejected, SubmissionFailed, NotConnected,
		MissingField, InvalidAmount, InvalidAddress, InvalidGas, HistoryFetchFailed}

	seen := make(map[int]bool)
	for _, k := range kinds {
		assert.False(t, seen[k.Code], "duplicate code %d", k.Code)
		seen[k.Code] = true
	}
}
