package models

import "strings"

// Account is an address reported by the signing provider. The empty
// account means no account is connected.
type Account string

// NoAccount is the zero Account
const NoAccount Account = ""

func (a Account) String() string {
	return string(a)
}

// IsZero reports whether no account is set
func (a Account) IsZero() bool {
	return a == NoAccount
}

// Same compares two accounts ignoring hex case
func (a Account) Same(other Account) bool {
	return strings.EqualFold(string(a), string(other))
}

// FirstAccount returns the first account of a provider response, or NoAccount
func FirstAccount(accounts []Account) Account {
	if len(accounts) == 0 {
		return NoAccount
	}
	return accounts[0]
}
