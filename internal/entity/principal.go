package entity

import (
	"strings"

	"github.com/Zilliqa/gozilliqa-sdk/bech32"
)

// Principal identifies an account able to own assets and hold value.
type Principal string

func NewPrincipal(address string) Principal {
	return Principal(NormalizeAddress(address))
}

func (p Principal) String() string {
	return string(p)
}

func (p Principal) IsZero() bool {
	return p == ""
}

// Bech32 returns the zil1 form of the principal, or an empty string when the
// principal is not a 20 byte address.
func (p Principal) Bech32() string {
	if !isHexAddress(string(p)) {
		return ""
	}

	addr, err := bech32.ToBech32Address(strings.TrimPrefix(string(p), "0x"))
	if err != nil {
		return ""
	}

	return addr
}

// NormalizeAddress converts bech32 addresses to lower case 0x-prefixed hex.
// Other identifiers are trimmed and lower cased.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)

	if strings.HasPrefix(strings.ToLower(address), "zil1") {
		if hex, err := bech32.FromBech32Addr(address); err == nil {
			address = hex
		}
	}

	address = strings.ToLower(address)
	if isHexAddress(address) && !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}

	return address
}

func isHexAddress(address string) bool {
	address = strings.TrimPrefix(strings.ToLower(address), "0x")
	if len(address) != 40 {
		return false
	}

	for _, c := range address {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}
