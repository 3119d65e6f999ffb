package entity

import (
	"crypto/md5"
	"fmt"
	"math/big"
	"time"
)

const (
	// FeeDenominator expresses sale fees in parts per thousand.
	FeeDenominator uint64 = 1000
	MaxSaleFee     uint64 = 50
	DefaultSaleFee uint64 = 20
)

type ActionType string

const (
	ListingAction        ActionType = "listing"
	SaleAction           ActionType = "sale"
	DelistingAction      ActionType = "delisting"
	SaleFeeUpdatedAction ActionType = "fee"
)

// MarketplaceAction is the record emitted for every committed mutation.
type MarketplaceAction struct {
	Seq      uint64     `json:"seq"`
	Time     time.Time  `json:"time"`
	Action   ActionType `json:"action"`
	Contract string     `json:"contract,omitempty"`
	TokenId  uint64     `json:"tokenId,omitempty"`

	// Listing is the full listing as it existed when the call began.
	Listing *Listing `json:"listing,omitempty"`

	Buyer    Principal `json:"buyer,omitempty"`
	Fee      *big.Int  `json:"fee,omitempty"`
	Proceeds *big.Int  `json:"proceeds,omitempty"`
	Refund   *big.Int  `json:"refund,omitempty"`

	By      Principal `json:"by,omitempty"`
	SaleFee *uint64   `json:"saleFee,omitempty"`
}

func (a MarketplaceAction) Slug() string {
	return CreateMarketplaceActionSlug(a.Seq, a.Contract, a.TokenId, string(a.Action))
}

func CreateMarketplaceActionSlug(seq uint64, contract string, tokenId uint64, action string) string {
	data := []byte(fmt.Sprintf("mpaction-%d-%s-%d-%s", seq, contract, tokenId, action))
	return fmt.Sprintf("%x", md5.Sum(data))
}
