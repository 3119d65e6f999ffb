package api

import (
	"math/big"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/exchange"
)

// Amounts cross the wire as base 10 strings.

type ListingResponse struct {
	Seller       string `json:"seller"`
	SellerBech32 string `json:"sellerBech32,omitempty"`
	Contract     string `json:"contract"`
	TokenId      uint64 `json:"tokenId"`
	Price        string `json:"price"`
}

func newListingResponse(l entity.Listing) ListingResponse {
	return ListingResponse{
		Seller:       l.Seller.String(),
		SellerBech32: l.Seller.Bech32(),
		Contract:     l.Contract,
		TokenId:      l.TokenId,
		Price:        amount(l.Price),
	}
}

type CreateListingRequest struct {
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
	Price    string `json:"price"`
}

type BuyRequest struct {
	Payment string `json:"payment"`
}

type SettlementResponse struct {
	Listing  ListingResponse `json:"listing"`
	Buyer    string          `json:"buyer"`
	Fee      string          `json:"fee"`
	Proceeds string          `json:"proceeds"`
	Refund   string          `json:"refund"`
}

func newSettlementResponse(s exchange.Settlement) SettlementResponse {
	return SettlementResponse{
		Listing:  newListingResponse(s.Listing),
		Buyer:    s.Buyer.String(),
		Fee:      amount(s.Fee),
		Proceeds: amount(s.Proceeds),
		Refund:   amount(s.Refund),
	}
}

type ExistsResponse struct {
	Exists bool `json:"exists"`
}

type FeeResponse struct {
	Owner       string `json:"owner"`
	SaleFee     uint64 `json:"saleFee"`
	Denominator uint64 `json:"denominator"`
	MaxSaleFee  uint64 `json:"maxSaleFee"`
}

type FeePreviewResponse struct {
	Price string `json:"price"`
	Fee   string `json:"fee"`
}

type SetSaleFeeRequest struct {
	Fraction uint64 `json:"fraction"`
}

type FeeOwnerRequest struct {
	Owner string `json:"owner"`
}

type MintRequest struct {
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
	Owner    string `json:"owner"`
}

type ApprovalRequest struct {
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
	Operator string `json:"operator"`
}

type OperatorRequest struct {
	Contract string `json:"contract"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

type FundRequest struct {
	Principal string `json:"principal"`
	Amount    string `json:"amount"`
}

type RejectingRequest struct {
	Principal string `json:"principal"`
	Rejecting bool   `json:"rejecting"`
}

type TokenResponse struct {
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
	Owner    string `json:"owner"`
}

type BalanceResponse struct {
	Principal string `json:"principal"`
	Balance   string `json:"balance"`
}

type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}

	return v.String()
}

func parseAmount(v string) (*big.Int, bool) {
	if v == "" {
		return nil, false
	}

	return new(big.Int).SetString(v, 10)
}
