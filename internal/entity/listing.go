package entity

import (
	"crypto/md5"
	"fmt"
	"math/big"

	"github.com/gosimple/slug"
)

type ListingKey struct {
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
}

func NewListingKey(contract string, tokenId uint64) ListingKey {
	return ListingKey{Contract: NormalizeAddress(contract), TokenId: tokenId}
}

func (k ListingKey) Slug() string {
	return CreateListingSlug(k.TokenId, k.Contract)
}

func (k ListingKey) String() string {
	return fmt.Sprintf("%s/%d", k.Contract, k.TokenId)
}

// Listing is a seller's offer for an escrowed token at a fixed price.
type Listing struct {
	Seller   Principal `json:"seller"`
	Contract string    `json:"contract"`
	TokenId  uint64    `json:"tokenId"`
	Price    *big.Int  `json:"price"`
}

func (l Listing) Key() ListingKey {
	return ListingKey{Contract: l.Contract, TokenId: l.TokenId}
}

func (l Listing) Slug() string {
	return l.Key().Slug()
}

// Copy returns a listing that shares no memory with l.
func (l Listing) Copy() Listing {
	if l.Price != nil {
		l.Price = new(big.Int).Set(l.Price)
	}

	return l
}

// CreateListingSlug is the search document id of a listing. The readable part
// is lossy, the digest of the exact pair keeps ids distinct.
func CreateListingSlug(tokenId uint64, contract string) string {
	digest := md5.Sum([]byte(fmt.Sprintf("%s/%d", contract, tokenId)))
	return fmt.Sprintf("%s-%x", slug.Make(fmt.Sprintf("listing-%d-%s", tokenId, contract)), digest[:8])
}
