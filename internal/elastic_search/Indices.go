package elastic_search

import (
	"fmt"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
)

type Indices string

var (
	ActionIndex  Indices = "action"
	ListingIndex Indices = "listing"
)

// Sets the network and returns the full string
func (i Indices) Get() string {
	return fmt.Sprintf("%s.%s.%s", config.Get().Network, config.Get().Index, string(i))
}

var mappings = map[Indices]string{
	ActionIndex: `{
  "mappings": {
    "properties": {
      "seq":      {"type": "long"},
      "time":     {"type": "date"},
      "action":   {"type": "keyword"},
      "contract": {"type": "keyword"},
      "tokenId":  {"type": "unsigned_long"},
      "buyer":    {"type": "keyword"},
      "fee":      {"type": "keyword"},
      "proceeds": {"type": "keyword"},
      "refund":   {"type": "keyword"},
      "by":       {"type": "keyword"},
      "saleFee":  {"type": "integer"},
      "listing": {
        "properties": {
          "seller":   {"type": "keyword"},
          "contract": {"type": "keyword"},
          "tokenId":  {"type": "unsigned_long"},
          "price":    {"type": "keyword"}
        }
      }
    }
  }
}`,
	ListingIndex: `{
  "mappings": {
    "properties": {
      "seller":   {"type": "keyword"},
      "contract": {"type": "keyword"},
      "tokenId":  {"type": "unsigned_long"},
      "price":    {"type": "keyword"}
    }
  }
}`,
}
