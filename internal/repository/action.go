package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/elastic_search"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/olivere/elastic/v7"
	"golang.org/x/xerrors"
)

var (
	ErrActionNotFound = errors.New("marketplace action not found")
)

// ActionRepository reads the marketplace actions mirrored into search.
type ActionRepository interface {
	GetActionsForToken(ctx context.Context, contract string, tokenId uint64, size int) ([]entity.MarketplaceAction, error)
	GetLastSale(ctx context.Context, contract string, tokenId uint64) (*entity.MarketplaceAction, error)
}

type actionRepository struct {
	elastic elastic_search.Index
}

func NewActionRepository(elastic elastic_search.Index) ActionRepository {
	return actionRepository{elastic}
}

// GetActionsForToken returns the newest actions for a token first.
func (r actionRepository) GetActionsForToken(ctx context.Context, contract string, tokenId uint64, size int) ([]entity.MarketplaceAction, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("contract", entity.NormalizeAddress(contract)),
		elastic.NewTermQuery("tokenId", tokenId),
	)

	results, err := search(ctx, r.elastic.GetClient().
		Search(elastic_search.ActionIndex.Get()).
		Query(query).
		Sort("seq", false).
		Size(size))

	return r.findMany(results, err)
}

func (r actionRepository) GetLastSale(ctx context.Context, contract string, tokenId uint64) (*entity.MarketplaceAction, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("contract", entity.NormalizeAddress(contract)),
		elastic.NewTermQuery("tokenId", tokenId),
		elastic.NewTermQuery("action", string(entity.SaleAction)),
	)

	results, err := search(ctx, r.elastic.GetClient().
		Search(elastic_search.ActionIndex.Get()).
		Query(query).
		Sort("seq", false).
		Size(1))

	return r.findOne(results, err)
}

func (r actionRepository) findOne(results *elastic.SearchResult, err error) (*entity.MarketplaceAction, error) {
	actions, err := r.findMany(results, err)
	if err != nil {
		return nil, err
	}

	if len(actions) == 0 {
		return nil, ErrActionNotFound
	}

	return &actions[0], nil
}

func (r actionRepository) findMany(results *elastic.SearchResult, err error) ([]entity.MarketplaceAction, error) {
	actions := make([]entity.MarketplaceAction, 0)
	if err != nil {
		return actions, err
	}

	for _, hit := range results.Hits.Hits {
		var action entity.MarketplaceAction
		if err := json.Unmarshal(hit.Source, &action); err != nil {
			return actions, xerrors.Errorf("decoding action %s: %w", hit.Id, err)
		}
		actions = append(actions, action)
	}

	return actions, nil
}
