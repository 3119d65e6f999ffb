package elastic_search

import (
	"context"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"go.uber.org/zap"
)

// ActionIndexer mirrors committed marketplace actions into search: every
// action is indexed and the listing index tracks listings still open.
type ActionIndexer struct {
	index Index
}

func NewActionIndexer(index Index) *ActionIndexer {
	return &ActionIndexer{index}
}

// Record is an event listener callback.
func (a *ActionIndexer) Record(msg interface{}) {
	action, ok := msg.(entity.MarketplaceAction)
	if !ok {
		zap.L().With(zap.Any("msg", msg)).Warn("ElasticSearch: Unexpected event payload")
		return
	}

	a.index.AddIndexRequest(ActionIndex.Get(), action)

	if action.Listing != nil {
		switch action.Action {
		case entity.ListingAction:
			a.index.AddIndexRequest(ListingIndex.Get(), *action.Listing)
		case entity.SaleAction, entity.DelistingAction:
			a.index.AddDeleteRequest(ListingIndex.Get(), *action.Listing)
		}
	}

	a.index.BatchPersist(context.Background())
}

// Run flushes buffered requests every interval until ctx is done.
func (a *ActionIndexer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if persisted := a.index.Persist(ctx); persisted > 0 {
				zap.L().With(zap.Int("actions", persisted)).Debug("ElasticSearch: Flushed actions")
			}
		case <-ctx.Done():
			a.index.Persist(context.WithoutCancel(ctx))
			return
		}
	}
}
