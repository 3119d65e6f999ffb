package event

import (
	"sort"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// History keeps recently committed marketplace actions in memory.
type History struct {
	cache *cache.Cache
}

func NewHistory(retention time.Duration) *History {
	return &History{cache.New(retention, 2*retention)}
}

// Record is an event listener callback.
func (h *History) Record(msg interface{}) {
	action, ok := msg.(entity.MarketplaceAction)
	if !ok {
		zap.L().With(zap.Any("msg", msg)).Warn("History: Unexpected event payload")
		return
	}

	h.cache.Set(action.Slug(), action, cache.DefaultExpiration)
}

// Recent returns up to limit actions, oldest first. A limit of zero returns
// everything retained.
func (h *History) Recent(limit int) []entity.MarketplaceAction {
	actions := make([]entity.MarketplaceAction, 0, h.cache.ItemCount())
	for _, item := range h.cache.Items() {
		actions = append(actions, item.Object.(entity.MarketplaceAction))
	}

	sort.Slice(actions, func(i, j int) bool {
		return actions[i].Seq < actions[j].Seq
	})

	if limit > 0 && len(actions) > limit {
		actions = actions[len(actions)-limit:]
	}

	return actions
}
