package messenger

import (
	"encoding/json"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"go.uber.org/zap"
)

// ActionPublisher forwards committed marketplace actions to the message bus.
type ActionPublisher struct {
	service MessageService
	index   string
}

func NewActionPublisher(service MessageService, index string) *ActionPublisher {
	return &ActionPublisher{service, index}
}

// Publish is an event listener callback.
func (p *ActionPublisher) Publish(msg interface{}) {
	action, ok := msg.(entity.MarketplaceAction)
	if !ok {
		zap.L().With(zap.Any("msg", msg)).Warn("[Queue] Unexpected event payload")
		return
	}

	body, err := json.Marshal(action)
	if err != nil {
		zap.L().With(zap.Error(err), zap.Uint64("seq", action.Seq)).Error("[Queue] Failed to encode action")
		return
	}

	if err := p.service.SendMessage(MarketplaceActions, RoutingKey(p.index, string(action.Action)), body, false); err != nil {
		zap.L().With(zap.Error(err), zap.Uint64("seq", action.Seq)).Error("[Queue] Failed to publish action")
	}
}
