package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/stretchr/testify/require"
)

type sent struct {
	item       Item
	routingKey string
	body       []byte
}

type fakeService struct {
	sent []sent
	err  error
}

func (f *fakeService) SendMessage(item Item, routingKey string, body []byte, _ bool) error {
	f.sent = append(f.sent, sent{item, routingKey, body})
	return f.err
}

func (f *fakeService) ConsumeMessages(context.Context, Item, string, func(msg string)) error {
	return nil
}

func (f *fakeService) Close() error {
	return nil
}

func TestPublishAction(t *testing.T) {
	svc := &fakeService{}
	p := NewActionPublisher(svc, "mainnet")

	p.Publish(entity.MarketplaceAction{Seq: 7, Action: entity.SaleAction, Contract: "0xaa", TokenId: 1, Buyer: "0xbb"})

	require.Len(t, svc.sent, 1)
	require.Equal(t, MarketplaceActions, svc.sent[0].item)
	require.Equal(t, "mainnet.sale", svc.sent[0].routingKey)

	var decoded entity.MarketplaceAction
	require.NoError(t, json.Unmarshal(svc.sent[0].body, &decoded))
	require.Equal(t, uint64(7), decoded.Seq)
	require.Equal(t, entity.Principal("0xbb"), decoded.Buyer)
}

func TestPublishIgnoresForeignPayloads(t *testing.T) {
	svc := &fakeService{err: errors.New("down")}
	p := NewActionPublisher(svc, "mainnet")

	p.Publish("not an action")
	require.Empty(t, svc.sent)

	// Delivery failures are logged, never raised to the emitter
	p.Publish(entity.MarketplaceAction{Action: entity.ListingAction})
	require.Len(t, svc.sent, 1)
}

func TestUnknownExchange(t *testing.T) {
	m := NewMessenger("amqp://localhost", "mainnet")

	require.Equal(t, ErrExchangeNotFound, m.SendMessage("unknown", "k", nil, false))
	require.Equal(t, ErrExchangeNotFound, m.ConsumeMessages(context.Background(), "unknown", "#", nil))
}
