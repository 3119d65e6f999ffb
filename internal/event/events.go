package event

import "github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"

type Type string

const (
	ListedEvent         Type = "Listed"
	SoldEvent           Type = "Sold"
	DelistedEvent       Type = "Delisted"
	SaleFeeUpdatedEvent Type = "SaleFeeUpdated"
)

func All() []Type {
	return []Type{ListedEvent, SoldEvent, DelistedEvent, SaleFeeUpdatedEvent}
}

// TypeFor maps a committed marketplace action onto the event announcing it.
func TypeFor(action entity.ActionType) Type {
	switch action {
	case entity.ListingAction:
		return ListedEvent
	case entity.SaleAction:
		return SoldEvent
	case entity.DelistingAction:
		return DelistedEvent
	default:
		return SaleFeeUpdatedEvent
	}
}
