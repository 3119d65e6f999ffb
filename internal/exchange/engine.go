package exchange

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/custody"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/journal"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/payment"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/repository"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Settlement describes the value movements of a completed sale.
type Settlement struct {
	Listing  entity.Listing   `json:"listing"`
	Buyer    entity.Principal `json:"buyer"`
	Fee      *big.Int         `json:"fee"`
	Proceeds *big.Int         `json:"proceeds"`
	Refund   *big.Int         `json:"refund"`
}

type engineKey struct{}

// Engine escrows listed tokens and settles sales. Every mutation runs under a
// single lock and is either committed in full or rolled back.
//
// Calls made by the custody registry or payment rails back into the engine
// must pass on the context they were given; such calls join the running
// operation instead of waiting for it.
type Engine struct {
	mu sync.RWMutex

	self     entity.Principal
	treasury entity.Principal

	listings repository.ListingRepository
	sequence *repository.Sequence
	custody  custody.Registry
	rails    payment.Rails
	fees     *FeeController
	events   event.Emitter

	participants []journal.Journaled
	pending      []entity.MarketplaceAction

	// Committed operations emit their events in commit order, outside mu.
	turnLk  sync.Mutex
	turn    *sync.Cond
	tickets uint64
	serving uint64
}

// NewEngine creates an engine acting as self. Fees are retained in self's
// balance unless treasury is set.
func NewEngine(
	self entity.Principal,
	treasury entity.Principal,
	listings repository.ListingRepository,
	sequence *repository.Sequence,
	registry custody.Registry,
	rails payment.Rails,
	fees *FeeController,
	events event.Emitter,
) *Engine {
	e := &Engine{
		self:     self,
		treasury: treasury,
		listings: listings,
		sequence: sequence,
		custody:  registry,
		rails:    rails,
		fees:     fees,
		events:   events,
	}
	e.turn = sync.NewCond(&e.turnLk)

	e.participants = []journal.Journaled{listings, sequence, fees}
	for _, collaborator := range []interface{}{registry, rails} {
		if j, ok := collaborator.(journal.Journaled); ok {
			e.participants = append(e.participants, j)
		}
	}

	return e
}

func (e *Engine) Self() entity.Principal {
	return e.self
}

func (e *Engine) Fees() *FeeController {
	return e.fees
}

// Atomically runs fn as one serialized unit of work. If fn fails, every write
// it made to the listing registry, fee state and journaled collaborators is
// undone and no event is emitted. Events of committed operations are emitted
// in commit order once the lock is released; listeners must not call back
// into the engine synchronously.
func (e *Engine) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.joined(ctx) {
		return e.apply(ctx, fn)
	}

	pending, ticket, err := e.run(ctx, fn)

	e.await(ticket)
	defer e.done()

	if err != nil {
		return err
	}

	for _, action := range pending {
		e.events.EmitEvent(event.TypeFor(action.Action), action)
	}

	return nil
}

func (e *Engine) run(ctx context.Context, fn func(ctx context.Context) error) ([]entity.MarketplaceAction, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.turnLk.Lock()
	ticket := e.tickets
	e.tickets++
	e.turnLk.Unlock()

	ctx = context.WithValue(ctx, engineKey{}, e)
	err := e.apply(ctx, fn)

	for _, p := range e.participants {
		p.Commit()
	}

	pending := e.pending
	e.pending = nil

	return pending, ticket, err
}

// await blocks until every operation committed before ticket has emitted.
func (e *Engine) await(ticket uint64) {
	e.turnLk.Lock()
	defer e.turnLk.Unlock()

	for e.serving != ticket {
		e.turn.Wait()
	}
}

func (e *Engine) done() {
	e.turnLk.Lock()
	defer e.turnLk.Unlock()

	e.serving++
	e.turn.Broadcast()
}

func (e *Engine) apply(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshots := make([]int, len(e.participants))
	for i, p := range e.participants {
		snapshots[i] = p.Snapshot()
	}
	pending := len(e.pending)

	err := fn(ctx)
	if err == nil {
		return nil
	}

	e.pending = e.pending[:pending]

	revertCtx := context.WithoutCancel(ctx)
	var rollbackErr error
	for i := len(e.participants) - 1; i >= 0; i-- {
		rollbackErr = multierr.Append(rollbackErr, e.participants[i].RevertToSnapshot(revertCtx, snapshots[i]))
	}

	if rollbackErr != nil {
		zap.L().With(zap.Error(err), zap.NamedError("rollback", rollbackErr)).Error("Exchange: Rollback failed")
		return multierr.Append(err, rollbackErr)
	}

	return err
}

func (e *Engine) joined(ctx context.Context) bool {
	owner, ok := ctx.Value(engineKey{}).(*Engine)
	return ok && owner == e
}

func (e *Engine) view(ctx context.Context, fn func(ctx context.Context) error) error {
	if !e.joined(ctx) {
		e.mu.RLock()
		defer e.mu.RUnlock()
	}

	return fn(ctx)
}

func (e *Engine) record(ctx context.Context, action entity.MarketplaceAction) error {
	seq, err := e.sequence.Next(ctx)
	if err != nil {
		return err
	}

	action.Seq = seq
	action.Time = time.Now()
	e.pending = append(e.pending, action)

	return nil
}

// List escrows the caller's token and registers it for sale at price.
func (e *Engine) List(ctx context.Context, caller entity.Principal, contract string, tokenId uint64, price *big.Int) (entity.Listing, error) {
	key := entity.NewListingKey(contract, tokenId)

	var listing entity.Listing
	err := e.Atomically(ctx, func(ctx context.Context) error {
		if price == nil || price.Sign() <= 0 {
			return ErrInvalidPrice
		}

		owner, err := e.custody.OwnerOf(ctx, key.Contract, key.TokenId)
		if errors.Is(err, custody.ErrTokenNotFound) {
			return ErrNotOwner
		}
		if err != nil {
			return newSettlementError("list", "ownerOf", err)
		}
		if owner != caller {
			return ErrNotOwner
		}

		approved, err := e.custody.IsApprovedForTransfer(ctx, key.Contract, key.TokenId, e.self)
		if err != nil {
			return newSettlementError("list", "approval", err)
		}
		if !approved {
			return ErrNotApproved
		}

		if err := e.custody.TransferCustody(ctx, e.self, key.Contract, key.TokenId, caller, e.self); err != nil {
			return newSettlementError("list", "custody", err)
		}

		listing = entity.Listing{
			Seller:   caller,
			Contract: key.Contract,
			TokenId:  key.TokenId,
			Price:    new(big.Int).Set(price),
		}
		if err := e.listings.Create(ctx, listing); err != nil {
			return err
		}

		snapshot := listing.Copy()
		return e.record(ctx, entity.MarketplaceAction{
			Action:   entity.ListingAction,
			Contract: key.Contract,
			TokenId:  key.TokenId,
			Listing:  &snapshot,
		})
	})

	if err != nil {
		e.logFailure("list", key, caller, err)
		return entity.Listing{}, err
	}

	zap.L().With(
		zap.String("contract", key.Contract),
		zap.Uint64("tokenId", key.TokenId),
		zap.String("seller", caller.String()),
		zap.String("price", price.String()),
	).Info("Marketplace listing")

	return listing, nil
}

// Buy settles the listing for key: the token goes to the caller, the seller
// is paid the price less the sale fee and any excess payment is refunded.
func (e *Engine) Buy(ctx context.Context, caller entity.Principal, contract string, tokenId uint64, paid *big.Int) (Settlement, error) {
	key := entity.NewListingKey(contract, tokenId)

	var settlement Settlement
	err := e.Atomically(ctx, func(ctx context.Context) error {
		listing, err := e.listings.Get(ctx, key)
		if errors.Is(err, repository.ErrListingNotFound) {
			return ErrNoSuchListing
		}
		if err != nil {
			return err
		}

		if caller == listing.Seller {
			return ErrSelfPurchase
		}
		if paid == nil || paid.Cmp(listing.Price) < 0 {
			return ErrInsufficientPayment
		}

		// The listing is gone before control leaves the engine.
		if err := e.listings.Remove(ctx, key); err != nil {
			return err
		}

		if err := e.rails.Receive(ctx, caller, paid); err != nil {
			return newSettlementError("buy", "payment", err)
		}

		fee := e.fees.CalculateFee(listing.Price)
		proceeds := new(big.Int).Sub(listing.Price, fee)
		refund := new(big.Int).Sub(paid, listing.Price)

		if err := e.custody.TransferCustody(ctx, e.self, key.Contract, key.TokenId, e.self, caller); err != nil {
			return newSettlementError("buy", "custody", err)
		}

		if err := e.rails.Pay(ctx, listing.Seller, proceeds); err != nil {
			return newSettlementError("buy", "payout", err)
		}

		if fee.Sign() > 0 && !e.treasury.IsZero() && e.treasury != e.self {
			if err := e.rails.Pay(ctx, e.treasury, fee); err != nil {
				return newSettlementError("buy", "fee", err)
			}
		}

		if refund.Sign() > 0 {
			if err := e.rails.Pay(ctx, caller, refund); err != nil {
				return newSettlementError("buy", "refund", err)
			}
		}

		settlement = Settlement{
			Listing:  listing,
			Buyer:    caller,
			Fee:      fee,
			Proceeds: proceeds,
			Refund:   refund,
		}

		snapshot := listing.Copy()
		return e.record(ctx, entity.MarketplaceAction{
			Action:   entity.SaleAction,
			Contract: key.Contract,
			TokenId:  key.TokenId,
			Listing:  &snapshot,
			Buyer:    caller,
			Fee:      new(big.Int).Set(fee),
			Proceeds: new(big.Int).Set(proceeds),
			Refund:   new(big.Int).Set(refund),
		})
	})

	if err != nil {
		e.logFailure("buy", key, caller, err)
		return Settlement{}, err
	}

	zap.L().With(
		zap.String("contract", key.Contract),
		zap.Uint64("tokenId", key.TokenId),
		zap.String("from", settlement.Listing.Seller.String()),
		zap.String("to", caller.String()),
		zap.String("cost", settlement.Listing.Price.String()),
		zap.String("fee", settlement.Fee.String()),
		zap.String("refund", settlement.Refund.String()),
	).Info("Marketplace trade")

	return settlement, nil
}

// Delist cancels the caller's listing and returns the token to them.
func (e *Engine) Delist(ctx context.Context, caller entity.Principal, contract string, tokenId uint64) (entity.Listing, error) {
	key := entity.NewListingKey(contract, tokenId)

	var listing entity.Listing
	err := e.Atomically(ctx, func(ctx context.Context) error {
		var err error
		listing, err = e.listings.Get(ctx, key)
		if errors.Is(err, repository.ErrListingNotFound) {
			return ErrNoSuchListing
		}
		if err != nil {
			return err
		}

		if caller != listing.Seller {
			return ErrNotSeller
		}

		if err := e.listings.Remove(ctx, key); err != nil {
			return err
		}

		if err := e.custody.TransferCustody(ctx, e.self, key.Contract, key.TokenId, e.self, listing.Seller); err != nil {
			return newSettlementError("delist", "custody", err)
		}

		snapshot := listing.Copy()
		return e.record(ctx, entity.MarketplaceAction{
			Action:   entity.DelistingAction,
			Contract: key.Contract,
			TokenId:  key.TokenId,
			Listing:  &snapshot,
		})
	})

	if err != nil {
		e.logFailure("delist", key, caller, err)
		return entity.Listing{}, err
	}

	zap.L().With(
		zap.String("contract", key.Contract),
		zap.Uint64("tokenId", key.TokenId),
		zap.String("seller", caller.String()),
	).Info("Marketplace delisting")

	return listing, nil
}

func (e *Engine) SetSaleFee(ctx context.Context, caller entity.Principal, fraction uint64) error {
	err := e.Atomically(ctx, func(ctx context.Context) error {
		if err := e.fees.SetSaleFee(ctx, caller, fraction); err != nil {
			return err
		}

		saleFee := fraction
		return e.record(ctx, entity.MarketplaceAction{Action: entity.SaleFeeUpdatedAction, By: caller, SaleFee: &saleFee})
	})

	if err != nil {
		zap.L().With(zap.String("caller", caller.String()), zap.Uint64("fraction", fraction), zap.Error(err)).Info("Sale fee update rejected")
		return err
	}

	zap.L().With(zap.String("caller", caller.String()), zap.Uint64("fraction", fraction)).Info("Sale fee updated")

	return nil
}

func (e *Engine) TransferFeeOwnership(ctx context.Context, caller, newOwner entity.Principal) error {
	return e.Atomically(ctx, func(ctx context.Context) error {
		if err := e.fees.TransferOwnership(ctx, caller, newOwner); err != nil {
			return err
		}

		zap.L().With(zap.String("from", caller.String()), zap.String("to", newOwner.String())).Info("Fee ownership transferred")

		return nil
	})
}

// CalculateFee previews the fee taken from a sale at price.
func (e *Engine) CalculateFee(price *big.Int) *big.Int {
	return e.fees.CalculateFee(price)
}

func (e *Engine) GetListing(ctx context.Context, contract string, tokenId uint64) (entity.Listing, error) {
	var listing entity.Listing
	err := e.view(ctx, func(ctx context.Context) error {
		var err error
		listing, err = e.listings.Get(ctx, entity.NewListingKey(contract, tokenId))
		if errors.Is(err, repository.ErrListingNotFound) {
			return ErrNoSuchListing
		}

		return err
	})

	return listing, err
}

func (e *Engine) ListingExists(ctx context.Context, contract string, tokenId uint64) (bool, error) {
	var exists bool
	err := e.view(ctx, func(ctx context.Context) error {
		var err error
		exists, err = e.listings.Exists(ctx, entity.NewListingKey(contract, tokenId))
		return err
	})

	return exists, err
}

func (e *Engine) Listings(ctx context.Context) ([]entity.Listing, error) {
	var listings []entity.Listing
	err := e.view(ctx, func(ctx context.Context) error {
		var err error
		listings, err = e.listings.List(ctx)
		return err
	})

	return listings, err
}

func (e *Engine) logFailure(op string, key entity.ListingKey, caller entity.Principal, err error) {
	l := zap.L().With(
		zap.String("op", op),
		zap.String("contract", key.Contract),
		zap.Uint64("tokenId", key.TokenId),
		zap.String("caller", caller.String()),
		zap.Error(err),
	)

	if Category(err) == CollaboratorError || Category(err) == InternalError {
		l.Error("Marketplace operation rolled back")
		return
	}

	l.Info("Marketplace operation rejected")
}
