package exchange

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/journal"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

var feeStateKey = datastore.NewKey("/state")

type feeState struct {
	Owner    entity.Principal `json:"owner"`
	Fraction uint64           `json:"fraction"`
}

// FeeController holds the sale fee fraction and the single principal allowed
// to change it. The state is written through a journaled datastore and cached
// in memory.
type FeeController struct {
	lk    sync.RWMutex
	state feeState
	store *journal.Datastore
}

var _ journal.Journaled = (*FeeController)(nil)

// NewFeeController opens the fee state kept in ds. owner and fraction only
// seed a store that has never held fee state.
func NewFeeController(ctx context.Context, ds datastore.Datastore, owner entity.Principal, fraction uint64) (*FeeController, error) {
	f := &FeeController{store: journal.Wrap(namespace.Wrap(ds, datastore.NewKey("/fees/")))}

	state, found, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		if state.Fraction > entity.MaxSaleFee {
			return nil, ErrFeeTooHigh
		}
		if state.Owner != owner || state.Fraction != fraction {
			zap.L().With(
				zap.String("owner", state.Owner.String()),
				zap.Uint64("fraction", state.Fraction),
			).Info("Fee state restored, configured values ignored")
		}
		f.state = state
		return f, nil
	}

	if fraction > entity.MaxSaleFee {
		return nil, ErrFeeTooHigh
	}

	if err := f.save(ctx, feeState{Owner: owner, Fraction: fraction}); err != nil {
		return nil, err
	}
	f.store.Commit()

	return f, nil
}

func (f *FeeController) Owner() entity.Principal {
	f.lk.RLock()
	defer f.lk.RUnlock()

	return f.state.Owner
}

func (f *FeeController) Fraction() uint64 {
	f.lk.RLock()
	defer f.lk.RUnlock()

	return f.state.Fraction
}

// CalculateFee returns floor(price * fraction / FeeDenominator).
func (f *FeeController) CalculateFee(price *big.Int) *big.Int {
	if price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}

	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(f.Fraction()))

	return fee.Quo(fee, new(big.Int).SetUint64(entity.FeeDenominator))
}

func (f *FeeController) SetSaleFee(ctx context.Context, caller entity.Principal, fraction uint64) error {
	f.lk.Lock()
	defer f.lk.Unlock()

	if caller != f.state.Owner {
		return ErrNotAuthorized
	}
	if fraction > entity.MaxSaleFee {
		return ErrFeeTooHigh
	}

	next := f.state
	next.Fraction = fraction

	return f.save(ctx, next)
}

func (f *FeeController) TransferOwnership(ctx context.Context, caller, newOwner entity.Principal) error {
	f.lk.Lock()
	defer f.lk.Unlock()

	if caller != f.state.Owner {
		return ErrNotAuthorized
	}
	if newOwner.IsZero() {
		return xerrors.New("new owner is the zero address")
	}

	next := f.state
	next.Owner = newOwner

	return f.save(ctx, next)
}

func (f *FeeController) Snapshot() int {
	return f.store.Snapshot()
}

// RevertToSnapshot undoes the stored writes and reloads the cached state.
func (f *FeeController) RevertToSnapshot(ctx context.Context, id int) error {
	f.lk.Lock()
	defer f.lk.Unlock()

	if err := f.store.RevertToSnapshot(ctx, id); err != nil {
		return err
	}

	state, _, err := f.load(ctx)
	if err != nil {
		return err
	}
	f.state = state

	return nil
}

func (f *FeeController) Commit() {
	f.store.Commit()
}

func (f *FeeController) load(ctx context.Context) (feeState, bool, error) {
	b, err := f.store.Get(ctx, feeStateKey)
	if err == datastore.ErrNotFound {
		return feeState{}, false, nil
	}
	if err != nil {
		return feeState{}, false, xerrors.Errorf("reading fee state: %w", err)
	}

	var state feeState
	if err := json.Unmarshal(b, &state); err != nil {
		return feeState{}, false, xerrors.Errorf("decoding fee state: %w", err)
	}

	return state, true, nil
}

func (f *FeeController) save(ctx context.Context, state feeState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}

	if err := f.store.Put(ctx, feeStateKey, b); err != nil {
		return xerrors.Errorf("storing fee state: %w", err)
	}
	f.state = state

	return nil
}
