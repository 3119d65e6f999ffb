package payment

import (
	"context"
	"errors"
	"math/big"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/journal"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrCannotReceive     = errors.New("account cannot receive value")
	ErrInvalidAmount     = errors.New("amount must not be negative")
)

// Rails moves value in and out of the exchange's own account.
type Rails interface {
	// Receive collects the value attached to a call from payer.
	Receive(ctx context.Context, from entity.Principal, amount *big.Int) error
	// Pay sends value from the exchange's balance to to.
	Pay(ctx context.Context, to entity.Principal, amount *big.Int) error
}

// Ledger is a balance book held in a journaled datastore. Receive and Pay
// operate on the account the ledger was opened for.
type Ledger struct {
	*journal.Datastore

	account entity.Principal
}

var (
	_ Rails             = (*Ledger)(nil)
	_ journal.Journaled = (*Ledger)(nil)
)

func NewLedger(ds datastore.Datastore, account entity.Principal) *Ledger {
	return &Ledger{
		Datastore: journal.Wrap(namespace.Wrap(ds, datastore.NewKey("/ledger/"))),
		account:   account,
	}
}

func balanceKey(p entity.Principal) datastore.Key {
	return datastore.KeyWithNamespaces([]string{"balances", entity.KeySegment(p.String())})
}

func rejectingKey(p entity.Principal) datastore.Key {
	return datastore.KeyWithNamespaces([]string{"rejecting", entity.KeySegment(p.String())})
}

func (l *Ledger) Account() entity.Principal {
	return l.account
}

func (l *Ledger) BalanceOf(ctx context.Context, p entity.Principal) (*big.Int, error) {
	b, err := l.Get(ctx, balanceKey(p))
	if err == datastore.ErrNotFound {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, xerrors.Errorf("reading balance of %s: %w", p, err)
	}

	balance := new(big.Int)
	if err := balance.UnmarshalText(b); err != nil {
		return nil, xerrors.Errorf("decoding balance of %s: %w", p, err)
	}

	return balance, nil
}

// Fund credits p with newly issued value.
func (l *Ledger) Fund(ctx context.Context, p entity.Principal, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	return l.credit(ctx, p, amount)
}

// SetRejecting marks p as unable to receive value.
func (l *Ledger) SetRejecting(ctx context.Context, p entity.Principal, rejecting bool) error {
	if !rejecting {
		return l.Delete(ctx, rejectingKey(p))
	}

	return l.Put(ctx, rejectingKey(p), []byte{1})
}

func (l *Ledger) Receive(ctx context.Context, from entity.Principal, amount *big.Int) error {
	return l.Transfer(ctx, from, l.account, amount)
}

func (l *Ledger) Pay(ctx context.Context, to entity.Principal, amount *big.Int) error {
	return l.Transfer(ctx, l.account, to, amount)
}

func (l *Ledger) Transfer(ctx context.Context, from, to entity.Principal, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	rejecting, err := l.Has(ctx, rejectingKey(to))
	if err != nil {
		return err
	}
	if rejecting {
		return ErrCannotReceive
	}

	if amount.Sign() == 0 {
		return nil
	}

	if err := l.debit(ctx, from, amount); err != nil {
		return err
	}
	if err := l.credit(ctx, to, amount); err != nil {
		return err
	}

	zap.L().With(
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("amount", amount.String()),
	).Debug("Ledger: Transfer")

	return nil
}

func (l *Ledger) debit(ctx context.Context, p entity.Principal, amount *big.Int) error {
	balance, err := l.BalanceOf(ctx, p)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	return l.setBalance(ctx, p, balance.Sub(balance, amount))
}

func (l *Ledger) credit(ctx context.Context, p entity.Principal, amount *big.Int) error {
	balance, err := l.BalanceOf(ctx, p)
	if err != nil {
		return err
	}

	return l.setBalance(ctx, p, balance.Add(balance, amount))
}

func (l *Ledger) setBalance(ctx context.Context, p entity.Principal, balance *big.Int) error {
	b, err := balance.MarshalText()
	if err != nil {
		return err
	}

	return l.Put(ctx, balanceKey(p), b)
}
