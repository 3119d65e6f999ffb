package custody

import (
	"context"
	"errors"
	"strconv"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/journal"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

var (
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenExists         = errors.New("token already minted")
	ErrNotHolder           = errors.New("transfer from incorrect holder")
	ErrTransferNotApproved = errors.New("caller is not token holder or approved")
	ErrZeroAddress         = errors.New("transfer to the zero address")
)

// Registry is the view of the asset-ownership registry used by the exchange.
type Registry interface {
	OwnerOf(ctx context.Context, contract string, tokenId uint64) (entity.Principal, error)
	IsApprovedForTransfer(ctx context.Context, contract string, tokenId uint64, operator entity.Principal) (bool, error)
	TransferCustody(ctx context.Context, operator entity.Principal, contract string, tokenId uint64, from, to entity.Principal) error
}

// Store is a ZRC-6 style token registry held in a journaled datastore.
type Store struct {
	*journal.Datastore
}

var (
	_ Registry          = (*Store)(nil)
	_ journal.Journaled = (*Store)(nil)
)

func NewStore(ds datastore.Datastore) *Store {
	return &Store{journal.Wrap(namespace.Wrap(ds, datastore.NewKey("/custody/")))}
}

func ownerKey(contract string, tokenId uint64) datastore.Key {
	return datastore.KeyWithNamespaces([]string{"owners", entity.KeySegment(contract), strconv.FormatUint(tokenId, 10)})
}

func approvalKey(contract string, tokenId uint64) datastore.Key {
	return datastore.KeyWithNamespaces([]string{"approvals", entity.KeySegment(contract), strconv.FormatUint(tokenId, 10)})
}

func operatorKey(contract string, owner, operator entity.Principal) datastore.Key {
	return datastore.KeyWithNamespaces([]string{"operators", entity.KeySegment(contract), entity.KeySegment(owner.String()), entity.KeySegment(operator.String())})
}

func (s *Store) Mint(ctx context.Context, contract string, tokenId uint64, to entity.Principal) error {
	if to.IsZero() {
		return ErrZeroAddress
	}

	k := ownerKey(contract, tokenId)
	exists, err := s.Has(ctx, k)
	if err != nil {
		return err
	}
	if exists {
		return ErrTokenExists
	}

	zap.L().With(zap.String("contract", contract), zap.Uint64("tokenId", tokenId), zap.String("to", to.String())).Info("Custody: Mint")

	return s.Put(ctx, k, []byte(to))
}

func (s *Store) OwnerOf(ctx context.Context, contract string, tokenId uint64) (entity.Principal, error) {
	b, err := s.Get(ctx, ownerKey(contract, tokenId))
	if err == datastore.ErrNotFound {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", xerrors.Errorf("reading owner of %s/%d: %w", contract, tokenId, err)
	}

	return entity.Principal(b), nil
}

// Approve grants operator a single-token transfer approval. Only the holder or
// one of its operators may approve.
func (s *Store) Approve(ctx context.Context, caller entity.Principal, contract string, tokenId uint64, operator entity.Principal) error {
	owner, err := s.OwnerOf(ctx, contract, tokenId)
	if err != nil {
		return err
	}

	if caller != owner {
		isOperator, err := s.isOperator(ctx, contract, owner, caller)
		if err != nil {
			return err
		}
		if !isOperator {
			return ErrTransferNotApproved
		}
	}

	k := approvalKey(contract, tokenId)
	if operator.IsZero() {
		return s.Delete(ctx, k)
	}

	return s.Put(ctx, k, []byte(operator))
}

func (s *Store) SetApprovalForAll(ctx context.Context, owner entity.Principal, contract string, operator entity.Principal, approved bool) error {
	k := operatorKey(contract, owner, operator)
	if !approved {
		return s.Delete(ctx, k)
	}

	return s.Put(ctx, k, []byte{1})
}

func (s *Store) IsApprovedForTransfer(ctx context.Context, contract string, tokenId uint64, operator entity.Principal) (bool, error) {
	owner, err := s.OwnerOf(ctx, contract, tokenId)
	if err != nil {
		return false, err
	}

	approved, err := s.Get(ctx, approvalKey(contract, tokenId))
	switch err {
	case nil:
		if entity.Principal(approved) == operator {
			return true, nil
		}
	case datastore.ErrNotFound:
	default:
		return false, err
	}

	return s.isOperator(ctx, contract, owner, operator)
}

// TransferCustody moves tokenId from from to to on behalf of operator. Any
// single-token approval is cleared.
func (s *Store) TransferCustody(ctx context.Context, operator entity.Principal, contract string, tokenId uint64, from, to entity.Principal) error {
	if to.IsZero() {
		return ErrZeroAddress
	}

	owner, err := s.OwnerOf(ctx, contract, tokenId)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrNotHolder
	}

	if operator != from {
		approved, err := s.IsApprovedForTransfer(ctx, contract, tokenId, operator)
		if err != nil {
			return err
		}
		if !approved {
			return ErrTransferNotApproved
		}
	}

	if err := s.Delete(ctx, approvalKey(contract, tokenId)); err != nil {
		return err
	}
	if err := s.Put(ctx, ownerKey(contract, tokenId), []byte(to)); err != nil {
		return err
	}

	zap.L().With(
		zap.String("contract", contract),
		zap.Uint64("tokenId", tokenId),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("operator", operator.String()),
	).Debug("Custody: Transfer")

	return nil
}

func (s *Store) isOperator(ctx context.Context, contract string, owner, operator entity.Principal) (bool, error) {
	return s.Has(ctx, operatorKey(contract, owner, operator))
}
