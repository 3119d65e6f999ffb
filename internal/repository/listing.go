package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/journal"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	dsq "github.com/ipfs/go-datastore/query"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

var (
	ErrListingNotFound  = errors.New("listing not found")
	ErrDuplicateListing = errors.New("listing already exists")
)

// ListingRepository is the only place listings are created or removed.
type ListingRepository interface {
	journal.Journaled

	Create(ctx context.Context, listing entity.Listing) error
	Get(ctx context.Context, key entity.ListingKey) (entity.Listing, error)
	Remove(ctx context.Context, key entity.ListingKey) error
	Exists(ctx context.Context, key entity.ListingKey) (bool, error)
	List(ctx context.Context) ([]entity.Listing, error)
}

type listingRepository struct {
	lk sync.Mutex

	*journal.Datastore
}

func NewListingRepository(ds datastore.Datastore) ListingRepository {
	return &listingRepository{
		Datastore: journal.Wrap(namespace.Wrap(ds, datastore.NewKey("/listings/"))),
	}
}

func dskeyForListing(key entity.ListingKey) datastore.Key {
	return datastore.KeyWithNamespaces([]string{entity.KeySegment(key.Contract), strconv.FormatUint(key.TokenId, 10)})
}

func (r *listingRepository) Create(ctx context.Context, listing entity.Listing) error {
	r.lk.Lock()
	defer r.lk.Unlock()

	k := dskeyForListing(listing.Key())

	exists, err := r.Datastore.Has(ctx, k)
	if err != nil {
		return xerrors.Errorf("checking listing %s: %w", listing.Key(), err)
	}
	if exists {
		return ErrDuplicateListing
	}

	b, err := json.Marshal(listing)
	if err != nil {
		return err
	}

	if err := r.Datastore.Put(ctx, k, b); err != nil {
		return xerrors.Errorf("storing listing %s: %w", listing.Key(), err)
	}

	zap.L().With(zap.String("listing", listing.Key().String()), zap.String("seller", listing.Seller.String())).Debug("ListingRepository: Created")

	return nil
}

func (r *listingRepository) Get(ctx context.Context, key entity.ListingKey) (entity.Listing, error) {
	b, err := r.Datastore.Get(ctx, dskeyForListing(key))
	if err == datastore.ErrNotFound {
		return entity.Listing{}, ErrListingNotFound
	}
	if err != nil {
		return entity.Listing{}, xerrors.Errorf("reading listing %s: %w", key, err)
	}

	var listing entity.Listing
	if err := json.Unmarshal(b, &listing); err != nil {
		return entity.Listing{}, xerrors.Errorf("decoding listing %s: %w", key, err)
	}

	return listing, nil
}

func (r *listingRepository) Remove(ctx context.Context, key entity.ListingKey) error {
	r.lk.Lock()
	defer r.lk.Unlock()

	k := dskeyForListing(key)

	exists, err := r.Datastore.Has(ctx, k)
	if err != nil {
		return xerrors.Errorf("checking listing %s: %w", key, err)
	}
	if !exists {
		return ErrListingNotFound
	}

	if err := r.Datastore.Delete(ctx, k); err != nil {
		return xerrors.Errorf("removing listing %s: %w", key, err)
	}

	zap.L().With(zap.String("listing", key.String())).Debug("ListingRepository: Removed")

	return nil
}

func (r *listingRepository) Exists(ctx context.Context, key entity.ListingKey) (bool, error) {
	return r.Datastore.Has(ctx, dskeyForListing(key))
}

func (r *listingRepository) List(ctx context.Context) ([]entity.Listing, error) {
	res, err := r.Datastore.Query(ctx, dsq.Query{})
	if err != nil {
		return nil, err
	}
	defer res.Close()

	listings := make([]entity.Listing, 0)
	for {
		res, ok := res.NextSync()
		if !ok {
			break
		}
		if res.Error != nil {
			return nil, res.Error
		}

		var listing entity.Listing
		if err := json.Unmarshal(res.Value, &listing); err != nil {
			return nil, xerrors.Errorf("decoding listing %q: %w", res.Key, err)
		}
		listings = append(listings, listing)
	}

	return listings, nil
}
