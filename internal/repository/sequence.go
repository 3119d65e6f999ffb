package repository

import (
	"context"
	"strconv"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/journal"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	"golang.org/x/xerrors"
)

var seqKey = datastore.NewKey("/seq")

// Sequence numbers marketplace actions. It lives next to the listings so the
// numbering survives restarts and is rolled back with a failed operation.
type Sequence struct {
	*journal.Datastore
}

var _ journal.Journaled = (*Sequence)(nil)

func NewSequence(ds datastore.Datastore) *Sequence {
	return &Sequence{journal.Wrap(namespace.Wrap(ds, datastore.NewKey("/meta/")))}
}

func (s *Sequence) Current(ctx context.Context) (uint64, error) {
	b, err := s.Get(ctx, seqKey)
	if err == datastore.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, xerrors.Errorf("reading sequence: %w", err)
	}

	seq, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("decoding sequence %q: %w", b, err)
	}

	return seq, nil
}

// Next advances the sequence and returns the new value.
func (s *Sequence) Next(ctx context.Context) (uint64, error) {
	seq, err := s.Current(ctx)
	if err != nil {
		return 0, err
	}
	seq++

	if err := s.Put(ctx, seqKey, []byte(strconv.FormatUint(seq, 10))); err != nil {
		return 0, xerrors.Errorf("storing sequence: %w", err)
	}

	return seq, nil
}
