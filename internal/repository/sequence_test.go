package repository

import (
	"context"
	"testing"

	ds "github.com/ipfs/go-datastore"
	"github.com/stretchr/testify/require"
)

func TestSequenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store := ds.NewMapDatastore()

	seq := NewSequence(store)
	for want := uint64(1); want <= 3; want++ {
		got, err := seq.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	next, err := NewSequence(store).Next(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(4), next)
}

func TestSequenceRevert(t *testing.T) {
	ctx := context.Background()
	seq := NewSequence(ds.NewMapDatastore())

	_, err := seq.Next(ctx)
	require.NoError(t, err)
	seq.Commit()

	snap := seq.Snapshot()
	_, err = seq.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, seq.RevertToSnapshot(ctx, snap))

	current, err := seq.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), current)
}
