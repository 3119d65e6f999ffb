package journal

import (
	"context"
	"sync"

	"github.com/ipfs/go-datastore"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// Journaled is implemented by stores whose writes can be rolled back to an
// earlier point in the same unit of work.
type Journaled interface {
	Snapshot() int
	RevertToSnapshot(ctx context.Context, id int) error
	Commit()
}

type entry struct {
	key     datastore.Key
	prev    []byte
	existed bool
}

// Datastore records the previous value of every key it writes so that a
// failed operation can be undone.
type Datastore struct {
	datastore.Datastore

	lk      sync.Mutex
	entries []entry
}

var _ Journaled = (*Datastore)(nil)

func Wrap(ds datastore.Datastore) *Datastore {
	return &Datastore{Datastore: ds}
}

func (d *Datastore) Put(ctx context.Context, key datastore.Key, value []byte) error {
	e, err := d.capture(ctx, key)
	if err != nil {
		return err
	}

	if err := d.Datastore.Put(ctx, key, value); err != nil {
		return err
	}

	d.record(e)
	return nil
}

func (d *Datastore) Delete(ctx context.Context, key datastore.Key) error {
	e, err := d.capture(ctx, key)
	if err != nil {
		return err
	}
	if !e.existed {
		return nil
	}

	if err := d.Datastore.Delete(ctx, key); err != nil {
		return err
	}

	d.record(e)
	return nil
}

func (d *Datastore) Snapshot() int {
	d.lk.Lock()
	defer d.lk.Unlock()

	return len(d.entries)
}

// RevertToSnapshot undoes every write recorded after id, newest first.
func (d *Datastore) RevertToSnapshot(ctx context.Context, id int) error {
	d.lk.Lock()
	defer d.lk.Unlock()

	if id < 0 || id > len(d.entries) {
		return xerrors.Errorf("invalid journal snapshot %d (journal length %d)", id, len(d.entries))
	}

	for i := len(d.entries) - 1; i >= id; i-- {
		e := d.entries[i]

		var err error
		if e.existed {
			err = d.Datastore.Put(ctx, e.key, e.prev)
		} else {
			err = d.Datastore.Delete(ctx, e.key)
		}
		if err != nil {
			d.entries = d.entries[:i+1]
			return xerrors.Errorf("reverting journal entry %s: %w", e.key, err)
		}
	}

	zap.L().With(zap.Int("snapshot", id), zap.Int("undone", len(d.entries)-id)).Debug("Journal: Reverted")
	d.entries = d.entries[:id]

	return nil
}

// Commit forgets all recorded entries.
func (d *Datastore) Commit() {
	d.lk.Lock()
	defer d.lk.Unlock()

	d.entries = d.entries[:0]
}

func (d *Datastore) capture(ctx context.Context, key datastore.Key) (entry, error) {
	prev, err := d.Datastore.Get(ctx, key)
	switch err {
	case nil:
		cp := make([]byte, len(prev))
		copy(cp, prev)
		return entry{key: key, prev: cp, existed: true}, nil
	case datastore.ErrNotFound:
		return entry{key: key}, nil
	default:
		return entry{}, xerrors.Errorf("reading %s before write: %w", key, err)
	}
}

func (d *Datastore) record(e entry) {
	d.lk.Lock()
	defer d.lk.Unlock()

	d.entries = append(d.entries, e)
}
