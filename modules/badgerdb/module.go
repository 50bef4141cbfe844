// Package badgerdb implements the "badger" storage backend, keeping token
// counts in a Badger key-value store. Each statfile owns its own store under
// the directory named by its `path` setting.
package badgerdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the backend with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBackend("badger", &Backend{})
}

// Backend is the Badger implementation of registry.Backend.
type Backend struct{}

// learnsKey holds the statfile's learn counter. Token keys are 8 bytes, so
// this shorter key cannot collide with one.
var learnsKey = []byte("!learns")

// state is the runtime state of one open statfile.
type state struct {
	symbol string
	db     *badger.DB
}

// Init opens the statfile's store. The `path` setting is required: a Badger
// store has to live somewhere.
func (b *Backend) Init(ctx context.Context, cfg *config.ClassifierConfig, stf *config.StatfileConfig) (registry.BackendState, error) {
	dir := stringSetting(stf.Settings, "path")
	if dir == "" {
		return nil, fmt.Errorf("statfile %q: badger backend requires a path setting", stf.Symbol)
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store %s: %w", dir, err)
	}

	return &state{symbol: stf.Symbol, db: db}, nil
}

// Runtime returns the statfile state itself; transactions provide the
// per-operation isolation.
func (b *Backend) Runtime(ctx context.Context, bst registry.BackendState) (registry.BackendRuntime, error) {
	return bst, nil
}

func (b *Backend) ProcessTokens(ctx context.Context, rt registry.BackendRuntime, tokens []registry.Token) ([]uint64, error) {
	st := rt.(*state)
	counts := make([]uint64, len(tokens))

	err := st.db.View(func(txn *badger.Txn) error {
		for i, tok := range tokens {
			item, err := txn.Get(tokenKey(tok))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				counts[i] = decodeCount(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("statfile %q: %w", st.symbol, err)
	}
	return counts, nil
}

func (b *Backend) FinalizeProcess(ctx context.Context, rt registry.BackendRuntime) error {
	return nil
}

func (b *Backend) LearnTokens(ctx context.Context, rt registry.BackendRuntime, tokens []registry.Token) error {
	st := rt.(*state)
	err := st.db.Update(func(txn *badger.Txn) error {
		for _, tok := range tokens {
			key := tokenKey(tok)
			if err := addCount(txn, key, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("statfile %q: %w", st.symbol, err)
	}
	return nil
}

func (b *Backend) FinalizeLearn(ctx context.Context, rt registry.BackendRuntime) error {
	return nil
}

func (b *Backend) TotalLearns(ctx context.Context, rt registry.BackendRuntime) uint64 {
	st := rt.(*state)
	var learns uint64
	_ = st.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(learnsKey)
		if err != nil {
			return nil
		}
		return item.Value(func(val []byte) error {
			learns = decodeCount(val)
			return nil
		})
	})
	return learns
}

func (b *Backend) IncLearns(ctx context.Context, rt registry.BackendRuntime) uint64 {
	return b.adjustLearns(rt, 1)
}

func (b *Backend) DecLearns(ctx context.Context, rt registry.BackendRuntime) uint64 {
	return b.adjustLearns(rt, -1)
}

func (b *Backend) adjustLearns(rt registry.BackendRuntime, delta int64) uint64 {
	st := rt.(*state)
	var learns uint64
	_ = st.db.Update(func(txn *badger.Txn) error {
		current, err := getCount(txn, learnsKey)
		if err != nil {
			return err
		}
		if delta < 0 && current < uint64(-delta) {
			current = 0
		} else {
			current = uint64(int64(current) + delta)
		}
		learns = current
		return txn.Set(learnsKey, encodeCount(current))
	})
	return learns
}

func (b *Backend) Stat(ctx context.Context, rt registry.BackendRuntime) (*registry.BackendStat, error) {
	st := rt.(*state)
	stat := &registry.BackendStat{}

	err := st.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if len(it.Item().Key()) == 8 {
				stat.Size++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("statfile %q: %w", st.symbol, err)
	}
	stat.TotalLearns = b.TotalLearns(ctx, rt)
	return stat, nil
}

func (b *Backend) LoadTokenizerConfig(ctx context.Context, rt registry.BackendRuntime) ([]byte, error) {
	return nil, nil
}

// Close closes the statfile's store, flushing pending writes.
func (b *Backend) Close(bst registry.BackendState) error {
	st := bst.(*state)
	if err := st.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger store for %q: %w", st.symbol, err)
	}
	return nil
}

func tokenKey(tok registry.Token) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(tok))
	return key
}

func encodeCount(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func decodeCount(val []byte) uint64 {
	if len(val) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(val)
}

func getCount(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n uint64
	err = item.Value(func(val []byte) error {
		n = decodeCount(val)
		return nil
	})
	return n, err
}

func addCount(txn *badger.Txn, key []byte, delta uint64) error {
	current, err := getCount(txn, key)
	if err != nil {
		return err
	}
	return txn.Set(key, encodeCount(current+delta))
}

// stringSetting reads a string attribute out of a statfile settings object.
func stringSetting(settings cty.Value, name string) string {
	if settings == cty.NilVal || settings.IsNull() {
		return ""
	}
	ty := settings.Type()
	if !ty.IsObjectType() || !ty.HasAttribute(name) {
		return ""
	}
	val := settings.GetAttr(name)
	if val.IsNull() || val.Type() != cty.String {
		return ""
	}
	return val.AsString()
}
