// Package mmapfile implements the "mmap" storage backend: an in-memory token
// table with optional flat-file persistence. With a `path` setting the table
// is loaded from the file at init and written back at close; without one the
// statfile is purely in-memory.
package mmapfile

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the backend with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBackend("mmap", &Backend{})
}

// Backend is the flat-file implementation of registry.Backend. It is
// stateless; per-statfile state lives in the state returned by Init.
type Backend struct{}

// fileImage is the persisted layout of a statfile.
type fileImage struct {
	Learns          uint64
	Counts          map[uint64]uint64
	TokenizerConfig []byte
}

// state is the runtime state of one open statfile.
type state struct {
	symbol string
	path   string

	mu     sync.RWMutex
	learns uint64
	counts map[uint64]uint64
	tkcf   []byte
}

// Init opens the statfile. A missing file is an empty statfile; an unreadable
// or corrupt file is an init failure and the statfile is skipped by the
// orchestrator.
func (b *Backend) Init(ctx context.Context, cfg *config.ClassifierConfig, stf *config.StatfileConfig) (registry.BackendState, error) {
	st := &state{
		symbol: stf.Symbol,
		counts: make(map[uint64]uint64),
	}

	path := stringSetting(stf.Settings, "path")
	if path != "" {
		st.path = filepath.Clean(path)
		f, err := os.Open(st.path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to open statfile %s: %w", st.path, err)
			}
		} else {
			defer f.Close()
			var img fileImage
			if err := gob.NewDecoder(f).Decode(&img); err != nil {
				return nil, fmt.Errorf("failed to read statfile %s: %w", st.path, err)
			}
			st.learns = img.Learns
			if img.Counts != nil {
				st.counts = img.Counts
			}
			st.tkcf = img.TokenizerConfig
		}
	}

	return st, nil
}

// Runtime returns the statfile state itself; this backend needs no
// per-operation bookkeeping.
func (b *Backend) Runtime(ctx context.Context, bst registry.BackendState) (registry.BackendRuntime, error) {
	return bst, nil
}

func (b *Backend) ProcessTokens(ctx context.Context, rt registry.BackendRuntime, tokens []registry.Token) ([]uint64, error) {
	st := rt.(*state)
	st.mu.RLock()
	defer st.mu.RUnlock()

	counts := make([]uint64, len(tokens))
	for i, tok := range tokens {
		counts[i] = st.counts[uint64(tok)]
	}
	return counts, nil
}

func (b *Backend) FinalizeProcess(ctx context.Context, rt registry.BackendRuntime) error {
	return nil
}

func (b *Backend) LearnTokens(ctx context.Context, rt registry.BackendRuntime, tokens []registry.Token) error {
	st := rt.(*state)
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, tok := range tokens {
		st.counts[uint64(tok)]++
	}
	return nil
}

func (b *Backend) FinalizeLearn(ctx context.Context, rt registry.BackendRuntime) error {
	return nil
}

func (b *Backend) TotalLearns(ctx context.Context, rt registry.BackendRuntime) uint64 {
	st := rt.(*state)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.learns
}

func (b *Backend) IncLearns(ctx context.Context, rt registry.BackendRuntime) uint64 {
	st := rt.(*state)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.learns++
	return st.learns
}

func (b *Backend) DecLearns(ctx context.Context, rt registry.BackendRuntime) uint64 {
	st := rt.(*state)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.learns > 0 {
		st.learns--
	}
	return st.learns
}

func (b *Backend) Stat(ctx context.Context, rt registry.BackendRuntime) (*registry.BackendStat, error) {
	st := rt.(*state)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return &registry.BackendStat{
		TotalLearns: st.learns,
		Size:        uint64(len(st.counts)),
	}, nil
}

func (b *Backend) LoadTokenizerConfig(ctx context.Context, rt registry.BackendRuntime) ([]byte, error) {
	st := rt.(*state)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.tkcf, nil
}

// Close writes the table back to its file, when one is configured. The write
// goes through a temp file and rename so a crash cannot leave a truncated
// statfile behind.
func (b *Backend) Close(bst registry.BackendState) error {
	st := bst.(*state)
	if st.path == "" {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(st.path), "."+filepath.Base(st.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write statfile %s: %w", st.path, err)
	}
	img := fileImage{
		Learns:          st.learns,
		Counts:          st.counts,
		TokenizerConfig: st.tkcf,
	}
	if err := gob.NewEncoder(tmp).Encode(&img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write statfile %s: %w", st.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write statfile %s: %w", st.path, err)
	}
	if err := os.Rename(tmp.Name(), st.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace statfile %s: %w", st.path, err)
	}
	return nil
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
