// Package testutil provides fake implementations of the four pluggable roles
// for exercising the lifecycle orchestration without real algorithms or
// storage.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// FakeModule registers one fake implementation per role under the given
// names. Empty names are skipped, so a test can register only the roles it
// needs.
type FakeModule struct {
	ClassifierName string
	TokenizerName  string
	BackendName    string
	CacheName      string

	Backend    *FakeBackend
	Classifier *FakeClassifier
	Tokenizer  *FakeTokenizer
	Cache      *FakeCache
}

// Register implements the registry.Module interface.
func (m *FakeModule) Register(r *registry.Registry) {
	if m.ClassifierName != "" {
		if m.Classifier == nil {
			m.Classifier = &FakeClassifier{}
		}
		r.RegisterClassifier(m.ClassifierName, m.Classifier)
	}
	if m.TokenizerName != "" {
		if m.Tokenizer == nil {
			m.Tokenizer = &FakeTokenizer{}
		}
		r.RegisterTokenizer(m.TokenizerName, m.Tokenizer)
	}
	if m.BackendName != "" {
		if m.Backend == nil {
			m.Backend = &FakeBackend{}
		}
		r.RegisterBackend(m.BackendName, m.Backend)
	}
	if m.CacheName != "" {
		if m.Cache == nil {
			m.Cache = &FakeCache{}
		}
		r.RegisterCache(m.CacheName, m.Cache)
	}
}

// FakeBackendState is the opaque state a FakeBackend returns per statfile.
type FakeBackendState struct {
	Symbol         string
	Learns         uint64
	Counts         map[registry.Token]uint64
	Closed         int
	Finalized      int
	LearnFinalized int
}

// FakeBackend implements registry.Backend in memory and records lifecycle
// calls. Statfile symbols listed in FailSymbols fail their init; symbols in
// ProcessErrs fail their token lookup.
type FakeBackend struct {
	mu          sync.Mutex
	FailSymbols map[string]bool
	CloseErrs   map[string]error
	ProcessErrs map[string]error
	States      []*FakeBackendState
}

func (b *FakeBackend) Init(ctx context.Context, cfg *config.ClassifierConfig, stf *config.StatfileConfig) (registry.BackendState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailSymbols[stf.Symbol] {
		return nil, fmt.Errorf("forced init failure for %q", stf.Symbol)
	}
	st := &FakeBackendState{
		Symbol: stf.Symbol,
		Counts: make(map[registry.Token]uint64),
	}
	b.States = append(b.States, st)
	return st, nil
}

func (b *FakeBackend) Runtime(ctx context.Context, bst registry.BackendState) (registry.BackendRuntime, error) {
	return bst, nil
}

func (b *FakeBackend) ProcessTokens(ctx context.Context, rt registry.BackendRuntime, tokens []registry.Token) ([]uint64, error) {
	st := rt.(*FakeBackendState)
	counts := make([]uint64, len(tokens))
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ProcessErrs[st.Symbol]; err != nil {
		return nil, err
	}
	for i, tok := range tokens {
		counts[i] = st.Counts[tok]
	}
	return counts, nil
}

func (b *FakeBackend) FinalizeProcess(ctx context.Context, rt registry.BackendRuntime) error {
	st := rt.(*FakeBackendState)
	b.mu.Lock()
	defer b.mu.Unlock()
	st.Finalized++
	return nil
}

func (b *FakeBackend) LearnTokens(ctx context.Context, rt registry.BackendRuntime, tokens []registry.Token) error {
	st := rt.(*FakeBackendState)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tok := range tokens {
		st.Counts[tok]++
	}
	return nil
}

func (b *FakeBackend) FinalizeLearn(ctx context.Context, rt registry.BackendRuntime) error {
	st := rt.(*FakeBackendState)
	b.mu.Lock()
	defer b.mu.Unlock()
	st.LearnFinalized++
	return nil
}

func (b *FakeBackend) TotalLearns(ctx context.Context, rt registry.BackendRuntime) uint64 {
	st := rt.(*FakeBackendState)
	b.mu.Lock()
	defer b.mu.Unlock()
	return st.Learns
}

func (b *FakeBackend) IncLearns(ctx context.Context, rt registry.BackendRuntime) uint64 {
	st := rt.(*FakeBackendState)
	b.mu.Lock()
	defer b.mu.Unlock()
	st.Learns++
	return st.Learns
}

func (b *FakeBackend) DecLearns(ctx context.Context, rt registry.BackendRuntime) uint64 {
	st := rt.(*FakeBackendState)
	b.mu.Lock()
	defer b.mu.Unlock()
	if st.Learns > 0 {
		st.Learns--
	}
	return st.Learns
}

func (b *FakeBackend) Stat(ctx context.Context, rt registry.BackendRuntime) (*registry.BackendStat, error) {
	st := rt.(*FakeBackendState)
	b.mu.Lock()
	defer b.mu.Unlock()
	return &registry.BackendStat{TotalLearns: st.Learns, Size: uint64(len(st.Counts))}, nil
}

func (b *FakeBackend) LoadTokenizerConfig(ctx context.Context, rt registry.BackendRuntime) ([]byte, error) {
	return nil, nil
}

func (b *FakeBackend) Close(bst registry.BackendState) error {
	st := bst.(*FakeBackendState)
	b.mu.Lock()
	defer b.mu.Unlock()
	st.Closed++
	if err := b.CloseErrs[st.Symbol]; err != nil {
		return err
	}
	return nil
}

// CloseCount reports how many times the statfile with the given symbol was
// closed.
func (b *FakeBackend) CloseCount(symbol string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, st := range b.States {
		if st.Symbol == symbol {
			return st.Closed
		}
	}
	return 0
}

// FinalizeProcessCount reports how many classify operations on the statfile
// with the given symbol were finalized.
func (b *FakeBackend) FinalizeProcessCount(symbol string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, st := range b.States {
		if st.Symbol == symbol {
			return st.Finalized
		}
	}
	return 0
}

// FakeClassifier implements registry.Classifier. Classify reports every
// message as ham with a fixed neutral score, or fails with ClassifyErr when
// one is set.
type FakeClassifier struct {
	InitCalls   int
	LearnCalls  int
	ClassifyErr error
}

func (c *FakeClassifier) Init(ctx context.Context, cfg *config.ClassifierConfig) (registry.ClassifierState, error) {
	c.InitCalls++
	return c, nil
}

func (c *FakeClassifier) Classify(ctx context.Context, state registry.ClassifierState, tokens []registry.Token, runs []*registry.StatfileRun) (*registry.Result, error) {
	if c.ClassifyErr != nil {
		return nil, c.ClassifyErr
	}
	return &registry.Result{Spam: false, Score: 0.5}, nil
}

func (c *FakeClassifier) LearnSpam(ctx context.Context, state registry.ClassifierState, tokens []registry.Token, spam bool, runs []*registry.StatfileRun) error {
	c.LearnCalls++
	for _, run := range runs {
		if run.Spam != spam {
			continue
		}
		if err := run.Backend.LearnTokens(ctx, run.Runtime, tokens); err != nil {
			return err
		}
		run.Backend.IncLearns(ctx, run.Runtime)
	}
	return nil
}

// FakeTokenizer implements registry.Tokenizer, hashing whole messages into a
// single token. ConfigCalls counts how many times Config ran, which is how
// tests observe tokenizer freezing.
type FakeTokenizer struct {
	ConfigCalls int
}

type fakeTokenizerConfig struct {
	owner *FakeTokenizer
}

func (t *FakeTokenizer) Config(ctx context.Context, opts cty.Value) (registry.TokenizerConfig, error) {
	t.ConfigCalls++
	return &fakeTokenizerConfig{owner: t}, nil
}

func (t *FakeTokenizer) Tokenize(ctx context.Context, tkcf registry.TokenizerConfig, text []byte) ([]registry.Token, error) {
	var h registry.Token
	for _, b := range text {
		h = h*31 + registry.Token(b)
	}
	return []registry.Token{h}, nil
}

// ConfigOwner reports which FakeTokenizer produced a tokenizer config value.
func ConfigOwner(tkcf registry.TokenizerConfig) *FakeTokenizer {
	if cfg, ok := tkcf.(*fakeTokenizerConfig); ok {
		return cfg.owner
	}
	return nil
}

// FakeCache implements registry.Cache with a plain digest set.
type FakeCache struct {
	mu           sync.Mutex
	ProcessCalls int
	CloseCalls   int
	seen         map[string]bool
}

func (c *FakeCache) Init(ctx context.Context, opts cty.Value) (registry.CacheState, error) {
	return c, nil
}

func (c *FakeCache) Process(ctx context.Context, state registry.CacheState, digest string, spam bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ProcessCalls++
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if prev, ok := c.seen[digest]; ok && prev == spam {
		return true, nil
	}
	c.seen[digest] = spam
	return false, nil
}

func (c *FakeCache) Close(state registry.CacheState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCalls++
	return nil
}
