package registry

import (
	"context"

	"github.com/vk/statcore/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// Token is a single hashed feature produced by a tokenizer.
type Token uint64

// Opaque per-instance states owned by the pluggable implementations. The
// orchestration code stores and passes these around without inspecting them.
type (
	// ClassifierState is algorithm-specific state prepared by Classifier.Init.
	ClassifierState any
	// TokenizerConfig is a tokenizer's parsed configuration.
	TokenizerConfig any
	// BackendState is a backend's per-statfile runtime state.
	BackendState any
	// BackendRuntime is a backend's per-operation (classify/learn) state.
	BackendRuntime any
	// CacheState is a cache's runtime state.
	CacheState any
)

// Result is the outcome of classifying one piece of content.
type Result struct {
	// Spam reports the predicted class.
	Spam bool
	// Score is the spam probability in [0, 1].
	Score float64
	// Symbol is the winning statfile's symbol, empty when the classifier
	// had too little data to decide.
	Symbol string
}

// BackendStat is a snapshot of a statfile's backend counters.
type BackendStat struct {
	TotalLearns uint64
	Size        uint64
}

// StatfileRun is the per-statfile view handed to a classifier during a
// classify or learn operation. Counts is parallel to the token slice of the
// operation; it is nil during learn.
type StatfileRun struct {
	Symbol      string
	Spam        bool
	Backend     Backend
	Runtime     BackendRuntime
	Counts      []uint64
	TotalLearns uint64
}

// Classifier is the capability contract for a classification algorithm.
// Implementations are stateless singletons; per-classifier state lives in the
// ClassifierState returned by Init.
type Classifier interface {
	// Init prepares algorithm-specific state for one configured classifier.
	Init(ctx context.Context, cfg *config.ClassifierConfig) (ClassifierState, error)

	// Classify scores tokenized content against the classifier's statfiles.
	Classify(ctx context.Context, state ClassifierState, tokens []Token, runs []*StatfileRun) (*Result, error)

	// LearnSpam trains the statfiles matching the given class.
	LearnSpam(ctx context.Context, state ClassifierState, tokens []Token, spam bool, runs []*StatfileRun) error
}

// Tokenizer is the capability contract for a tokenization algorithm.
type Tokenizer interface {
	// Config parses tokenizer settings out of a classifier's options value.
	Config(ctx context.Context, opts cty.Value) (TokenizerConfig, error)

	// Tokenize converts input content into feature tokens.
	Tokenize(ctx context.Context, tkcf TokenizerConfig, text []byte) ([]Token, error)
}

// Backend is the capability contract for a statfile storage engine.
type Backend interface {
	// Init opens the backend for one statfile. A nil error means the
	// returned state is usable until Close.
	Init(ctx context.Context, cfg *config.ClassifierConfig, stf *config.StatfileConfig) (BackendState, error)

	// Runtime prepares per-operation state for a classify or learn run.
	Runtime(ctx context.Context, state BackendState) (BackendRuntime, error)

	// ProcessTokens looks up occurrence counts for the given tokens. The
	// returned slice is parallel to tokens.
	ProcessTokens(ctx context.Context, rt BackendRuntime, tokens []Token) ([]uint64, error)

	// FinalizeProcess ends a classify run.
	FinalizeProcess(ctx context.Context, rt BackendRuntime) error

	// LearnTokens records one occurrence of each token.
	LearnTokens(ctx context.Context, rt BackendRuntime, tokens []Token) error

	// FinalizeLearn ends a learn run.
	FinalizeLearn(ctx context.Context, rt BackendRuntime) error

	// TotalLearns reports how many messages were learned into the statfile.
	TotalLearns(ctx context.Context, rt BackendRuntime) uint64

	// IncLearns and DecLearns adjust the learn counter and return the new
	// value.
	IncLearns(ctx context.Context, rt BackendRuntime) uint64
	DecLearns(ctx context.Context, rt BackendRuntime) uint64

	// Stat reports a snapshot of the statfile's counters.
	Stat(ctx context.Context, rt BackendRuntime) (*BackendStat, error)

	// LoadTokenizerConfig returns the tokenizer configuration persisted with
	// the statfile, or nil when the backend stores none.
	LoadTokenizerConfig(ctx context.Context, rt BackendRuntime) ([]byte, error)

	// Close releases the statfile's runtime state.
	Close(state BackendState) error
}

// Cache is the capability contract for a learn-result cache.
type Cache interface {
	// Init prepares the cache from the classifier's `cache` options object
	// (cty.NilVal when absent).
	Init(ctx context.Context, opts cty.Value) (CacheState, error)

	// Process records a message digest about to be learned as the given
	// class. It reports true when the message was already learned as that
	// class and the learn should be skipped.
	Process(ctx context.Context, state CacheState, digest string, spam bool) (bool, error)

	// Close releases the cache's runtime state.
	Close(state CacheState) error
}
