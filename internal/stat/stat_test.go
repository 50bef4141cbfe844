package stat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/registry"
	"github.com/vk/statcore/internal/stat"
	"github.com/vk/statcore/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

// fakeRegistry registers one fake implementation per role under the default
// names, so configurations with empty names resolve to the fakes.
func fakeRegistry(t *testing.T) (*registry.Registry, *testutil.FakeModule) {
	t.Helper()
	mod := &testutil.FakeModule{
		ClassifierName: registry.DefaultClassifier,
		TokenizerName:  registry.DefaultTokenizer,
		BackendName:    registry.DefaultBackend,
		CacheName:      registry.DefaultCache,
	}
	r := registry.New()
	mod.Register(r)
	return r, mod
}

func classifierConfig(symbols ...string) *config.ClassifierConfig {
	clf := &config.ClassifierConfig{Options: cty.NilVal}
	for _, sym := range symbols {
		clf.Statfiles = append(clf.Statfiles, &config.StatfileConfig{
			Symbol:   sym,
			Spam:     sym == "SPAM",
			Settings: cty.NilVal,
		})
	}
	return clf
}

func TestInit_AssignsDenseSequentialStatfileIDs(t *testing.T) {
	t.Parallel()
	// Arrange
	reg, _ := fakeRegistry(t)
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{
		classifierConfig("SPAM", "HAM"),
		classifierConfig("A", "B", "C"),
	}}

	// Act
	sc, err := stat.Init(context.Background(), cfg, reg)

	// Assert
	require.NoError(t, err)
	require.Len(t, sc.Classifiers(), 2)
	require.Len(t, sc.Statfiles(), 5)
	for i, st := range sc.Statfiles() {
		assert.Equal(t, i, st.ID)
		assert.Same(t, st, sc.StatfileByID(i))
	}
	assert.Equal(t, []int{0, 1}, sc.Classifiers()[0].StatfileIDs)
	assert.Equal(t, []int{2, 3, 4}, sc.Classifiers()[1].StatfileIDs)
	assert.Nil(t, sc.StatfileByID(5))
	assert.Nil(t, sc.StatfileByID(-1))
	require.NoError(t, sc.Close())
}

func TestInit_SkipsStatfileWhoseBackendFailsToInit(t *testing.T) {
	t.Parallel()
	// Arrange
	reg, mod := fakeRegistry(t)
	mod.Backend.FailSymbols = map[string]bool{"BROKEN": true}
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{
		classifierConfig("SPAM", "BROKEN", "HAM"),
	}}

	// Act
	sc, err := stat.Init(context.Background(), cfg, reg)

	// Assert: the classifier survives, the siblings keep dense ids, and the
	// broken statfile is absent from both collections.
	require.NoError(t, err)
	require.Len(t, sc.Classifiers(), 1)
	require.Len(t, sc.Statfiles(), 2)
	assert.Equal(t, "SPAM", sc.Statfiles()[0].Cfg.Symbol)
	assert.Equal(t, "HAM", sc.Statfiles()[1].Cfg.Symbol)
	assert.Equal(t, []int{0, 1}, sc.Classifiers()[0].StatfileIDs)
	require.NoError(t, sc.Close())
}

func TestInit_UnresolvedNamesAreFatal(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mutate   func(clf *config.ClassifierConfig)
		wantRole string
		wantName string
	}{
		{
			name:     "unknown backend",
			mutate:   func(clf *config.ClassifierConfig) { clf.Backend = "no-such-backend" },
			wantRole: "backend",
			wantName: "no-such-backend",
		},
		{
			name:     "unknown classifier",
			mutate:   func(clf *config.ClassifierConfig) { clf.Name = "no-such-classifier" },
			wantRole: "classifier",
			wantName: "no-such-classifier",
		},
		{
			name:     "unknown tokenizer",
			mutate:   func(clf *config.ClassifierConfig) { clf.Tokenizer = "no-such-tokenizer" },
			wantRole: "tokenizer",
			wantName: "no-such-tokenizer",
		},
		{
			name: "unknown cache",
			mutate: func(clf *config.ClassifierConfig) {
				clf.Options = cty.ObjectVal(map[string]cty.Value{
					"cache": cty.ObjectVal(map[string]cty.Value{
						"name": cty.StringVal("no-such-cache"),
					}),
				})
			},
			wantRole: "cache",
			wantName: "no-such-cache",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			// Arrange
			reg, _ := fakeRegistry(t)
			clf := classifierConfig("SPAM")
			tc.mutate(clf)
			cfg := &config.Model{Classifiers: []*config.ClassifierConfig{clf}}

			// Act
			sc, err := stat.Init(context.Background(), cfg, reg)

			// Assert
			require.Error(t, err)
			assert.Nil(t, sc)
			var fatal *stat.FatalError
			require.ErrorAs(t, err, &fatal)
			assert.Equal(t, tc.wantRole, fatal.Role)
			assert.Equal(t, tc.wantName, fatal.Name)
		})
	}
}

func TestInit_FreezesTokenizerFromFirstClassifier(t *testing.T) {
	t.Parallel()
	// Arrange: a second tokenizer exists and the second classifier asks for
	// it by name.
	reg, mod := fakeRegistry(t)
	alt := &testutil.FakeModule{TokenizerName: "alt"}
	alt.Register(reg)

	second := classifierConfig("A")
	second.Tokenizer = "alt"
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{
		classifierConfig("SPAM", "HAM"),
		second,
	}}

	// Act
	sc, err := stat.Init(context.Background(), cfg, reg)

	// Assert: only the first classifier's tokenizer was configured and the
	// frozen one serves the whole context.
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultTokenizer, sc.TokenizerName())
	assert.Equal(t, 1, mod.Tokenizer.ConfigCalls)
	assert.Equal(t, 0, alt.Tokenizer.ConfigCalls)
	_, tkcf := sc.Tokenizer()
	assert.Same(t, mod.Tokenizer, testutil.ConfigOwner(tkcf))
	require.NoError(t, sc.Close())
}

func TestClose_ClosesEveryStatfileExactlyOnce(t *testing.T) {
	t.Parallel()
	// Arrange
	reg, mod := fakeRegistry(t)
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{
		classifierConfig("SPAM", "HAM"),
	}}
	sc, err := stat.Init(context.Background(), cfg, reg)
	require.NoError(t, err)

	// Act
	require.NoError(t, sc.Close())

	// Assert
	assert.Equal(t, 1, mod.Backend.CloseCount("SPAM"))
	assert.Equal(t, 1, mod.Backend.CloseCount("HAM"))
	assert.Equal(t, 1, mod.Cache.CloseCalls)
	assert.Nil(t, sc.Config())
	assert.Nil(t, sc.Classifiers())
	assert.Nil(t, sc.Statfiles())
	assert.Nil(t, sc.StatfileByID(0))
}

func TestClose_CollectsFailuresAndFinishesTeardown(t *testing.T) {
	t.Parallel()
	// Arrange: the first statfile's close fails, the rest must still happen.
	mod := &testutil.FakeModule{
		ClassifierName: registry.DefaultClassifier,
		TokenizerName:  registry.DefaultTokenizer,
		BackendName:    registry.DefaultBackend,
		CacheName:      registry.DefaultCache,
		Backend: &testutil.FakeBackend{
			CloseErrs: map[string]error{"SPAM": errors.New("disk gone")},
		},
	}
	reg := registry.New()
	mod.Register(reg)
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{
		classifierConfig("SPAM", "HAM"),
	}}
	sc, err := stat.Init(context.Background(), cfg, reg)
	require.NoError(t, err)

	// Act
	err = sc.Close()

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"SPAM"`)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Equal(t, 1, mod.Backend.CloseCount("SPAM"))
	assert.Equal(t, 1, mod.Backend.CloseCount("HAM"))
	assert.Equal(t, 1, mod.Cache.CloseCalls)
}

func TestClose_SecondCloseOnSameContextPanics(t *testing.T) {
	t.Parallel()
	// Arrange
	reg, _ := fakeRegistry(t)
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{classifierConfig("SPAM")}}
	sc, err := stat.Init(context.Background(), cfg, reg)
	require.NoError(t, err)
	require.NoError(t, sc.Close())

	// Act & Assert
	assert.Panics(t, func() { _ = sc.Close() })
}

func TestRegisterAsyncCleanup_DrainsInRegistrationOrder(t *testing.T) {
	t.Parallel()
	// Arrange
	reg, _ := fakeRegistry(t)
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{classifierConfig("SPAM")}}
	sc, err := stat.Init(context.Background(), cfg, reg)
	require.NoError(t, err)

	var drained []string
	record := func(ud any) { drained = append(drained, ud.(string)) }
	sc.RegisterAsyncCleanup(record, "first")
	sc.RegisterAsyncCleanup(nil, "ignored")
	sc.RegisterAsyncCleanup(record, "second")
	sc.RegisterAsyncCleanup(record, "third")

	// Act
	require.NoError(t, sc.Close())

	// Assert: each callback ran exactly once, in FIFO order, with its own
	// payload; a nil callback is tolerated.
	assert.Equal(t, []string{"first", "second", "third"}, drained)
}

func TestEmptyConfiguration_ClassifyAndLearnFailCleanly(t *testing.T) {
	t.Parallel()
	// Arrange: no classifiers means no tokenizer was ever frozen.
	sc, err := stat.Init(context.Background(), &config.Model{}, registry.New())
	require.NoError(t, err)

	// Act & Assert
	_, err = sc.Classify(context.Background(), []byte("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tokenizer configured")

	err = sc.Learn(context.Background(), []byte("hello"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tokenizer configured")

	require.NoError(t, sc.Close())
}

func TestClassify_FinalizesBuiltRunsWhenBackendFails(t *testing.T) {
	t.Parallel()
	// Arrange: the middle statfile's token lookup fails after its runtime
	// was built.
	mod := &testutil.FakeModule{
		ClassifierName: registry.DefaultClassifier,
		TokenizerName:  registry.DefaultTokenizer,
		BackendName:    registry.DefaultBackend,
		CacheName:      registry.DefaultCache,
		Backend: &testutil.FakeBackend{
			ProcessErrs: map[string]error{"B": errors.New("table gone")},
		},
	}
	reg := registry.New()
	mod.Register(reg)
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{
		classifierConfig("A", "B", "C"),
	}}
	sc, err := stat.Init(context.Background(), cfg, reg)
	require.NoError(t, err)
	defer func() { require.NoError(t, sc.Close()) }()

	// Act
	_, err = sc.Classify(context.Background(), []byte("hello"))

	// Assert: every runtime that was built got finalized, the one never
	// built did not.
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"B"`)
	assert.Equal(t, 1, mod.Backend.FinalizeProcessCount("A"))
	assert.Equal(t, 1, mod.Backend.FinalizeProcessCount("B"))
	assert.Equal(t, 0, mod.Backend.FinalizeProcessCount("C"))
}

func TestClassify_FinalizesRunsWhenClassifierFails(t *testing.T) {
	t.Parallel()
	// Arrange
	mod := &testutil.FakeModule{
		ClassifierName: registry.DefaultClassifier,
		TokenizerName:  registry.DefaultTokenizer,
		BackendName:    registry.DefaultBackend,
		CacheName:      registry.DefaultCache,
		Classifier:     &testutil.FakeClassifier{ClassifyErr: errors.New("bad state")},
	}
	reg := registry.New()
	mod.Register(reg)
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{
		classifierConfig("SPAM", "HAM"),
	}}
	sc, err := stat.Init(context.Background(), cfg, reg)
	require.NoError(t, err)
	defer func() { require.NoError(t, sc.Close()) }()

	// Act
	_, err = sc.Classify(context.Background(), []byte("hello"))

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad state")
	assert.Equal(t, 1, mod.Backend.FinalizeProcessCount("SPAM"))
	assert.Equal(t, 1, mod.Backend.FinalizeProcessCount("HAM"))
}

// The default-context tests share the process-wide handle, so they must not
// run in parallel with each other.
func TestDefaultContext_SetupGetClose(t *testing.T) {
	// Arrange
	reg, _ := fakeRegistry(t)
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{classifierConfig("SPAM")}}
	require.Nil(t, stat.Get())

	// Act
	sc, err := stat.Setup(context.Background(), cfg, reg)

	// Assert
	require.NoError(t, err)
	assert.Same(t, sc, stat.Get())
	require.NoError(t, stat.Close())
	assert.Nil(t, stat.Get())
}

func TestDefaultContext_SetupFailurePublishesNothing(t *testing.T) {
	// Arrange
	reg, _ := fakeRegistry(t)
	clf := classifierConfig("SPAM")
	clf.Backend = "no-such-backend"
	cfg := &config.Model{Classifiers: []*config.ClassifierConfig{clf}}

	// Act
	sc, err := stat.Setup(context.Background(), cfg, reg)

	// Assert
	require.Error(t, err)
	assert.Nil(t, sc)
	assert.Nil(t, stat.Get())
}

func TestDefaultContext_CloseWithoutSetupPanics(t *testing.T) {
	require.Nil(t, stat.Get())
	assert.Panics(t, func() { _ = stat.Close() })
}
