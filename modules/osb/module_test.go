package osb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/statcore/internal/registry"
	"github.com/vk/statcore/modules/osb"
	"github.com/zclconf/go-cty/cty"
)

func defaultConfig(t *testing.T) (*osb.Tokenizer, registry.TokenizerConfig) {
	t.Helper()
	tk := &osb.Tokenizer{}
	tkcf, err := tk.Config(context.Background(), cty.NilVal)
	require.NoError(t, err)
	return tk, tkcf
}

func windowOptions(window int64) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"tokenizer": cty.ObjectVal(map[string]cty.Value{
			"window": cty.NumberIntVal(window),
		}),
	})
}

func TestTokenize_IsDeterministic(t *testing.T) {
	t.Parallel()
	// Arrange
	tk, tkcf := defaultConfig(t)
	text := []byte("the quick brown fox jumps over the lazy dog")

	// Act
	first, err := tk.Tokenize(context.Background(), tkcf, text)
	require.NoError(t, err)
	second, err := tk.Tokenize(context.Background(), tkcf, text)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, first, second)
}

func TestTokenize_EmitsWordAndPairTokens(t *testing.T) {
	t.Parallel()
	// Arrange
	tk, tkcf := defaultConfig(t)

	// Act: 3 words with the default window of 5 give 3 word tokens plus
	// pairs at distances 1..2 from the first word and distance 1 from the
	// second.
	tokens, err := tk.Tokenize(context.Background(), tkcf, []byte("one two three"))

	// Assert
	require.NoError(t, err)
	assert.Len(t, tokens, 6)

	unique := make(map[registry.Token]struct{}, len(tokens))
	for _, tok := range tokens {
		unique[tok] = struct{}{}
	}
	assert.Len(t, unique, 6)
}

func TestTokenize_WindowLimitsPairDistance(t *testing.T) {
	t.Parallel()
	// Arrange
	tk := &osb.Tokenizer{}
	tkcf, err := tk.Config(context.Background(), windowOptions(2))
	require.NoError(t, err)

	// Act: window 2 allows only adjacent pairs, so 4 words give 4 word
	// tokens plus 3 pairs.
	tokens, err := tk.Tokenize(context.Background(), tkcf, []byte("one two three four"))

	// Assert
	require.NoError(t, err)
	assert.Len(t, tokens, 7)
}

func TestTokenize_NormalizesCaseAndPunctuation(t *testing.T) {
	t.Parallel()
	// Arrange
	tk, tkcf := defaultConfig(t)

	// Act
	plain, err := tk.Tokenize(context.Background(), tkcf, []byte("hello world"))
	require.NoError(t, err)
	noisy, err := tk.Tokenize(context.Background(), tkcf, []byte("  Hello, WORLD!\n"))
	require.NoError(t, err)

	// Assert
	assert.Equal(t, plain, noisy)
}

func TestTokenize_EmptyContentYieldsNoTokens(t *testing.T) {
	t.Parallel()
	tk, tkcf := defaultConfig(t)

	tokens, err := tk.Tokenize(context.Background(), tkcf, []byte("  ... \t\n"))

	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestConfig_RejectsInvalidWindow(t *testing.T) {
	t.Parallel()
	tk := &osb.Tokenizer{}

	_, err := tk.Config(context.Background(), windowOptions(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2")

	_, err = tk.Config(context.Background(), cty.ObjectVal(map[string]cty.Value{
		"tokenizer": cty.ObjectVal(map[string]cty.Value{
			"window": cty.StringVal("five"),
		}),
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a number")
}

func TestRegister_AliasesShareOneImplementation(t *testing.T) {
	t.Parallel()
	// Arrange
	r := registry.New()
	(&osb.Module{}).Register(r)

	// Act
	canonical, ok := r.Tokenizer("osb")
	require.True(t, ok)
	alias, ok := r.Tokenizer("osb-text")
	require.True(t, ok)

	// Assert
	assert.Same(t, canonical, alias)
}
