// Package osb implements the OSB (orthogonal sparse bigram) tokenizer. Words
// are hashed individually and in pairs within a sliding window, so word order
// contributes features without exploding the feature space.
package osb

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the tokenizer under both of its historical names.
func (m *Module) Register(r *registry.Registry) {
	t := &Tokenizer{}
	r.RegisterTokenizer("osb", t)
	r.RegisterTokenizer("osb-text", t)
}

// defaultWindow is the sliding window size used when the configuration does
// not override it.
const defaultWindow = 5

// Tokenizer is the OSB implementation of registry.Tokenizer. It is stateless;
// per-pipeline settings live in the config value produced by Config.
type Tokenizer struct{}

// osbConfig is the parsed tokenizer configuration.
type osbConfig struct {
	window int
}

// Config reads the tokenizer window out of the classifier options, under
// `options.tokenizer.window`. Absent levels fall back to the default window.
func (t *Tokenizer) Config(ctx context.Context, opts cty.Value) (registry.TokenizerConfig, error) {
	cfg := &osbConfig{window: defaultWindow}

	tkOpts := config.AttrOrNil(opts, "tokenizer")
	window := config.AttrOrNil(tkOpts, "window")
	if window != cty.NilVal && !window.IsNull() {
		if window.Type() != cty.Number {
			return nil, fmt.Errorf("tokenizer window must be a number, got %s", window.Type().FriendlyName())
		}
		w, _ := window.AsBigFloat().Int64()
		if w < 2 {
			return nil, fmt.Errorf("tokenizer window must be at least 2, got %d", w)
		}
		cfg.window = int(w)
	}

	return cfg, nil
}

// Tokenize splits the content into lowercased words and emits one token per
// word plus one per distance-tagged word pair inside the window.
func (t *Tokenizer) Tokenize(ctx context.Context, tkcf registry.TokenizerConfig, text []byte) ([]registry.Token, error) {
	cfg, ok := tkcf.(*osbConfig)
	if !ok {
		return nil, fmt.Errorf("unexpected tokenizer config type %T", tkcf)
	}

	words := splitWords(string(text))
	tokens := make([]registry.Token, 0, len(words)*cfg.window)

	for i, w := range words {
		tokens = append(tokens, hashWord(w))
		for d := 1; d < cfg.window && i+d < len(words); d++ {
			tokens = append(tokens, hashPair(w, words[i+d], d))
		}
	}

	return tokens, nil
}

// splitWords lowercases the text and splits it on anything that is not a
// letter or digit.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hashWord(w string) registry.Token {
	h := fnv.New64a()
	h.Write([]byte(w))
	return registry.Token(h.Sum64())
}

func hashPair(a, b string, distance int) registry.Token {
	h := fnv.New64a()
	h.Write([]byte(a))
	h.Write([]byte{0, byte(distance)})
	h.Write([]byte(b))
	return registry.Token(h.Sum64())
}
