// Package hcladapter is the HCL implementation of the config.Loader
// interface. It parses `classifier` and nested `statfile` blocks into the
// format-agnostic configuration model.
package hcladapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/ctxlog"
	"github.com/vk/statcore/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes the top-level blocks of a configuration file.
type fileRoot struct {
	Classifiers []*classifierBlock `hcl:"classifier,block"`
	Remain      hcl.Body           `hcl:",remain"`
}

// classifierBlock is the raw HCL shape of a `classifier` block. The label is
// the classifier algorithm name.
type classifierBlock struct {
	Name      string           `hcl:"name,label"`
	Backend   string           `hcl:"backend,optional"`
	Tokenizer string           `hcl:"tokenizer,optional"`
	Options   hcl.Expression   `hcl:"options,optional"`
	Statfiles []*statfileBlock `hcl:"statfile,block"`
}

// statfileBlock is the raw HCL shape of a `statfile` block. The label is the
// statfile symbol; any attribute other than `spam` is kept as a
// backend-specific setting.
type statfileBlock struct {
	Symbol string   `hcl:"symbol,label"`
	Spam   bool     `hcl:"spam"`
	Remain hcl.Body `hcl:",remain"`
}

// Load orchestrates the HCL configuration loading. Classifier order follows
// file order, and file order is stable.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := &config.Model{}

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, block := range root.Classifiers {
			clf, err := l.translateClassifier(block)
			if err != nil {
				return nil, fmt.Errorf("invalid classifier %q in %s: %w", block.Name, file, err)
			}
			model.Classifiers = append(model.Classifiers, clf)
		}
	}

	logger.Debug("HCL loading complete.", "classifiers", len(model.Classifiers))
	return model, nil
}

// translateClassifier converts a raw classifier block into the
// format-agnostic model, evaluating option expressions to values.
func (l *Loader) translateClassifier(block *classifierBlock) (*config.ClassifierConfig, error) {
	clf := &config.ClassifierConfig{
		Name:      block.Name,
		Backend:   block.Backend,
		Tokenizer: block.Tokenizer,
		Options:   cty.NilVal,
	}

	if block.Options != nil {
		val, diags := block.Options.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate options: %w", diags)
		}
		if !val.IsNull() {
			clf.Options = val
		}
	}

	for _, sb := range block.Statfiles {
		settings, err := l.translateSettings(sb.Remain)
		if err != nil {
			return nil, fmt.Errorf("statfile %q: %w", sb.Symbol, err)
		}
		clf.Statfiles = append(clf.Statfiles, &config.StatfileConfig{
			Symbol:   sb.Symbol,
			Spam:     sb.Spam,
			Settings: settings,
		})
	}

	return clf, nil
}

// translateSettings evaluates the leftover attributes of a statfile block
// into a single object value. Returns cty.NilVal when there are none.
func (l *Loader) translateSettings(body hcl.Body) (cty.Value, error) {
	if body == nil {
		return cty.NilVal, nil
	}

	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("failed to read settings: %w", diags)
	}
	if len(attrs) == 0 {
		return cty.NilVal, nil
	}

	vals := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return cty.NilVal, fmt.Errorf("failed to evaluate setting %q: %w", name, diags)
		}
		vals[name] = val
	}
	return cty.ObjectVal(vals), nil
}

// findAllHCLFiles walks all given paths and returns a flat, de-duplicated
// list of .hcl files.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, err
			}
			for _, p := range found {
				add(p)
			}
		} else if filepath.Ext(path) == ".hcl" {
			add(path)
		}
	}
	return allFiles, nil
}
