package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rag-backend/internal/models"
)

type AssemblerOptions struct {
	TopK int
	// FilterKey is the metadata field a source filter is matched against.
	FilterKey string
	// MaxUnits and MaxChars bound the context. Zero means unbounded.
	MaxUnits int
	MaxChars int
}

// Assembler retrieves units for a query and joins them into one context block.
type Assembler struct {
	store DocumentStore
	opts  AssemblerOptions
}

func NewAssembler(store DocumentStore, opts AssemblerOptions) *Assembler {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.FilterKey == "" {
		opts.FilterKey = models.MetaFilename
	}
	return &Assembler{store: store, opts: opts}
}

// Assemble joins the text of the best matching units with single spaces, in
// the store's rank order. No matches gives an empty string and no error.
func (a *Assembler) Assemble(ctx context.Context, query, source string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: query is required", models.ErrEmptyInput)
	}

	var filter map[string]string
	if source != "" {
		filter = map[string]string{a.opts.FilterKey: source}
	}

	units, err := a.store.Search(ctx, query, a.opts.TopK, filter)
	if err != nil {
		if !errors.Is(err, models.ErrStoreQuery) {
			err = fmt.Errorf("%w: %w", models.ErrStoreQuery, err)
		}
		return "", err
	}

	if a.opts.MaxUnits > 0 && len(units) > a.opts.MaxUnits {
		units = units[:a.opts.MaxUnits]
	}
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	return truncate(strings.Join(texts, " "), a.opts.MaxChars), nil
}

// truncate cuts s to at most limit runes. limit <= 0 leaves s alone.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
