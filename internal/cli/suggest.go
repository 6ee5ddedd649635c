package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/pity-fox/cleantools/pkg/rule"
)

const maxSuggestions = 3

// getRule loads a rule by name. When it does not exist, the error names the
// closest stored rules.
func (a *app) getRule(ctx context.Context, name string) (*rule.Bundle, error) {
	b, err := a.store.Get(ctx, name)
	if err == nil {
		return b, nil
	}

	if errors.Is(err, rule.ErrNotFound) {
		return nil, a.notFound(ctx, err, name)
	}

	return nil, err //nolint:wrapcheck // Already names the rule.
}

func (a *app) notFound(ctx context.Context, err error, name string) error {
	rules, loadErr := a.store.Load(ctx)
	if loadErr != nil {
		return err
	}

	names := make([]string, 0, len(rules))
	for n := range rules {
		names = append(names, n)
	}

	suggestions := suggest(name, names)
	if len(suggestions) == 0 {
		return err
	}

	return fmt.Errorf("%w, did you mean %s?", err, strings.Join(suggestions, " or "))
}

// suggest returns up to [maxSuggestions] quoted names fuzzily matching
// name, best match first.
func suggest(name string, names []string) []string {
	matches := fuzzy.Find(name, names)

	out := make([]string, 0, min(len(matches), maxSuggestions))
	for _, m := range matches[:min(len(matches), maxSuggestions)] {
		out = append(out, strconv.Quote(m.Str))
	}

	return out
}
