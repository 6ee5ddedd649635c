package mcp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pity-fox/cleantools/pkg/expr"
	"github.com/pity-fox/cleantools/pkg/policy"
	"github.com/pity-fox/cleantools/pkg/rule"
	"github.com/pity-fox/cleantools/pkg/status"
)

// ListRulesParams defines parameters for the list_rules tool.
type ListRulesParams struct {
	Filter string `json:"filter,omitempty"`
}

// ListRulesResult contains the result of listing rules.
type ListRulesResult struct {
	Message string        `json:"message"`
	Error   string        `json:"error,omitempty"`
	Rules   []RuleSummary `json:"rules"`
	Count   int           `json:"count"`
}

// RuleSummary describes a rule without its script.
type RuleSummary struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Encrypted   bool   `json:"encrypted"`
	Allowed     bool   `json:"allowed"`
}

// GetRuleParams defines parameters for the get_rule tool.
type GetRuleParams struct {
	Name   string `json:"name"`
	Author string `json:"author,omitempty"`
}

// GetRuleResult contains the result of getting a single rule.
type GetRuleResult struct {
	Rule    *RuleDetails `json:"rule,omitempty"`
	Message string       `json:"message"`
	Found   bool         `json:"found"`
}

// RuleDetails contains a rule with its script and verification details.
type RuleDetails struct {
	Script        string `json:"script"`
	StatusMessage string `json:"statusMessage,omitempty"`
	Reason        string `json:"reason"`
	RuleSummary
}

// VerifyRulesParams defines parameters for the verify_rules tool.
type VerifyRulesParams struct{}

// VerifyRulesResult summarizes the security status of the store.
type VerifyRulesResult struct {
	Counts  map[string]int `json:"counts"`
	Message string         `json:"message"`
	Blocked []BlockedRule  `json:"blocked"`
	Total   int            `json:"total"`
}

// BlockedRule is a rule that would be refused.
type BlockedRule struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// ListRules lists every rule, optionally narrowed by a CEL filter. An
// invalid filter is reported in the result rather than as an error.
func (s *Server) ListRules(ctx context.Context, params ListRulesParams) (ListRulesResult, error) {
	rules, err := s.newStore(nil).Load(ctx)
	if err != nil {
		return ListRulesResult{}, fmt.Errorf("load rules: %w", err)
	}

	result := ListRulesResult{Rules: []RuleSummary{}}

	if params.Filter != "" {
		f, err := expr.NewRuleFilter(params.Filter)
		if err == nil {
			rules, err = f.Filter(rules)
		}

		if err != nil {
			result.Error = err.Error()
			result.Message = "INVALID INPUT ERROR: the filter is not a valid boolean CEL expression."

			return result, nil
		}
	}

	for _, b := range rules {
		result.Rules = append(result.Rules, summarize(b))
	}

	slices.SortFunc(result.Rules, func(a, b RuleSummary) int {
		return strings.Compare(a.Name, b.Name)
	})

	result.Count = len(result.Rules)
	result.Message = fmt.Sprintf("Found %d rules.", result.Count)

	return result, nil
}

// GetRule returns one rule with its script. The author, if set, is used to
// verify an encrypted rule.
func (s *Server) GetRule(ctx context.Context, params GetRuleParams) (GetRuleResult, error) {
	var keyring *rule.MemoryKeyring
	if params.Author != "" {
		keyring = rule.NewMemoryKeyring()
		keyring.SetAuthor(params.Name, params.Author)
	}

	b, err := s.newStore(keyring).Get(ctx, params.Name)
	if errors.Is(err, rule.ErrNotFound) {
		return GetRuleResult{
			Message: fmt.Sprintf(
				"INVALID INPUT ERROR: Rule %q not found. Use an EXACT name from the list_rules tool.", params.Name),
		}, nil
	}
	if err != nil {
		return GetRuleResult{}, fmt.Errorf("get rule: %w", err)
	}

	d := policy.Decide(b.Status)

	return GetRuleResult{
		Found:   true,
		Message: fmt.Sprintf("Found rule %q. Status: %s.", b.Name, b.Status),
		Rule: &RuleDetails{
			RuleSummary:   summarize(b),
			Script:        truncateString(b.Script, scriptPreviewLen),
			StatusMessage: b.StatusMessage,
			Reason:        d.Reason.String(),
		},
	}, nil
}

// VerifyRules summarizes the security status of every rule.
func (s *Server) VerifyRules(ctx context.Context, _ VerifyRulesParams) (VerifyRulesResult, error) {
	sum, err := s.newStore(nil).Summary(ctx)
	if err != nil {
		return VerifyRulesResult{}, fmt.Errorf("summarize rules: %w", err)
	}

	result := VerifyRulesResult{
		Total:   sum.Total,
		Counts:  map[string]int{},
		Blocked: []BlockedRule{},
	}

	for _, st := range status.All {
		result.Counts[st.String()] = sum.Counts[st]
	}

	for _, b := range sum.Blocked {
		result.Blocked = append(result.Blocked, BlockedRule{
			Name:    b.Name,
			Status:  b.Status.String(),
			Reason:  b.Reason.String(),
			Message: b.Message,
		})
	}

	result.Message = fmt.Sprintf("%d rules, %d verified, %d blocked.", sum.Total, sum.Secure(), len(sum.Blocked))

	return result, nil
}

func summarize(b *rule.Bundle) RuleSummary {
	return RuleSummary{
		Name:        b.Name,
		Version:     b.Version,
		Author:      b.Author,
		Description: b.Description,
		Status:      b.Status.String(),
		Encrypted:   b.Encrypted,
		Allowed:     policy.Allow(b.Status),
	}
}
