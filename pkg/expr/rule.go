package expr

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/pity-fox/cleantools/pkg/policy"
	"github.com/pity-fox/cleantools/pkg/rule"
	"github.com/pity-fox/cleantools/pkg/script"
)

// ErrNotBool is returned when a rule expression does not evaluate to a bool.
var ErrNotBool = errors.New("expression must evaluate to a bool")

// RuleFilter selects rules with a CEL expression.
type RuleFilter struct {
	program    cel.Program
	expression string
}

// NewRuleEnvironment creates an [Environment] declaring the rule variables.
func NewRuleEnvironment() (*Environment, error) {
	return NewEnvironment(
		cel.Variable("name", cel.StringType),
		cel.Variable("version", cel.StringType),
		cel.Variable("author", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("encrypted", cel.BoolType),
		cel.Variable("allowed", cel.BoolType),
		cel.Variable("targets", cel.ListType(cel.StringType)),
		cel.Variable("commands", cel.ListType(cel.StringType)),
	)
}

// NewRuleFilter compiles expression into a [RuleFilter].
func NewRuleFilter(expression string) (*RuleFilter, error) {
	env, err := NewRuleEnvironment()
	if err != nil {
		return nil, err
	}

	program, err := env.Compile(expression)
	if err != nil {
		return nil, err
	}

	return &RuleFilter{program: program, expression: expression}, nil
}

// Match evaluates the filter against b.
func (f *RuleFilter) Match(b *rule.Bundle) (bool, error) {
	out, _, err := f.program.Eval(Activation(b))
	if err != nil {
		return false, fmt.Errorf("evaluate %q on rule %q: %w", f.expression, b.Name, err)
	}

	match, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %s", ErrNotBool, f.expression, out.Type().TypeName())
	}

	return match, nil
}

// Filter returns the rules matching f.
func (f *RuleFilter) Filter(rules map[string]*rule.Bundle) (map[string]*rule.Bundle, error) {
	out := make(map[string]*rule.Bundle, len(rules))

	for name, b := range rules {
		ok, err := f.Match(b)
		if err != nil {
			return nil, err
		}

		if ok {
			out[name] = b
		}
	}

	return out, nil
}

// Activation returns the variables of b.
func Activation(b *rule.Bundle) map[string]any {
	targets := []string{}
	commands := []string{}

	for _, ins := range script.Parse(b.Script) {
		switch ins.Op {
		case script.OpClean:
			targets = append(targets, ins.Arg)
		case script.OpSystem:
			commands = append(commands, ins.Arg)
		}
	}

	return map[string]any{
		"name":        b.Name,
		"version":     b.Version,
		"author":      b.Author,
		"description": b.Description,
		"status":      b.Status.String(),
		"encrypted":   b.Encrypted,
		"allowed":     policy.Allow(b.Status),
		"targets":     targets,
		"commands":    commands,
	}
}
