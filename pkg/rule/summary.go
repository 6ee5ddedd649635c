package rule

import (
	"context"
	"slices"
	"strings"

	"github.com/pity-fox/cleantools/pkg/policy"
	"github.com/pity-fox/cleantools/pkg/status"
)

// Blocked is a rule that the execution gate refuses.
type Blocked struct {
	Name    string
	Message string
	Status  status.Status
	Reason  policy.Reason
}

// Summary is the security overview of a store.
type Summary struct {
	Counts  map[status.Status]int
	Blocked []Blocked
	Total   int
}

// Summary loads every rule and summarizes their security status.
func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	rules, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	return Summarize(rules), nil
}

// Summarize builds a [Summary] from loaded rules. Blocked rules are sorted
// by name.
func Summarize(rules map[string]*Bundle) *Summary {
	sum := &Summary{
		Total:  len(rules),
		Counts: map[status.Status]int{},
	}

	for _, b := range rules {
		sum.Counts[b.Status]++

		d := policy.Decide(b.Status)
		if d.Allowed {
			continue
		}

		sum.Blocked = append(sum.Blocked, Blocked{
			Name:    b.Name,
			Status:  b.Status,
			Reason:  d.Reason,
			Message: b.StatusMessage,
		})
	}

	slices.SortFunc(sum.Blocked, func(a, b Blocked) int {
		return strings.Compare(a.Name, b.Name)
	})

	return sum
}

// Secure returns the number of encrypted rules that verified.
func (s *Summary) Secure() int {
	return s.Counts[status.Valid]
}
