// Package recognition decides the excellence tier of a nominee from the
// regular nominations it received. It is pure: callers load the ledger,
// ask for a Plan and apply it inside their transaction.
package recognition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
)

// Policy selects which nominations contribute once the threshold is met.
type Policy string

const (
	// PolicyFirstN freezes the first Threshold nominations by insertion
	// order as contributors. Later ones do not change the record.
	PolicyFirstN Policy = "first_n"
	// PolicyAll counts every regular nomination of the nominee.
	PolicyAll Policy = "all"
)

// IsValid checks the policy name.
func (p Policy) IsValid() bool {
	return p == PolicyFirstN || p == PolicyAll
}

// Rules configure the tier.
type Rules struct {
	Threshold      int
	ExcellenceName string
	Policy         Policy
}

// DefaultRules returns the school's standing configuration.
func DefaultRules() Rules {
	return Rules{
		Threshold:      3,
		ExcellenceName: "Excelencia",
		Policy:         PolicyFirstN,
	}
}

// Validate checks the rules.
func (r Rules) Validate() error {
	if r.Threshold < 1 {
		return shared.NewDomainError("recognition", "Validate", shared.ErrInvalidInput, "threshold must be at least 1")
	}
	if strings.TrimSpace(r.ExcellenceName) == "" {
		return shared.NewDomainError("recognition", "Validate", shared.ErrEmptyValue, "excellence value name is required")
	}
	if !r.Policy.IsValid() {
		return shared.NewDomainError("recognition", "Validate", shared.ErrInvalidInput, fmt.Sprintf("unknown policy %q", r.Policy))
	}
	return nil
}

// Action is what the caller must do with the excellence record.
type Action string

const (
	ActionNone    Action = "none"
	ActionGrant   Action = "grant"
	ActionRefresh Action = "refresh"
	ActionRevoke  Action = "revoke"
)

// Labels resolves display names for the composed comment. Missing entries
// fall back to the raw ID.
type Labels struct {
	Subjects map[string]string
	Values   map[string]string
}

func (l Labels) subject(id string) string {
	if name, ok := l.Subjects[id]; ok && name != "" {
		return name
	}
	return id
}

func (l Labels) value(id string) string {
	if name, ok := l.Values[id]; ok && name != "" {
		return name
	}
	return id
}

// Plan is the outcome of Evaluate.
type Plan struct {
	Action       Action
	Count        int
	Contributors []*nomination.Nomination
	Comment      string
	// SyncCounted is true when some counted flag disagrees with the
	// contributor set, even if the record itself is unchanged.
	SyncCounted bool
}

// ContributorIDs returns the IDs of the contributing nominations.
func (p Plan) ContributorIDs() []string {
	ids := make([]string, 0, len(p.Contributors))
	for _, n := range p.Contributors {
		ids = append(ids, n.ID)
	}
	return ids
}

// Changed reports whether applying the plan mutates anything.
func (p Plan) Changed() bool {
	return p.Action != ActionNone || p.SyncCounted
}

// Evaluate computes the plan for one (nominee, cycle). regular holds the
// nominee's non-derived nominations; existing is the current excellence
// record or nil.
func Evaluate(rules Rules, regular []*nomination.Nomination, existing *nomination.Nomination, labels Labels) Plan {
	ordered := InsertionOrder(regular)
	plan := Plan{Count: len(ordered)}

	if plan.Count < rules.Threshold {
		if existing != nil {
			plan.Action = ActionRevoke
		} else {
			plan.Action = ActionNone
		}
		plan.SyncCounted = countedDrift(ordered, nil)
		return plan
	}

	switch rules.Policy {
	case PolicyAll:
		plan.Contributors = ordered
	default:
		plan.Contributors = ordered[:rules.Threshold]
	}
	plan.Comment = Compose(plan.Contributors, labels)

	switch {
	case existing == nil:
		plan.Action = ActionGrant
	case existing.Comment != plan.Comment:
		plan.Action = ActionRefresh
	default:
		plan.Action = ActionNone
	}
	plan.SyncCounted = countedDrift(ordered, plan.Contributors)
	return plan
}

// InsertionOrder returns a copy of ns sorted by Seq, then CreatedAt, then ID.
func InsertionOrder(ns []*nomination.Nomination) []*nomination.Nomination {
	out := make([]*nomination.Nomination, 0, len(ns))
	for _, n := range ns {
		if !n.Derived {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// Compose builds the excellence comment: one line per nominator, in order
// of their first contribution, listing "Value - comment" pairs.
//
//	Maestra M: Respeto - ayuda a todos
//	Maestro N: Colaboración - trabaja en equipo
func Compose(contributors []*nomination.Nomination, labels Labels) string {
	var order []string
	grouped := make(map[string][]string)
	for _, n := range contributors {
		if _, seen := grouped[n.NominatorID]; !seen {
			order = append(order, n.NominatorID)
		}
		part := labels.value(n.ValueID)
		if c := strings.TrimSpace(n.Comment); c != "" {
			part += " - " + c
		}
		grouped[n.NominatorID] = append(grouped[n.NominatorID], part)
	}

	lines := make([]string, 0, len(order))
	for _, id := range order {
		lines = append(lines, labels.subject(id)+": "+strings.Join(grouped[id], "; "))
	}
	return strings.Join(lines, "\n")
}

func countedDrift(ordered, contributors []*nomination.Nomination) bool {
	want := make(map[string]bool, len(contributors))
	for _, n := range contributors {
		want[n.ID] = true
	}
	for _, n := range ordered {
		if n.Counted != want[n.ID] {
			return true
		}
	}
	return false
}
