package memory

import (
	"context"
	"sort"
	"time"

	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/subject"
	"github.com/valores-hub/nominations/internal/domain/value"
)

// ══════════════════════════════════════════════════════════════════════════════
// CYCLES
// ══════════════════════════════════════════════════════════════════════════════

type cycleRepo struct{ tx *transaction }

func (r cycleRepo) Create(_ context.Context, c *cycle.Cycle) error {
	for _, existing := range r.tx.state.cycles {
		if existing.Name == c.Name {
			return shared.ErrCycleAlreadyExists
		}
	}
	if c.Active {
		for _, existing := range r.tx.state.cycles {
			if existing.Active {
				return shared.ErrConcurrentModification
			}
		}
	}
	r.tx.state.cycles[c.ID] = *c
	return nil
}

func (r cycleRepo) GetByID(_ context.Context, id string) (*cycle.Cycle, error) {
	c, ok := r.tx.state.cycles[id]
	if !ok {
		return nil, shared.ErrCycleNotFound
	}
	return &c, nil
}

func (r cycleRepo) GetActive(_ context.Context) (*cycle.Cycle, error) {
	for _, c := range r.tx.state.cycles {
		if c.Active {
			c := c
			return &c, nil
		}
	}
	return nil, shared.ErrCycleNotActive
}

func (r cycleRepo) Activate(_ context.Context, id string) error {
	if _, ok := r.tx.state.cycles[id]; !ok {
		return shared.ErrCycleNotFound
	}
	for k, c := range r.tx.state.cycles {
		c.Active = k == id
		r.tx.state.cycles[k] = c
	}
	return nil
}

func (r cycleRepo) List(_ context.Context) ([]*cycle.Cycle, error) {
	out := make([]*cycle.Cycle, 0, len(r.tx.state.cycles))
	for _, c := range r.tx.state.cycles {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VALUES
// ══════════════════════════════════════════════════════════════════════════════

type valueRepo struct{ tx *transaction }

func (r valueRepo) Create(_ context.Context, v *value.Value) error {
	for _, existing := range r.tx.state.values {
		if existing.CycleID == v.CycleID && existing.Key() == v.Key() {
			return shared.ErrValueAlreadyExists
		}
	}
	r.tx.state.values[v.ID] = *v
	return nil
}

func (r valueRepo) GetByID(_ context.Context, id string) (*value.Value, error) {
	v, ok := r.tx.state.values[id]
	if !ok {
		return nil, shared.ErrValueNotFound
	}
	return &v, nil
}

func (r valueRepo) FindByName(_ context.Context, cycleID, name string) (*value.Value, error) {
	key := value.NameKey(name)
	for _, v := range r.tx.state.values {
		if v.CycleID == cycleID && v.Key() == key {
			v := v
			return &v, nil
		}
	}
	return nil, shared.ErrValueNotFound
}

func (r valueRepo) ListByCycle(_ context.Context, cycleID string, includeInactive bool) ([]*value.Value, error) {
	var out []*value.Value
	for _, v := range r.tx.state.values {
		if v.CycleID != cycleID || (!includeInactive && !v.Active) {
			continue
		}
		v := v
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r valueRepo) SetActive(_ context.Context, id string, active bool) error {
	v, ok := r.tx.state.values[id]
	if !ok {
		return shared.ErrValueNotFound
	}
	v.Active = active
	r.tx.state.values[id] = v
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECTS
// ══════════════════════════════════════════════════════════════════════════════

type subjectRepo struct{ tx *transaction }

func (r subjectRepo) Lookup(_ context.Context, cycleID, id string) (*subject.Subject, error) {
	s, ok := r.tx.state.subjects[subjectKey{cycleID: cycleID, id: id}]
	if !ok {
		return nil, shared.ErrSubjectNotFound
	}
	return &s, nil
}

func (r subjectRepo) Upsert(_ context.Context, s *subject.Subject) error {
	r.tx.state.subjects[subjectKey{cycleID: s.CycleID, id: s.ID}] = *s
	return nil
}

func (r subjectRepo) ListByCycle(_ context.Context, cycleID string, kind subject.Kind) ([]*subject.Subject, error) {
	var out []*subject.Subject
	for _, s := range r.tx.state.subjects {
		if s.CycleID != cycleID || (kind != "" && s.Kind != kind) {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

type eventRepo struct{ tx *transaction }

func (r eventRepo) Create(_ context.Context, e *calendar.Event) error {
	if !e.CloseAt.Before(e.OccursAt) {
		return shared.ErrEventBoundaryInvalid
	}
	r.tx.state.events[e.ID] = *e
	return nil
}

func (r eventRepo) GetByID(_ context.Context, id string) (*calendar.Event, error) {
	e, ok := r.tx.state.events[id]
	if !ok {
		return nil, shared.ErrEventNotFound
	}
	return &e, nil
}

func (r eventRepo) ListActive(_ context.Context, cycleID string) ([]*calendar.Event, error) {
	return r.list(cycleID, true), nil
}

func (r eventRepo) ListByCycle(_ context.Context, cycleID string) ([]*calendar.Event, error) {
	return r.list(cycleID, false), nil
}

func (r eventRepo) Update(_ context.Context, e *calendar.Event) error {
	existing, ok := r.tx.state.events[e.ID]
	if !ok {
		return shared.ErrEventNotFound
	}
	existing.Active = e.Active
	existing.ClosedAt = e.ClosedAt
	r.tx.state.events[e.ID] = existing
	return nil
}

func (r eventRepo) CloseExpired(_ context.Context, now time.Time) ([]string, error) {
	var ids []string
	for id, e := range r.tx.state.events {
		if e.Active && e.IsExpired(now) {
			e.Close(now)
			r.tx.state.events[id] = e
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r eventRepo) list(cycleID string, onlyActive bool) []*calendar.Event {
	var out []*calendar.Event
	for _, e := range r.tx.state.events {
		if e.CycleID != cycleID || (onlyActive && !e.Active) {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OccursAt.Equal(out[j].OccursAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OccursAt.Before(out[j].OccursAt)
	})
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// NOMINATIONS
// ══════════════════════════════════════════════════════════════════════════════

type nominationRepo struct{ tx *transaction }

// Create enforces the same partial unique indexes as the SQL schema.
func (r nominationRepo) Create(_ context.Context, n *nomination.Nomination) error {
	for _, existing := range r.tx.state.nominations {
		if existing.CycleID != n.CycleID || existing.NomineeID != n.NomineeID || existing.Derived != n.Derived {
			continue
		}
		if n.Derived {
			return shared.ErrConcurrentModification
		}
		if existing.Key() == n.Key() {
			return shared.ErrDuplicateNomination
		}
	}
	r.tx.state.seq++
	n.Seq = r.tx.state.seq
	r.tx.state.nominations[n.ID] = *n
	return nil
}

func (r nominationRepo) GetByID(_ context.Context, id string) (*nomination.Nomination, error) {
	n, ok := r.tx.state.nominations[id]
	if !ok {
		return nil, shared.ErrNominationNotFound
	}
	return &n, nil
}

func (r nominationRepo) Update(_ context.Context, n *nomination.Nomination) error {
	existing, ok := r.tx.state.nominations[n.ID]
	if !ok {
		return shared.ErrNominationNotFound
	}
	if !existing.Derived {
		k := existing.Key()
		k.ValueID = n.ValueID
		for id, other := range r.tx.state.nominations {
			if id != n.ID && !other.Derived && other.Key() == k {
				return shared.ErrDuplicateNomination
			}
		}
	}
	existing.ValueID = n.ValueID
	existing.Comment = n.Comment
	existing.Counted = n.Counted
	existing.UpdatedAt = n.UpdatedAt
	r.tx.state.nominations[n.ID] = existing
	return nil
}

func (r nominationRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.tx.state.nominations[id]; !ok {
		return shared.ErrNominationNotFound
	}
	delete(r.tx.state.nominations, id)
	return nil
}

func (r nominationRepo) ExistsKey(_ context.Context, k nomination.Key, excludeID string) (bool, error) {
	for id, n := range r.tx.state.nominations {
		if id != excludeID && !n.Derived && n.Key() == k {
			return true, nil
		}
	}
	return false, nil
}

func (r nominationRepo) ListForNominee(_ context.Context, cycleID, nomineeID string) ([]*nomination.Nomination, error) {
	return r.filter(nomination.Filter{CycleID: cycleID, NomineeID: nomineeID}), nil
}

func (r nominationRepo) GetDerived(_ context.Context, cycleID, nomineeID string) (*nomination.Nomination, error) {
	for _, n := range r.tx.state.nominations {
		if n.Derived && n.CycleID == cycleID && n.NomineeID == nomineeID {
			n := n
			return &n, nil
		}
	}
	return nil, shared.ErrNominationNotFound
}

func (r nominationRepo) SetCounted(_ context.Context, cycleID, nomineeID string, ids []string) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for id, n := range r.tx.state.nominations {
		if n.Derived || n.CycleID != cycleID || n.NomineeID != nomineeID {
			continue
		}
		if n.Counted != want[id] {
			n.Counted = want[id]
			r.tx.state.nominations[id] = n
		}
	}
	return nil
}

func (r nominationRepo) List(_ context.Context, f nomination.Filter) ([]*nomination.Nomination, error) {
	out := r.filter(f)
	if f.Pagination.PageSize > 0 {
		start := f.Pagination.Offset()
		if start > len(out) {
			start = len(out)
		}
		end := start + f.Pagination.Limit()
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (r nominationRepo) filter(f nomination.Filter) []*nomination.Nomination {
	var out []*nomination.Nomination
	for _, n := range r.tx.state.nominations {
		switch {
		case n.CycleID != f.CycleID,
			f.NomineeID != "" && n.NomineeID != f.NomineeID,
			f.NominatorID != "" && n.NominatorID != f.NominatorID,
			f.ValueID != "" && n.ValueID != f.ValueID,
			f.EventID != "" && n.EventRef() != f.EventID,
			f.Kind != "" && n.Kind != f.Kind,
			f.OnlyDerived && !n.Derived,
			!f.OnlyDerived && !f.IncludeDerived && n.Derived:
			continue
		}
		n := n
		out = append(out, &n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
