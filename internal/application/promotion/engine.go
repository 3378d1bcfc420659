// Package promotion keeps the excellence record of a nominee in line with
// the regular nominations it received. Recompute runs inside the caller's
// transaction, right after the ledger write that triggered it.
package promotion

import (
	"context"
	"errors"
	"time"

	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/recognition"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/domain/value"
)

// Outcome describes what Recompute did.
type Outcome struct {
	Plan   recognition.Plan
	Record *nomination.Nomination // excellence record after the change, nil if none
	Events []shared.Event
}

// Engine applies recognition plans.
type Engine struct {
	rules recognition.Rules
}

// NewEngine validates rules and returns an Engine.
func NewEngine(rules recognition.Rules) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Engine{rules: rules}, nil
}

// Rules returns the tier configuration.
func (e *Engine) Rules() recognition.Rules {
	return e.rules
}

// IsExcellenceName reports whether name collides with the reserved value.
func (e *Engine) IsExcellenceName(name string) bool {
	return value.NameKey(name) == value.NameKey(e.rules.ExcellenceName)
}

// Recompute reconciles the excellence record of (cycleID, nomineeID) as of
// now. The caller must hold the nominee lock of tx.
func (e *Engine) Recompute(ctx context.Context, tx uow.Tx, cycleID, nomineeID string, now time.Time) (Outcome, error) {
	noms := tx.Nominations()

	regular, err := noms.ListForNominee(ctx, cycleID, nomineeID)
	if err != nil {
		return Outcome{}, err
	}
	existing, err := noms.GetDerived(ctx, cycleID, nomineeID)
	if err != nil && !errors.Is(err, shared.ErrNominationNotFound) {
		return Outcome{}, err
	}
	if err != nil {
		existing = nil
	}

	labels, err := e.labels(ctx, tx, regular)
	if err != nil {
		return Outcome{}, err
	}

	plan := recognition.Evaluate(e.rules, regular, existing, labels)
	out := Outcome{Plan: plan, Record: existing}

	switch plan.Action {
	case recognition.ActionGrant:
		record, err := e.grant(ctx, tx, cycleID, nomineeID, plan, now)
		if err != nil {
			return Outcome{}, err
		}
		out.Record = record
		out.Events = append(out.Events, shared.NewTierChangedEvent(
			shared.EventExcellenceGranted, nomineeID, cycleID, record.ID, plan.Count, plan.ContributorIDs()))

	case recognition.ActionRefresh:
		existing.Comment = plan.Comment
		existing.UpdatedAt = now
		if err := noms.Update(ctx, existing); err != nil {
			return Outcome{}, err
		}
		out.Events = append(out.Events, shared.NewTierChangedEvent(
			shared.EventExcellenceRefreshed, nomineeID, cycleID, existing.ID, plan.Count, plan.ContributorIDs()))

	case recognition.ActionRevoke:
		if err := noms.Delete(ctx, existing.ID); err != nil {
			return Outcome{}, err
		}
		out.Record = nil
		out.Events = append(out.Events, shared.NewTierChangedEvent(
			shared.EventExcellenceRevoked, nomineeID, cycleID, existing.ID, plan.Count, nil))
	}

	if plan.Changed() {
		if err := noms.SetCounted(ctx, cycleID, nomineeID, plan.ContributorIDs()); err != nil {
			return Outcome{}, err
		}
	}
	return out, nil
}

func (e *Engine) grant(ctx context.Context, tx uow.Tx, cycleID, nomineeID string, plan recognition.Plan, now time.Time) (*nomination.Nomination, error) {
	excellence, err := e.excellenceValue(ctx, tx, cycleID, now)
	if err != nil {
		return nil, err
	}
	nominee, err := tx.Subjects().Lookup(ctx, cycleID, nomineeID)
	if err != nil {
		return nil, err
	}
	record := nomination.NewDerived(cycleID, nomineeID, excellence.ID, plan.Comment, nomination.KindOf(nominee), now)
	if err := tx.Nominations().Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// excellenceValue finds the cycle's reserved value, creating it on first use.
func (e *Engine) excellenceValue(ctx context.Context, tx uow.Tx, cycleID string, now time.Time) (*value.Value, error) {
	v, err := tx.Values().FindByName(ctx, cycleID, e.rules.ExcellenceName)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, shared.ErrValueNotFound) {
		return nil, err
	}
	v, err = value.NewReserved(cycleID, e.rules.ExcellenceName, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Values().Create(ctx, v); err != nil {
		if errors.Is(err, shared.ErrValueAlreadyExists) {
			// another writer created it in a concurrent transaction
			return nil, shared.WrapError("promotion", "Recompute", shared.ErrConcurrentModification, "excellence value created concurrently", err)
		}
		return nil, err
	}
	return v, nil
}

func (e *Engine) labels(ctx context.Context, tx uow.Tx, regular []*nomination.Nomination) (recognition.Labels, error) {
	labels := recognition.Labels{
		Subjects: make(map[string]string),
		Values:   make(map[string]string),
	}
	for _, n := range regular {
		if _, ok := labels.Subjects[n.NominatorID]; !ok {
			s, err := tx.Subjects().Lookup(ctx, n.CycleID, n.NominatorID)
			switch {
			case err == nil:
				labels.Subjects[n.NominatorID] = s.DisplayName
			case errors.Is(err, shared.ErrSubjectNotFound):
				labels.Subjects[n.NominatorID] = ""
			default:
				return labels, err
			}
		}
		if _, ok := labels.Values[n.ValueID]; !ok {
			v, err := tx.Values().GetByID(ctx, n.ValueID)
			switch {
			case err == nil:
				labels.Values[n.ValueID] = v.Name
			case errors.Is(err, shared.ErrValueNotFound):
				labels.Values[n.ValueID] = ""
			default:
				return labels, err
			}
		}
	}
	return labels, nil
}
