// Package reconcile keeps optimistic mutations alive across refreshes.
//
// A store records each optimistic mutation in a Journal before calling the
// remote side, marks the journal when a refresh starts, and passes the
// refresh snapshot through Replay before installing it. Replay re-applies
// every mutation the snapshot may not reflect yet: those still in flight and
// those confirmed after the refresh started. Snapshots from a refresh that
// started before the last installed one are reported stale.
//
// A Journal is not safe for concurrent use; the owning store guards it with
// the same lock that guards its state.
package reconcile

// Apply transforms a snapshot. It must be idempotent, since the same
// mutation may be applied over a snapshot that already contains it.
type Apply[S any] func(S) S

type entry[S any] struct {
	apply       Apply[S]
	confirmed   bool
	confirmedAt uint64
}

type Journal[S any] struct {
	seq     uint64
	applied uint64
	ops     map[uint64]*entry[S]
	order   []uint64
}

func NewJournal[S any]() *Journal[S] {
	return &Journal[S]{ops: make(map[uint64]*entry[S])}
}

// Begin records an in-flight mutation and returns its id.
func (j *Journal[S]) Begin(apply Apply[S]) uint64 {
	j.seq++
	id := j.seq
	j.ops[id] = &entry[S]{apply: apply}
	j.order = append(j.order, id)
	return id
}

// Confirm marks a mutation as accepted by the remote side.
func (j *Journal[S]) Confirm(id uint64) {
	e, ok := j.ops[id]
	if !ok {
		return
	}
	j.seq++
	e.confirmed = true
	e.confirmedAt = j.seq
}

// Abort forgets a mutation the remote side rejected.
func (j *Journal[S]) Abort(id uint64) {
	if _, ok := j.ops[id]; !ok {
		return
	}
	delete(j.ops, id)
	j.compact()
}

// Mark returns the sequence a refresh started at.
func (j *Journal[S]) Mark() uint64 {
	j.seq++
	return j.seq
}

// Replay re-applies the mutations base may be missing. ok is false when a
// newer refresh has already been installed; the caller drops base.
func (j *Journal[S]) Replay(base S, since uint64) (out S, ok bool) {
	if since < j.applied {
		return base, false
	}
	j.applied = since

	out = base
	for _, id := range j.order {
		e := j.ops[id]
		if e.confirmed && e.confirmedAt < since {
			delete(j.ops, id)
			continue
		}
		out = e.apply(out)
	}
	j.compact()
	return out, true
}

// Rebuild applies every tracked mutation over base without touching the
// refresh marker. Stores call it after Abort with the last installed server
// snapshot, so a failed mutation drops out while rows the server confirmed
// in the meantime stay.
func (j *Journal[S]) Rebuild(base S) S {
	out := base
	for _, id := range j.order {
		out = j.ops[id].apply(out)
	}
	return out
}

// Pending counts mutations still tracked.
func (j *Journal[S]) Pending() int {
	return len(j.ops)
}

func (j *Journal[S]) Reset() {
	j.ops = make(map[uint64]*entry[S])
	j.order = nil
}

func (j *Journal[S]) compact() {
	kept := j.order[:0]
	for _, id := range j.order {
		if _, ok := j.ops[id]; ok {
			kept = append(kept, id)
		}
	}
	j.order = kept
}
