package storagesync

import (
	"context"
	"fmt"

	"storage-sync/internal/identity"
	"storage-sync/internal/logger"
	"storage-sync/internal/record"
)

// Reconciler runs the per-kind processors over one remote set.
type Reconciler struct {
	local    Snapshot
	keys     record.KeyGenerator
	accounts RecordProcessor[*record.Account]
	contacts RecordProcessor[*record.Contact]
	groupsV1 RecordProcessor[*record.GroupV1]
	groupsV2 RecordProcessor[*record.GroupV2]
}

// NewReconciler wires the processors for every known kind against local.
func NewReconciler(local Snapshot, keys record.KeyGenerator) *Reconciler {
	return &Reconciler{
		local:    local,
		keys:     keys,
		accounts: NewAccountProcessor(local, keys),
		contacts: NewContactProcessor(local, keys),
		groupsV1: NewGroupV1Processor(local, keys),
		groupsV2: NewGroupV2Processor(local, keys),
	}
}

// Reconcile computes the plan for remote. It has no side effects; the local
// store is only touched by Apply.
//
// Kinds are handled in a fixed order (account, contact, group v1, group v2)
// and records within a kind in remote order. Unknown records follow verbatim,
// then local records the remote set lost track of. Account records are
// carried verbatim too while no local account is registered.
func (r *Reconciler) Reconcile(remote []record.Record) *Plan {
	b := newPlanBuilder()
	b.plan.Stats.Remote = len(remote)

	var (
		accounts []*record.Account
		contacts []*record.Contact
		groupsV1 []*record.GroupV1
		groupsV2 []*record.GroupV2
		unknown  []*record.Unknown
	)

	for _, rec := range remote {
		if rec == nil {
			continue
		}
		if !b.seeRemote(rec.StorageID()) {
			logger.Warn().
				Str("storage_id", rec.StorageID().String()).
				Str("kind", rec.Kind().String()).
				Msg("remote set repeats a storage id, dropping the repeat")
			b.plan.Stats.Duplicates++
			continue
		}

		switch v := rec.(type) {
		case *record.Account:
			accounts = append(accounts, v)
		case *record.Contact:
			contacts = append(contacts, v)
		case *record.GroupV1:
			groupsV1 = append(groupsV1, v)
		case *record.GroupV2:
			groupsV2 = append(groupsV2, v)
		case *record.Unknown:
			unknown = append(unknown, v)
		}
	}

	if _, ok := r.local.Self(); ok {
		reconcileKind(b, r.accounts, accounts)
	} else {
		for _, a := range accounts {
			logger.Warn().
				Str("storage_id", a.ID.String()).
				Msg("account record received but no local account is registered, carrying it unchanged")
			if b.emit(a) {
				b.plan.Stats.Carried++
			}
		}
	}
	reconcileKind(b, r.contacts, contacts)
	reconcileKind(b, r.groupsV1, groupsV1)
	reconcileKind(b, r.groupsV2, groupsV2)

	for _, u := range unknown {
		if b.emit(u) {
			b.plan.Stats.Unknown++
		}
	}

	for _, entry := range r.local.Entries() {
		id := entry.Record.StorageID()
		if id.IsZero() || b.isRemote(id) {
			continue
		}
		if _, ok := b.claimed[entry.RecipientID]; ok {
			continue
		}
		if b.emit(entry.Record) {
			b.plan.Stats.LocalOnly++
		}
	}

	plan := b.finish()

	logger.Debug().
		Int("remote", plan.Stats.Remote).
		Int("invalid", plan.Stats.Invalid).
		Int("duplicates", plan.Stats.Duplicates).
		Int("inserted", plan.Stats.Inserted).
		Int("updated", plan.Stats.Updated).
		Int("synthesized", plan.Stats.Synthesized).
		Int("released", plan.Stats.Released).
		Int("carried", plan.Stats.Carried).
		Int("outgoing_inserts", len(plan.Inserts)).
		Int("outgoing_deletes", len(plan.Deletes)).
		Msg("reconciliation plan computed")

	return plan
}

// claim tracks the running merge result for one local recipient.
type claim[R syncable[R]] struct {
	match   Match[R]
	current R
}

func reconcileKind[R syncable[R]](b *planBuilder, p RecordProcessor[R], remotes []R) {
	valid := make([]R, 0, len(remotes))
	for _, rec := range remotes {
		if p.IsInvalid(rec) {
			b.plan.Stats.Invalid++
			continue
		}
		valid = append(valid, rec)
	}

	claims := make(map[identity.RecipientID]*claim[R])
	var order []identity.RecipientID

	for _, rec := range dedupe(b, p, valid) {
		match, ok := p.FindLocalMatch(rec)
		if !ok {
			b.emit(rec)
			b.plan.Writes = append(b.plan.Writes, LocalWrite{Op: WriteInsert, New: rec})
			b.plan.Stats.Inserted++
			continue
		}

		c, seen := claims[match.RecipientID]
		if !seen {
			c = &claim[R]{match: match, current: match.Record}
			claims[match.RecipientID] = c
			order = append(order, match.RecipientID)
			b.claimed[match.RecipientID] = struct{}{}
		} else {
			logger.Debug().
				Str("recipient_id", match.RecipientID.String()).
				Str("storage_id", rec.StorageID().String()).
				Msg("second remote record resolved to the same recipient, merging")
		}
		c.current = p.Merge(rec, c.current)
	}

	released := make(map[identity.RecipientID]struct{})
	if rel, ok := p.(identityReleaser[R]); ok {
		var displaced []identity.RecipientID
		for _, rid := range order {
			taker := claims[rid].current
			for _, holder := range rel.Displaced(rid, taker) {
				c, seen := claims[holder.RecipientID]
				if !seen {
					c = &claim[R]{match: holder, current: holder.Record}
					claims[holder.RecipientID] = c
					displaced = append(displaced, holder.RecipientID)
					b.claimed[holder.RecipientID] = struct{}{}
				}
				c.current = rel.Release(c.current, taker)
				released[holder.RecipientID] = struct{}{}
				b.plan.Stats.Released++
				logger.Warn().
					Str("kind", taker.Kind().String()).
					Str("recipient_id", holder.RecipientID.String()).
					Str("taken_by", rid.String()).
					Msg("identity attribute moved to another recipient, releasing it")
			}
		}
		order = append(order, displaced...)
	}

	// Releases are written first so no two local rows hold the same
	// attribute at any point of the apply.
	var releases, updates []LocalWrite
	for _, rid := range order {
		c := claims[rid]
		local := c.match.Record
		final := c.current
		if !final.StorageID().IsZero() {
			b.emit(final)
			if !b.isRemote(final.StorageID()) && final.StorageID() != local.StorageID() {
				b.plan.Stats.Synthesized++
			}
		}

		switch {
		case !final.ContentEqual(local):
			write := LocalWrite{
				Op:          WriteUpdate,
				RecipientID: rid,
				Old:         local,
				New:         final,
			}
			if _, ok := released[rid]; ok {
				releases = append(releases, write)
			} else {
				updates = append(updates, write)
			}
			b.plan.Stats.Updated++
		case final.StorageID() != c.match.PersistedID:
			b.plan.Assignments = append(b.plan.Assignments, Assignment{
				RecipientID: rid,
				StorageID:   final.StorageID(),
			})
			b.plan.Stats.Assigned++
		default:
			b.plan.Stats.Unchanged++
		}
	}
	b.plan.Writes = append(b.plan.Writes, releases...)
	b.plan.Writes = append(b.plan.Writes, updates...)
}

// dedupe collapses remote records that name the same identity. The earlier
// record is the merge base, so among equal-content duplicates the later id
// survives.
func dedupe[R syncable[R]](b *planBuilder, p RecordProcessor[R], remotes []R) []R {
	out := make([]R, 0, len(remotes))
	for _, rec := range remotes {
		collapsed := false
		for i := range out {
			if p.Compare(rec, out[i]) == SameIdentity {
				logger.Debug().
					Str("kind", rec.Kind().String()).
					Str("storage_id", rec.StorageID().String()).
					Str("kept_storage_id", out[i].StorageID().String()).
					Msg("duplicate remote record, merging into earlier record")
				out[i] = p.Merge(rec, out[i])
				b.plan.Stats.Duplicates++
				collapsed = true
				break
			}
		}
		if !collapsed {
			out = append(out, rec)
		}
	}
	return out
}

// Apply performs the plan's local writes and storage id assignments through
// w. The caller must run it inside one transaction; the first error aborts.
func (r *Reconciler) Apply(ctx context.Context, w Writer, plan *Plan) error {
	for i, write := range plan.Writes {
		var err error
		switch write.New.(type) {
		case *record.Account:
			err = applyWrite(ctx, w, r.accounts, write)
		case *record.Contact:
			err = applyWrite(ctx, w, r.contacts, write)
		case *record.GroupV1:
			err = applyWrite(ctx, w, r.groupsV1, write)
		case *record.GroupV2:
			err = applyWrite(ctx, w, r.groupsV2, write)
		default:
			err = fmt.Errorf("unsupported record type %T", write.New)
		}
		if err != nil {
			return fmt.Errorf("apply %s write %d: %w", write.Op, i, err)
		}
	}

	for _, a := range plan.Assignments {
		if err := w.SetStorageID(ctx, a.RecipientID, a.StorageID); err != nil {
			return fmt.Errorf("assign storage id to recipient %s: %w", a.RecipientID, err)
		}
	}
	return nil
}

func applyWrite[R syncable[R]](ctx context.Context, w Writer, p RecordProcessor[R], write LocalWrite) error {
	updated, ok := write.New.(R)
	if !ok {
		return fmt.Errorf("unexpected record type %T", write.New)
	}
	if write.Op == WriteInsert {
		return p.ApplyInsert(ctx, w, updated)
	}

	old, ok := write.Old.(R)
	if !ok {
		return fmt.Errorf("unexpected previous record type %T", write.Old)
	}
	return p.ApplyUpdate(ctx, w, write.RecipientID, old, updated)
}
