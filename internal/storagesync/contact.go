package storagesync

import (
	"bytes"
	"context"

	"storage-sync/internal/identity"
	"storage-sync/internal/logger"
	"storage-sync/internal/record"
)

// ContactProcessor reconciles contact records.
type ContactProcessor struct {
	local Snapshot
	keys  record.KeyGenerator
}

// NewContactProcessor creates a contact processor over one pass snapshot.
func NewContactProcessor(local Snapshot, keys record.KeyGenerator) *ContactProcessor {
	return &ContactProcessor{local: local, keys: keys}
}

// IsInvalid drops contacts with no address and contacts naming the account
// owner, which must only ever appear as the account record.
func (p *ContactProcessor) IsInvalid(remote *record.Contact) bool {
	if remote.Address.IsEmpty() {
		logger.Warn().
			Str("storage_id", remote.ID.String()).
			Msg("contact record has no address, marking invalid")
		return true
	}

	if self, ok := p.local.Self(); ok && self.Address.SharesIdentity(remote.Address) {
		logger.Warn().
			Str("storage_id", remote.ID.String()).
			Msg("found a contact record for ourselves, marking invalid")
		return true
	}

	return false
}

// FindLocalMatch looks the contact up by service id, then by phone number.
func (p *ContactProcessor) FindLocalMatch(remote *record.Contact) (Match[*record.Contact], bool) {
	var rid identity.RecipientID
	var found bool

	if remote.Address.HasServiceID() {
		rid, found = p.local.RecipientByServiceID(remote.Address.ServiceID.UUID)
	}
	if !found && remote.Address.HasE164() {
		rid, found = p.local.RecipientByE164(remote.Address.E164)
	}
	if !found {
		return Match[*record.Contact]{}, false
	}

	entry, ok := p.local.Entry(rid)
	if !ok {
		return Match[*record.Contact]{}, false
	}
	local, ok := entry.Record.(*record.Contact)
	if !ok {
		return Match[*record.Contact]{}, false
	}

	match := Match[*record.Contact]{RecipientID: rid, Record: local, PersistedID: local.ID}
	if local.ID.IsZero() {
		logger.Info().
			Str("recipient_id", rid.String()).
			Msg("newly discovered recipient via storage service, assigning a storage id")
		addressable := *local
		addressable.ID = p.keys.Generate()
		match.Record = &addressable
	}
	return match, true
}

func (p *ContactProcessor) Merge(remote, local *record.Contact) *record.Contact {
	givenName, familyName := local.GivenName, local.FamilyName
	if remote.HasName() {
		givenName, familyName = remote.GivenName, remote.FamilyName
	}

	merged := &record.Contact{
		Address:           remote.Address.Union(local.Address),
		GivenName:         givenName,
		FamilyName:        familyName,
		ProfileKey:        record.OrBytes(remote.ProfileKey, local.ProfileKey),
		Username:          record.OrString(remote.Username, local.Username),
		IdentityState:     remote.IdentityState,
		IdentityKey:       record.OrBytes(remote.IdentityKey, local.IdentityKey),
		ConversationFlags: remote.ConversationFlags,
		UnknownFields:     remote.UnknownFields,
	}

	switch {
	case merged.ContentEqual(remote):
		return remote
	case merged.ContentEqual(local):
		return local
	default:
		merged.ID = p.keys.Generate()
		return merged
	}
}

func (p *ContactProcessor) Compare(a, b *record.Contact) Comparison {
	if a.Address.SharesIdentity(b.Address) {
		return SameIdentity
	}
	return DifferentIdentity
}

// Displaced finds the other local contacts that hold the service id or phone
// number of merged.
func (p *ContactProcessor) Displaced(owner identity.RecipientID, merged *record.Contact) []Match[*record.Contact] {
	var out []Match[*record.Contact]
	add := func(rid identity.RecipientID, found bool) {
		if !found || rid == owner {
			return
		}
		for _, m := range out {
			if m.RecipientID == rid {
				return
			}
		}
		entry, ok := p.local.Entry(rid)
		if !ok {
			return
		}
		if c, ok := entry.Record.(*record.Contact); ok {
			out = append(out, Match[*record.Contact]{RecipientID: rid, Record: c, PersistedID: c.ID})
		}
	}

	if merged.Address.HasServiceID() {
		add(p.local.RecipientByServiceID(merged.Address.ServiceID.UUID))
	}
	if merged.Address.HasE164() {
		add(p.local.RecipientByE164(merged.Address.E164))
	}
	return out
}

// Release gives up the identity attributes holder shares with taker. A
// contact left without an address leaves the outgoing set.
func (p *ContactProcessor) Release(holder, taker *record.Contact) *record.Contact {
	released := *holder
	released.Address = holder.Address.Without(taker.Address)
	if released.Address.IsEmpty() {
		released.ID = record.StorageID{}
	} else {
		released.ID = p.keys.Generate()
	}
	return &released
}

func (p *ContactProcessor) ApplyInsert(ctx context.Context, w Writer, remote *record.Contact) error {
	return w.InsertContact(ctx, remote)
}

func (p *ContactProcessor) ApplyUpdate(ctx context.Context, w Writer, id identity.RecipientID, old, updated *record.Contact) error {
	if len(old.IdentityKey) > 0 && !bytes.Equal(old.IdentityKey, updated.IdentityKey) {
		logger.Info().
			Str("recipient_id", id.String()).
			Msg("identity key changed via storage sync")
	}
	return w.UpdateContact(ctx, id, updated)
}
