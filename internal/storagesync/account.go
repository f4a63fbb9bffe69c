package storagesync

import (
	"context"
	"errors"

	"storage-sync/internal/identity"
	"storage-sync/internal/record"
)

var errAccountInsert = errors.New("account records can only update the local account")

// AccountProcessor reconciles the account owner's own record. Every account
// record names the same identity, so duplicates always collapse.
type AccountProcessor struct {
	local Snapshot
	keys  record.KeyGenerator
}

func NewAccountProcessor(local Snapshot, keys record.KeyGenerator) *AccountProcessor {
	return &AccountProcessor{local: local, keys: keys}
}

// IsInvalid never drops an account record. Without a local account the
// reconciler carries account records through unchanged instead.
func (p *AccountProcessor) IsInvalid(*record.Account) bool {
	return false
}

func (p *AccountProcessor) FindLocalMatch(remote *record.Account) (Match[*record.Account], bool) {
	self, ok := p.local.Self()
	if !ok {
		return Match[*record.Account]{}, false
	}

	local := self.Account
	if local == nil {
		local = &record.Account{}
	}

	match := Match[*record.Account]{RecipientID: self.RecipientID, Record: local, PersistedID: local.ID}
	if local.ID.IsZero() {
		addressable := *local
		addressable.ID = p.keys.Generate()
		match.Record = &addressable
	}
	return match, true
}

func (p *AccountProcessor) Merge(remote, local *record.Account) *record.Account {
	givenName, familyName := local.GivenName, local.FamilyName
	if remote.HasName() {
		givenName, familyName = remote.GivenName, remote.FamilyName
	}

	merged := &record.Account{
		GivenName:              givenName,
		FamilyName:             familyName,
		AvatarURL:              record.OrString(remote.AvatarURL, local.AvatarURL),
		ProfileKey:             record.OrBytes(remote.ProfileKey, local.ProfileKey),
		NoteToSelfArchived:     remote.NoteToSelfArchived,
		ReadReceipts:           remote.ReadReceipts,
		SealedSenderIndicators: remote.SealedSenderIndicators,
		TypingIndicators:       remote.TypingIndicators,
		LinkPreviews:           remote.LinkPreviews,
		UnknownFields:          remote.UnknownFields,
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

func (p *AccountProcessor) Compare(a, b *record.Account) Comparison {
	return SameIdentity
}

func (p *AccountProcessor) ApplyInsert(ctx context.Context, w Writer, remote *record.Account) error {
	return errAccountInsert
}

func (p *AccountProcessor) ApplyUpdate(ctx context.Context, w Writer, id identity.RecipientID, old, updated *record.Account) error {
	return w.UpdateAccount(ctx, id, updated)
}
