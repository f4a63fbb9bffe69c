package record

// Account is the synced form of the account owner's own settings.
type Account struct {
	ID StorageID

	GivenName  *string
	FamilyName *string
	AvatarURL  *string
	ProfileKey []byte

	NoteToSelfArchived     bool
	ReadReceipts           bool
	SealedSenderIndicators bool
	TypingIndicators       bool
	LinkPreviews           bool

	UnknownFields []byte
}

func (a *Account) StorageID() StorageID { return a.ID }
func (a *Account) Kind() Kind           { return KindAccount }
func (a *Account) isRecord()            {}

// HasName reports whether either member of the name unit is present.
func (a *Account) HasName() bool {
	return a.GivenName != nil || a.FamilyName != nil
}

// ContentEqual compares every attribute except the storage id.
func (a *Account) ContentEqual(o *Account) bool {
	return bytesEqual(a.UnknownFields, o.UnknownFields) &&
		optionalEqual(a.GivenName, o.GivenName) &&
		optionalEqual(a.FamilyName, o.FamilyName) &&
		optionalEqual(a.AvatarURL, o.AvatarURL) &&
		bytesEqual(a.ProfileKey, o.ProfileKey) &&
		a.NoteToSelfArchived == o.NoteToSelfArchived &&
		a.ReadReceipts == o.ReadReceipts &&
		a.SealedSenderIndicators == o.SealedSenderIndicators &&
		a.TypingIndicators == o.TypingIndicators &&
		a.LinkPreviews == o.LinkPreviews
}
