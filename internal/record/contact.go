package record

import "storage-sync/internal/identity"

// IdentityState is the verification state of a contact's identity key.
type IdentityState int8

const (
	IdentityDefault IdentityState = iota
	IdentityVerified
	IdentityUnverified
)

// Contact is the synced form of another person's recipient.
type Contact struct {
	ID      StorageID
	Address identity.Address

	// GivenName and FamilyName form one unit during merge.
	GivenName  *string
	FamilyName *string

	ProfileKey    []byte
	Username      *string
	IdentityState IdentityState
	IdentityKey   []byte

	ConversationFlags

	UnknownFields []byte
}

func (c *Contact) StorageID() StorageID { return c.ID }
func (c *Contact) Kind() Kind           { return KindContact }
func (c *Contact) isRecord()            {}

// HasName reports whether either member of the name unit is present.
func (c *Contact) HasName() bool {
	return c.GivenName != nil || c.FamilyName != nil
}

// ContentEqual compares every attribute except the storage id.
func (c *Contact) ContentEqual(o *Contact) bool {
	return bytesEqual(c.UnknownFields, o.UnknownFields) &&
		c.Address == o.Address &&
		optionalEqual(c.GivenName, o.GivenName) &&
		optionalEqual(c.FamilyName, o.FamilyName) &&
		bytesEqual(c.ProfileKey, o.ProfileKey) &&
		optionalEqual(c.Username, o.Username) &&
		c.IdentityState == o.IdentityState &&
		bytesEqual(c.IdentityKey, o.IdentityKey) &&
		c.ConversationFlags == o.ConversationFlags
}
