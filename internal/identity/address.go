package identity

import (
	"strconv"

	"github.com/google/uuid"
)

// RecipientID is the local-only identifier of a recipient row.
type RecipientID int64

func (id RecipientID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Address holds the identity attributes of a person: the stable service id
// and, optionally, an E.164 phone number. An empty E164 is absent.
type Address struct {
	ServiceID uuid.NullUUID
	E164      string
}

// NewAddress builds an address, normalizing the phone number.
func NewAddress(serviceID *uuid.UUID, e164 string) Address {
	var addr Address
	if serviceID != nil && *serviceID != uuid.Nil {
		addr.ServiceID = uuid.NullUUID{UUID: *serviceID, Valid: true}
	}
	addr.E164 = NormalizeE164(e164)
	return addr
}

// HasServiceID reports whether the stable identifier is present.
func (a Address) HasServiceID() bool {
	return a.ServiceID.Valid
}

// HasE164 reports whether the phone number is present.
func (a Address) HasE164() bool {
	return a.E164 != ""
}

// IsEmpty reports whether the address carries no identity at all.
func (a Address) IsEmpty() bool {
	return !a.HasServiceID() && !a.HasE164()
}

// SharesIdentity reports whether two addresses name the same person: either
// both carry the same service id or both carry the same phone number.
func (a Address) SharesIdentity(b Address) bool {
	if a.HasServiceID() && b.HasServiceID() && a.ServiceID.UUID == b.ServiceID.UUID {
		return true
	}
	return a.HasE164() && b.HasE164() && a.E164 == b.E164
}

// Union fills every attribute missing from a with the one from fallback.
// Attributes present on a always win.
func (a Address) Union(fallback Address) Address {
	out := a
	if !out.HasServiceID() {
		out.ServiceID = fallback.ServiceID
	}
	if !out.HasE164() {
		out.E164 = fallback.E164
	}
	return out
}

// Without removes from a every attribute it shares with other.
func (a Address) Without(other Address) Address {
	out := a
	if out.HasServiceID() && other.HasServiceID() && out.ServiceID.UUID == other.ServiceID.UUID {
		out.ServiceID = uuid.NullUUID{}
	}
	if out.HasE164() && out.E164 == other.E164 {
		out.E164 = ""
	}
	return out
}

func (a Address) String() string {
	switch {
	case a.HasServiceID() && a.HasE164():
		return a.ServiceID.UUID.String() + "/" + a.E164
	case a.HasServiceID():
		return a.ServiceID.UUID.String()
	case a.HasE164():
		return a.E164
	default:
		return "<empty>"
	}
}
