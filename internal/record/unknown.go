package record

// Unknown is a record whose type this version cannot decode. It is carried
// through reconciliation byte for byte.
type Unknown struct {
	ID   StorageID
	Type int32
	Data []byte
}

func (u *Unknown) StorageID() StorageID { return u.ID }
func (u *Unknown) Kind() Kind           { return KindUnknown }
func (u *Unknown) isRecord()            {}
