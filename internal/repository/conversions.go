package repository

import (
	"fmt"
	"time"

	"storage-sync/internal/identity"
	"storage-sync/internal/record"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func stringToPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func pgTextToString(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func timeToPgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func pgTimestamptzToTime(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// addressToPg splits an address into its nullable service id and phone columns.
func addressToPg(a identity.Address) (pgtype.UUID, pgtype.Text) {
	serviceID := pgtype.UUID{Valid: false}
	if a.HasServiceID() {
		serviceID = pgtype.UUID{Bytes: a.ServiceID.UUID, Valid: true}
	}
	e164 := pgtype.Text{Valid: false}
	if a.HasE164() {
		e164 = pgtype.Text{String: a.E164, Valid: true}
	}
	return serviceID, e164
}

func pgToAddress(serviceID pgtype.UUID, e164 pgtype.Text) identity.Address {
	var a identity.Address
	if serviceID.Valid {
		a.ServiceID = uuid.NullUUID{UUID: uuid.UUID(serviceID.Bytes), Valid: true}
	}
	if e164.Valid {
		a.E164 = e164.String
	}
	return a
}

// storageIDToPg stores the zero id as NULL.
func storageIDToPg(id record.StorageID) []byte {
	return id.Bytes()
}

func pgToStorageID(b []byte) (record.StorageID, error) {
	if len(b) == 0 {
		return record.StorageID{}, nil
	}
	id, err := record.StorageIDFromBytes(b)
	if err != nil {
		return record.StorageID{}, fmt.Errorf("stored storage id: %w", err)
	}
	return id, nil
}

// bytesToPg stores an empty slice as NULL.
func bytesToPg(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
