package repository

import (
	"context"
	"fmt"

	"storage-sync/internal/db"
	"storage-sync/internal/identity"
	"storage-sync/internal/logger"
	"storage-sync/internal/record"
	"storage-sync/internal/storagesync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	kindSelf    = "self"
	kindContact = "contact"
	kindGroupV1 = "group_v1"
	kindGroupV2 = "group_v2"
)

// Conn is a connection that can also open transactions, such as a pool.
type Conn interface {
	db.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RecipientRepository is the local recipient store the reconciler reads
// from and writes to.
type RecipientRepository struct {
	conn Conn
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(conn Conn) *RecipientRepository {
	return &RecipientRepository{conn: conn}
}

const loadRecipientsSQL = `
SELECT r.id, r.kind, r.service_id, r.e164, r.group_id, r.storage_id,
       r.given_name, r.family_name, r.profile_key, r.username,
       r.identity_state, r.identity_key,
       r.blocked, r.profile_sharing, r.archived, r.forced_unread, r.mute_until,
       r.avatar_url, r.storage_unknown_fields,
       a.note_to_self_archived, a.read_receipts, a.sealed_sender_indicators,
       a.typing_indicators, a.link_previews
FROM recipients r
LEFT JOIN account_settings a ON a.recipient_id = r.id
ORDER BY r.id`

// recipientRow is one scanned row of loadRecipientsSQL.
type recipientRow struct {
	ID            int64
	Kind          string
	ServiceID     pgtype.UUID
	E164          pgtype.Text
	GroupID       []byte
	StorageID     []byte
	GivenName     pgtype.Text
	FamilyName    pgtype.Text
	ProfileKey    []byte
	Username      pgtype.Text
	IdentityState int16
	IdentityKey   []byte
	Blocked       bool
	ProfileShare  bool
	Archived      bool
	ForcedUnread  bool
	MuteUntil     int64
	AvatarURL     pgtype.Text
	UnknownFields []byte

	NoteToSelfArchived     pgtype.Bool
	ReadReceipts           pgtype.Bool
	SealedSenderIndicators pgtype.Bool
	TypingIndicators       pgtype.Bool
	LinkPreviews           pgtype.Bool
}

func (row *recipientRow) flags() record.ConversationFlags {
	return record.ConversationFlags{
		Blocked:        row.Blocked,
		ProfileSharing: row.ProfileShare,
		Archived:       row.Archived,
		ForcedUnread:   row.ForcedUnread,
		MuteUntil:      row.MuteUntil,
	}
}

// toRecord converts a row to its syncable record.
func (row *recipientRow) toRecord() (record.Record, error) {
	storageID, err := pgToStorageID(row.StorageID)
	if err != nil {
		return nil, err
	}

	switch row.Kind {
	case kindSelf:
		return &record.Account{
			ID:                     storageID,
			GivenName:              pgTextToString(row.GivenName),
			FamilyName:             pgTextToString(row.FamilyName),
			AvatarURL:              pgTextToString(row.AvatarURL),
			ProfileKey:             row.ProfileKey,
			NoteToSelfArchived:     row.NoteToSelfArchived.Bool,
			ReadReceipts:           row.ReadReceipts.Bool,
			SealedSenderIndicators: row.SealedSenderIndicators.Bool,
			TypingIndicators:       row.TypingIndicators.Bool,
			LinkPreviews:           row.LinkPreviews.Bool,
			UnknownFields:          row.UnknownFields,
		}, nil
	case kindContact:
		return &record.Contact{
			ID:                storageID,
			Address:           pgToAddress(row.ServiceID, row.E164),
			GivenName:         pgTextToString(row.GivenName),
			FamilyName:        pgTextToString(row.FamilyName),
			ProfileKey:        row.ProfileKey,
			Username:          pgTextToString(row.Username),
			IdentityState:     record.IdentityState(row.IdentityState),
			IdentityKey:       row.IdentityKey,
			ConversationFlags: row.flags(),
			UnknownFields:     row.UnknownFields,
		}, nil
	case kindGroupV1:
		return &record.GroupV1{
			ID:                storageID,
			GroupID:           row.GroupID,
			ConversationFlags: row.flags(),
			UnknownFields:     row.UnknownFields,
		}, nil
	case kindGroupV2:
		return &record.GroupV2{
			ID:                storageID,
			MasterKey:         row.GroupID,
			ConversationFlags: row.flags(),
			UnknownFields:     row.UnknownFields,
		}, nil
	default:
		return nil, fmt.Errorf("unknown recipient kind %q", row.Kind)
	}
}

// LoadSnapshot reads every recipient into an immutable snapshot for one pass.
func (r *RecipientRepository) LoadSnapshot(ctx context.Context) (*storagesync.LocalState, error) {
	rows, err := r.conn.Query(ctx, loadRecipientsSQL)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var self *storagesync.Self
	var entries []storagesync.LocalEntry

	for rows.Next() {
		var row recipientRow
		if err := rows.Scan(
			&row.ID, &row.Kind, &row.ServiceID, &row.E164, &row.GroupID, &row.StorageID,
			&row.GivenName, &row.FamilyName, &row.ProfileKey, &row.Username,
			&row.IdentityState, &row.IdentityKey,
			&row.Blocked, &row.ProfileShare, &row.Archived, &row.ForcedUnread, &row.MuteUntil,
			&row.AvatarURL, &row.UnknownFields,
			&row.NoteToSelfArchived, &row.ReadReceipts, &row.SealedSenderIndicators,
			&row.TypingIndicators, &row.LinkPreviews,
		); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}

		rec, err := row.toRecord()
		if err != nil {
			logger.Warn().
				Err(err).
				Int64("recipient_id", row.ID).
				Msg("skipping unreadable recipient")
			continue
		}

		rid := identity.RecipientID(row.ID)
		if row.Kind == kindSelf {
			self = &storagesync.Self{
				RecipientID: rid,
				Address:     pgToAddress(row.ServiceID, row.E164),
				Account:     rec.(*record.Account),
			}
			continue
		}
		entries = append(entries, storagesync.LocalEntry{RecipientID: rid, Record: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}

	return storagesync.NewLocalState(self, entries), nil
}

// EnsureSelf creates the account owner's recipient if it does not exist yet
// and refreshes its address otherwise.
func (r *RecipientRepository) EnsureSelf(ctx context.Context, addr identity.Address) (identity.RecipientID, error) {
	serviceID, e164 := addressToPg(addr)

	var id int64
	err := r.conn.QueryRow(ctx, `
		INSERT INTO recipients (kind, service_id, e164)
		VALUES ('self', $1, $2)
		ON CONFLICT (kind) WHERE kind = 'self'
		DO UPDATE SET service_id = EXCLUDED.service_id, e164 = EXCLUDED.e164, updated_at = NOW()
		RETURNING id`,
		serviceID, e164,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure self recipient: %w", db.Translate(err))
	}
	return identity.RecipientID(id), nil
}

// CountByKind returns the number of recipients of each kind.
func (r *RecipientRepository) CountByKind(ctx context.Context) (map[string]int64, error) {
	rows, err := r.conn.Query(ctx, `SELECT kind, COUNT(*) FROM recipients GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count recipients: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan recipient count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// WithinTx runs fn with a Writer bound to one transaction. Every write of the
// pass commits together or not at all.
func (r *RecipientRepository) WithinTx(ctx context.Context, fn func(storagesync.Writer) error) error {
	return pgx.BeginFunc(ctx, r.conn, func(tx pgx.Tx) error {
		return fn(&recipientWriter{q: tx})
	})
}

// recipientWriter applies reconciliation writes through q.
type recipientWriter struct {
	q db.DBTX
}

func (w *recipientWriter) exec(ctx context.Context, what string, sql string, args ...any) error {
	tag, err := w.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, db.Translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, db.ErrNotFound)
	}
	return nil
}

// releaseStorageID clears id from any recipient other than owner. A stale
// mapping must not block the id moving to the recipient that now owns it.
func (w *recipientWriter) releaseStorageID(ctx context.Context, owner identity.RecipientID, id record.StorageID) error {
	if id.IsZero() {
		return nil
	}
	_, err := w.q.Exec(ctx,
		`UPDATE recipients SET storage_id = NULL, updated_at = NOW() WHERE storage_id = $1 AND id <> $2`,
		storageIDToPg(id), int64(owner),
	)
	if err != nil {
		return fmt.Errorf("release storage id %s: %w", id, db.Translate(err))
	}
	return nil
}

func (w *recipientWriter) InsertContact(ctx context.Context, c *record.Contact) error {
	if err := w.releaseStorageID(ctx, 0, c.ID); err != nil {
		return err
	}
	serviceID, e164 := addressToPg(c.Address)
	return w.exec(ctx, "insert contact", `
		INSERT INTO recipients (
			kind, service_id, e164, storage_id, given_name, family_name, profile_key,
			username, identity_state, identity_key,
			blocked, profile_sharing, archived, forced_unread, mute_until,
			storage_unknown_fields
		) VALUES ('contact', $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		serviceID, e164, storageIDToPg(c.ID),
		stringToPgText(c.GivenName), stringToPgText(c.FamilyName), bytesToPg(c.ProfileKey),
		stringToPgText(c.Username), int16(c.IdentityState), bytesToPg(c.IdentityKey),
		c.Blocked, c.ProfileSharing, c.Archived, c.ForcedUnread, c.MuteUntil,
		bytesToPg(c.UnknownFields),
	)
}

func (w *recipientWriter) UpdateContact(ctx context.Context, id identity.RecipientID, c *record.Contact) error {
	if err := w.releaseStorageID(ctx, id, c.ID); err != nil {
		return err
	}
	serviceID, e164 := addressToPg(c.Address)
	return w.exec(ctx, "update contact "+id.String(), `
		UPDATE recipients SET
			service_id = $2, e164 = $3, storage_id = $4,
			given_name = $5, family_name = $6, profile_key = $7,
			username = $8, identity_state = $9, identity_key = $10,
			blocked = $11, profile_sharing = $12, archived = $13, forced_unread = $14, mute_until = $15,
			storage_unknown_fields = $16, updated_at = NOW()
		WHERE id = $1 AND kind = 'contact'`,
		int64(id), serviceID, e164, storageIDToPg(c.ID),
		stringToPgText(c.GivenName), stringToPgText(c.FamilyName), bytesToPg(c.ProfileKey),
		stringToPgText(c.Username), int16(c.IdentityState), bytesToPg(c.IdentityKey),
		c.Blocked, c.ProfileSharing, c.Archived, c.ForcedUnread, c.MuteUntil,
		bytesToPg(c.UnknownFields),
	)
}

// UpdateAccount stores the account record, including its unknown fields, on
// the self recipient so later passes re-emit them unchanged.
func (w *recipientWriter) UpdateAccount(ctx context.Context, id identity.RecipientID, a *record.Account) error {
	if err := w.releaseStorageID(ctx, id, a.ID); err != nil {
		return err
	}
	if err := w.exec(ctx, "update account "+id.String(), `
		UPDATE recipients SET
			storage_id = $2, given_name = $3, family_name = $4, profile_key = $5,
			avatar_url = $6, storage_unknown_fields = $7, updated_at = NOW()
		WHERE id = $1 AND kind = 'self'`,
		int64(id), storageIDToPg(a.ID),
		stringToPgText(a.GivenName), stringToPgText(a.FamilyName), bytesToPg(a.ProfileKey),
		stringToPgText(a.AvatarURL), bytesToPg(a.UnknownFields),
	); err != nil {
		return err
	}

	return w.exec(ctx, "update account settings "+id.String(), `
		INSERT INTO account_settings (
			recipient_id, note_to_self_archived, read_receipts,
			sealed_sender_indicators, typing_indicators, link_previews
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (recipient_id) DO UPDATE SET
			note_to_self_archived = EXCLUDED.note_to_self_archived,
			read_receipts = EXCLUDED.read_receipts,
			sealed_sender_indicators = EXCLUDED.sealed_sender_indicators,
			typing_indicators = EXCLUDED.typing_indicators,
			link_previews = EXCLUDED.link_previews,
			updated_at = NOW()`,
		int64(id), a.NoteToSelfArchived, a.ReadReceipts,
		a.SealedSenderIndicators, a.TypingIndicators, a.LinkPreviews,
	)
}

func (w *recipientWriter) insertGroup(ctx context.Context, kind string, groupID []byte, id record.StorageID, flags record.ConversationFlags, unknown []byte) error {
	if err := w.releaseStorageID(ctx, 0, id); err != nil {
		return err
	}
	return w.exec(ctx, "insert "+kind, `
		INSERT INTO recipients (
			kind, group_id, storage_id,
			blocked, profile_sharing, archived, forced_unread, mute_until,
			storage_unknown_fields
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		kind, groupID, storageIDToPg(id),
		flags.Blocked, flags.ProfileSharing, flags.Archived, flags.ForcedUnread, flags.MuteUntil,
		bytesToPg(unknown),
	)
}

func (w *recipientWriter) updateGroup(ctx context.Context, kind string, rid identity.RecipientID, id record.StorageID, flags record.ConversationFlags, unknown []byte) error {
	if err := w.releaseStorageID(ctx, rid, id); err != nil {
		return err
	}
	return w.exec(ctx, "update "+kind+" "+rid.String(), `
		UPDATE recipients SET
			storage_id = $3,
			blocked = $4, profile_sharing = $5, archived = $6, forced_unread = $7, mute_until = $8,
			storage_unknown_fields = $9, updated_at = NOW()
		WHERE id = $1 AND kind = $2`,
		int64(rid), kind, storageIDToPg(id),
		flags.Blocked, flags.ProfileSharing, flags.Archived, flags.ForcedUnread, flags.MuteUntil,
		bytesToPg(unknown),
	)
}

func (w *recipientWriter) InsertGroupV1(ctx context.Context, g *record.GroupV1) error {
	return w.insertGroup(ctx, kindGroupV1, g.GroupID, g.ID, g.ConversationFlags, g.UnknownFields)
}

func (w *recipientWriter) UpdateGroupV1(ctx context.Context, id identity.RecipientID, g *record.GroupV1) error {
	return w.updateGroup(ctx, kindGroupV1, id, g.ID, g.ConversationFlags, g.UnknownFields)
}

func (w *recipientWriter) InsertGroupV2(ctx context.Context, g *record.GroupV2) error {
	return w.insertGroup(ctx, kindGroupV2, g.MasterKey, g.ID, g.ConversationFlags, g.UnknownFields)
}

func (w *recipientWriter) UpdateGroupV2(ctx context.Context, id identity.RecipientID, g *record.GroupV2) error {
	return w.updateGroup(ctx, kindGroupV2, id, g.ID, g.ConversationFlags, g.UnknownFields)
}

func (w *recipientWriter) SetStorageID(ctx context.Context, id identity.RecipientID, storageID record.StorageID) error {
	if err := w.releaseStorageID(ctx, id, storageID); err != nil {
		return err
	}
	return w.exec(ctx, "set storage id "+id.String(),
		`UPDATE recipients SET storage_id = $2, updated_at = NOW() WHERE id = $1`,
		int64(id), storageIDToPg(storageID),
	)
}
