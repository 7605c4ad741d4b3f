// Package pg persists workflow entities, role assignments and the audit
// trail in PostgreSQL. Entities live as a JSON document alongside a
// dedicated status column; the status column is what the conditional
// transition commit compares against.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sbnctech/murmurant-sub011/internal/audit"
	"github.com/sbnctech/murmurant-sub011/internal/auth"
	"github.com/sbnctech/murmurant-sub011/internal/delegation"
	"github.com/sbnctech/murmurant-sub011/internal/workflow"
)

type Store struct {
	db *sql.DB
}

var (
	_ workflow.Store             = (*Store)(nil)
	_ audit.Recorder             = (*Store)(nil)
	_ audit.Reader               = (*Store)(nil)
	_ delegation.AssignmentStore = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection pool. Used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Get(ctx context.Context, kind workflow.Kind, id string) (workflow.Entity, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		select doc from entities where kind=$1 and id=$2
	`, string(kind), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Entity{}, workflow.ErrNotFound
	}
	if err != nil {
		return workflow.Entity{}, err
	}
	var ent workflow.Entity
	if err := json.Unmarshal(doc, &ent); err != nil {
		return workflow.Entity{}, fmt.Errorf("pg: decode entity %s/%s: %w", kind, id, err)
	}
	return ent, nil
}

func (s *Store) Create(ctx context.Context, e workflow.Entity, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("pg: encode entity %s/%s: %w", e.Kind, e.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into entities(kind, id, status, doc, created_at, updated_at)
		values ($1,$2,$3,$4,now(),now())
	`, string(e.Kind), e.ID, string(e.Status), doc); err != nil {
		return err
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyTransition commits the updated entity and its audit entry in one
// transaction. The update is conditional on the persisted status still
// being expected; zero rows affected means another writer got there first.
func (s *Store) ApplyTransition(ctx context.Context, e workflow.Entity, expected workflow.Status, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("pg: encode entity %s/%s: %w", e.Kind, e.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update entities set status=$4, doc=$5, updated_at=now()
		where kind=$1 and id=$2 and status=$3
	`, string(e.Kind), e.ID, string(expected), string(e.Status), doc)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			select exists(select 1 from entities where kind=$1 and id=$2)
		`, string(e.Kind), e.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return workflow.ErrNotFound
		}
		return workflow.ErrConflict
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := appendEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func appendEntry(ctx context.Context, tx *sql.Tx, entry audit.Entry) error {
	var meta []byte
	if len(entry.Metadata) > 0 {
		var err error
		meta, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("pg: encode audit metadata: %w", err)
		}
	}
	_, err := tx.ExecContext(ctx, `
		insert into audit_entries(id, actor_id, action, object_type, object_id, before_status, after_status, metadata, recorded_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''),$8,$9)
	`, entry.ID, entry.ActorID, entry.Action, entry.ObjectType, entry.ObjectID,
		entry.Before, entry.After, meta, entry.RecordedAt.UTC())
	return err
}

func (s *Store) List(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, actor_id, action, object_type, object_id,
		       coalesce(before_status,''), coalesce(after_status,''), metadata, recorded_at
		from audit_entries
		where ($1='' or object_type=$1)
		  and ($2='' or object_id=$2)
		  and ($3='' or actor_id=$3)
		  and ($4::timestamptz is null or recorded_at >= $4)
		  and ($5::timestamptz is null or recorded_at <= $5)
		order by recorded_at asc, id asc
		limit $6
	`, q.ObjectType, q.ObjectID, q.ActorID, nullTime(q.Since), nullTime(q.Until), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.ObjectType, &e.ObjectID,
			&e.Before, &e.After, &meta, &e.RecordedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("pg: decode audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ActiveAssignments(ctx context.Context, memberID string) ([]delegation.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select member_id, committee_id, role, starts_at, coalesce(ends_at, 'epoch'::timestamptz)
		from role_assignments
		where member_id=$1
		  and starts_at <= now()
		  and (ends_at is null or ends_at >= now())
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []delegation.Assignment
	for rows.Next() {
		var a delegation.Assignment
		var role string
		var ends time.Time
		if err := rows.Scan(&a.MemberID, &a.CommitteeID, &role, &a.StartsAt, &ends); err != nil {
			return nil, err
		}
		a.Role = auth.Role(role)
		if !ends.Equal(epoch) {
			a.EndsAt = ends
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PutAssignment upserts one role assignment row. The migrate seed command
// uses it; the API itself only reads assignments.
func (s *Store) PutAssignment(ctx context.Context, a delegation.Assignment) error {
	var ends any
	if !a.EndsAt.IsZero() {
		ends = a.EndsAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into role_assignments(member_id, committee_id, role, starts_at, ends_at)
		values ($1,$2,$3,$4,$5)
		on conflict (member_id, committee_id, role) do update
		set starts_at=excluded.starts_at, ends_at=excluded.ends_at
	`, a.MemberID, a.CommitteeID, string(a.Role), a.StartsAt.UTC(), ends)
	return err
}

var epoch = time.Unix(0, 0).UTC()

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
