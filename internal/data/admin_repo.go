package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/eventrentals/portal/internal/data/pgxutil"
	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	apperrors "github.com/eventrentals/portal/internal/errors"
	"github.com/eventrentals/portal/internal/ports"
)

const (
	adminColumns      = `user_id, active, created_at, updated_at`
	auditColumns      = `id, user_id, action, actor, created_at`
	defaultAdminLimit = 100
	maxAdminLimit     = 1000
)

var _ ports.AdminDirectory = (*AdminRepo)(nil)

// AdminRepo is the Postgres-backed admins directory. Every write also appends
// to admin_audit in the same transaction.
type AdminRepo struct {
	DB   *sql.DB
	Time TimeProvider
}

// NewAdminRepo creates a new AdminRepo using the real clock.
func NewAdminRepo(db *sql.DB) *AdminRepo {
	return &AdminRepo{DB: db, Time: &RealTimeProvider{}}
}

// GetAdmin returns the membership for userID, or ports.ErrAdminNotFound.
func (r *AdminRepo) GetAdmin(ctx context.Context, userID string) (domainauth.AdminMembership, error) {
	if strings.TrimSpace(userID) == "" {
		return domainauth.AdminMembership{}, ports.ErrAdminNotFound
	}

	var m domainauth.AdminMembership
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+adminColumns+` FROM admins WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		m, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.AdminMembership])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domainauth.AdminMembership{}, ports.ErrAdminNotFound
	}
	if err != nil {
		return domainauth.AdminMembership{}, fmt.Errorf("get admin: %w", apperrors.MapDBError(err))
	}
	return m, nil
}

// Grant creates or reactivates the membership for userID.
func (r *AdminRepo) Grant(ctx context.Context, userID, actor string) (domainauth.AdminMembership, error) {
	if err := requireUserID(userID); err != nil {
		return domainauth.AdminMembership{}, err
	}
	now := r.Time.Now()

	var m domainauth.AdminMembership
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			INSERT INTO admins (user_id, active, created_at, updated_at)
			VALUES ($1, TRUE, $2, $2)
			ON CONFLICT (user_id) DO UPDATE SET active = TRUE, updated_at = EXCLUDED.updated_at
			RETURNING `+adminColumns, userID, now)
		if err != nil {
			return err
		}
		m, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.AdminMembership])
		if err != nil {
			return err
		}
		return r.audit(ctx, tx, auditRecord{userID: userID, action: domainauth.AdminGranted, actor: actor})
	}})
	if err != nil {
		return domainauth.AdminMembership{}, fmt.Errorf("grant admin: %w", apperrors.MapDBError(err))
	}
	return m, nil
}

// Revoke marks the membership inactive. The row is kept so the change is visible in listings.
func (r *AdminRepo) Revoke(ctx context.Context, userID, actor string) (domainauth.AdminMembership, error) {
	if err := requireUserID(userID); err != nil {
		return domainauth.AdminMembership{}, err
	}
	now := r.Time.Now()

	var m domainauth.AdminMembership
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE admins SET active = FALSE, updated_at = $2
			WHERE user_id = $1
			RETURNING `+adminColumns, userID, now)
		if err != nil {
			return err
		}
		m, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.AdminMembership])
		if err != nil {
			return err
		}
		return r.audit(ctx, tx, auditRecord{userID: userID, action: domainauth.AdminRevoked, actor: actor})
	}})
	if errors.Is(err, pgx.ErrNoRows) {
		return domainauth.AdminMembership{}, ports.ErrAdminNotFound
	}
	if err != nil {
		return domainauth.AdminMembership{}, fmt.Errorf("revoke admin: %w", apperrors.MapDBError(err))
	}
	return m, nil
}

// Delete removes the membership row and reports whether one existed.
func (r *AdminRepo) Delete(ctx context.Context, userID, actor string) (bool, error) {
	if err := requireUserID(userID); err != nil {
		return false, err
	}

	var deleted bool
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM admins WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		if !deleted {
			return nil
		}
		return r.audit(ctx, tx, auditRecord{userID: userID, action: domainauth.AdminDeleted, actor: actor})
	}})
	if err != nil {
		return false, fmt.Errorf("delete admin: %w", apperrors.MapDBError(err))
	}
	return deleted, nil
}

// AdminListOptions filters List.
type AdminListOptions struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// List returns memberships ordered by user id.
func (r *AdminRepo) List(ctx context.Context, opts AdminListOptions) ([]domainauth.AdminMembership, error) {
	limit, offset := clampPage(opts.Limit, opts.Offset)

	query := `SELECT ` + adminColumns + ` FROM admins`
	if opts.ActiveOnly {
		query += ` WHERE active IS NOT FALSE`
	}
	query += ` ORDER BY user_id LIMIT $1 OFFSET $2`

	var out []domainauth.AdminMembership
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, limit, offset)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[domainauth.AdminMembership])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// AuditTrail returns the most recent changes for userID, newest first.
func (r *AdminRepo) AuditTrail(ctx context.Context, userID string, limit int) ([]domainauth.AdminAuditEntry, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	limit, _ = clampPage(limit, 0)

	var out []domainauth.AdminAuditEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+auditColumns+` FROM admin_audit
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`, userID, limit)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[domainauth.AdminAuditEntry])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("admin audit trail: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

type auditRecord struct {
	userID string
	action domainauth.AdminAction
	actor  string
}

func (r *AdminRepo) audit(ctx context.Context, tx pgx.Tx, rec auditRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO admin_audit (user_id, action, actor, created_at) VALUES ($1, $2, $3, $4)`,
		rec.userID, string(rec.action), rec.actor, r.Time.Now())
	if err != nil {
		return fmt.Errorf("record %s audit: %w", rec.action, err)
	}
	return nil
}

func requireUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultAdminLimit
	}
	if limit > maxAdminLimit {
		limit = maxAdminLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
