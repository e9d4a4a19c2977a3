package identity

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var UpdateAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
RETURNING *;`

// IncrementWarningCountSQL bumps the counter in a single round trip so that
// concurrent warnings serialize on the row and every caller observes its own
// post-increment value.
var IncrementWarningCountSQL = `UPDATE "accounts" AS "acc"
SET
	"warning_count" = "acc"."warning_count" + 1,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
RETURNING *;`

// Accounts is the durable store of identities.
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	GetByRoleIdentifier(ctx context.Context, role Role, identifier string) (*Account, error)
	GetByEmailRole(ctx context.Context, email string, role Role) (*Account, error)
	GetByEmailAccessKey(ctx context.Context, email, accessKey string) (*Account, error)
	FindByEmailOrPhone(ctx context.Context, email, phone string, roles ...Role) (*Account, error)
	FindByRoleIdentifier(ctx context.Context, role Role, identifier string) (*Account, error)

	Create(ctx context.Context, record *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus) (*Account, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus) (*Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	IncrementWarningCount(ctx context.Context, id uuid.UUID) (*Account, error)
	IncrementWarningCountTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	SetSuspension(ctx context.Context, id uuid.UUID, until *time.Time, reason string) error
	SetSuspensionTx(ctx context.Context, tx bun.IDB, id uuid.UUID, until *time.Time, reason string) error
	ClearSuspension(ctx context.Context, id uuid.UUID) error

	CountAdmins(ctx context.Context) (int, error)
	List(ctx context.Context, filter ListAccountsFilter) ([]*Account, int, error)
}

// ListAccountsFilter narrows the admin user listing.
type ListAccountsFilter struct {
	Roles  []Role
	Search string
	Status string // "", "active", "suspended"
	Page   int
	Limit  int
}

func (f *ListAccountsFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	if len(f.Roles) == 0 {
		f.Roles = UserRoles
	}
}

type accounts struct {
	repo repository.Repository[*Account]
	db   *bun.DB
}

var _ Accounts = (*accounts)(nil)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{repo: repo, db: db}
}

func (a *accounts) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *accounts) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) GetByRoleIdentifier(ctx context.Context, role Role, identifier string) (*Account, error) {
	column, ok := roleIdentifierColumn(role)
	if !ok {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"role": role})
	}

	record := &Account{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias."+column+" = ?", strings.TrimSpace(identifier)).
		Where("?TableAlias.role = ?", role).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"identifier": identifier, "role": role})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) GetByEmailRole(ctx context.Context, email string, role Role) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Where("?TableAlias.role = ?", role).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email, "role": role})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) GetByEmailAccessKey(ctx context.Context, email, accessKey string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Where("?TableAlias.admin_access_key = ?", accessKey).
		Where("?TableAlias.role = ?", RoleAdmin).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}
	return record, nil
}

// FindByEmailOrPhone returns the first account whose email or phone collides,
// optionally narrowed to a role set. A nil error with a record means a
// collision; not-found is reported as a record-not-found error.
func (a *accounts) FindByEmailOrPhone(ctx context.Context, email, phone string, roles ...Role) (*Account, error) {
	record := &Account{}
	q := a.db.NewSelect().Model(record).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("?TableAlias.email = ?", email)
			if phone != "" {
				q = q.WhereOr("?TableAlias.phone = ?", phone)
			}
			return q
		})

	if len(roles) > 0 {
		q = q.Where("?TableAlias.role IN (?)", bun.In(roles))
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) FindByRoleIdentifier(ctx context.Context, role Role, identifier string) (*Account, error) {
	column, ok := roleIdentifierColumn(role)
	if !ok || identifier == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"role": role})
	}

	record := &Account{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias."+column+" = ?", identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"identifier": identifier})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	prepareAccountDefaults(record)
	return a.repo.CreateTx(ctx, tx, record)
}

func (a *accounts) Delete(ctx context.Context, id uuid.UUID) error {
	return a.DeleteTx(ctx, a.db, id)
}

func (a *accounts) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().Model((*Account)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *accounts) UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus) (*Account, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status)
}

func (a *accounts) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus) (*Account, error) {
	record := &Account{
		ID:     id,
		Status: status,
	}
	return a.repo.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (a *accounts) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.repo.RawTx(ctx, tx, UpdateAccountPasswordSQL, passwordHash, time.Now(), id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *accounts) IncrementWarningCount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.IncrementWarningCountTx(ctx, a.db, id)
}

func (a *accounts) IncrementWarningCountTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	res, err := a.repo.RawTx(ctx, tx, IncrementWarningCountSQL, time.Now(), id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return res[0], nil
}

func (a *accounts) SetSuspension(ctx context.Context, id uuid.UUID, until *time.Time, reason string) error {
	return a.SetSuspensionTx(ctx, a.db, id, until, reason)
}

func (a *accounts) SetSuspensionTx(ctx context.Context, tx bun.IDB, id uuid.UUID, until *time.Time, reason string) error {
	res, err := tx.NewUpdate().Model((*Account)(nil)).
		Set("is_suspended = ?", true).
		Set("suspended_until = ?", until).
		Set("suspended_reason = ?", reason).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *accounts) ClearSuspension(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewUpdate().Model((*Account)(nil)).
		Set("is_suspended = ?", false).
		Set("suspended_until = NULL").
		Set("suspended_reason = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *accounts) CountAdmins(ctx context.Context) (int, error) {
	return a.db.NewSelect().Model((*Account)(nil)).
		Where("role = ?", RoleAdmin).
		Count(ctx)
}

func (a *accounts) List(ctx context.Context, filter ListAccountsFilter) ([]*Account, int, error) {
	filter.normalize()

	var records []*Account
	q := a.db.NewSelect().Model(&records).
		Where("?TableAlias.role IN (?)", bun.In(filter.Roles)).
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit)

	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.email LIKE ?", pattern).
				WhereOr("?TableAlias.phone LIKE ?", pattern).
				WhereOr("?TableAlias.student_id LIKE ?", pattern).
				WhereOr("?TableAlias.employee_id LIKE ?", pattern)
		})
	}

	switch filter.Status {
	case "suspended":
		q = q.Where("?TableAlias.is_suspended = ?", true)
	case "active":
		q = q.Where("?TableAlias.is_suspended = ?", false).
			Where("?TableAlias.status = ?", StatusActive)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func roleIdentifierColumn(role Role) (string, bool) {
	switch role {
	case RoleStudent:
		return "student_id", true
	case RoleLibrarian:
		return "employee_id", true
	default:
		return "", false
	}
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
