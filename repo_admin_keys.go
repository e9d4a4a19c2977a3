package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AdminKeys manages the pool of one-shot signup keys that gate admin
// registration.
type AdminKeys interface {
	Create(ctx context.Context, keyValue string) (*AdminKey, error)

	// Claim marks the key as used, atomically. A key that is unknown or
	// already claimed yields ErrAdminKeyInvalid; two concurrent signups
	// presenting the same key can never both succeed.
	Claim(ctx context.Context, keyValue string, now time.Time) (*AdminKey, error)
	ClaimTx(ctx context.Context, tx bun.IDB, keyValue string, now time.Time) (*AdminKey, error)

	List(ctx context.Context) ([]*AdminKey, error)
}

type adminKeys struct {
	repo repository.Repository[*AdminKey]
	db   *bun.DB
}

var _ AdminKeys = (*adminKeys)(nil)

func NewAdminKeysRepository(db *bun.DB) AdminKeys {
	repo := repository.NewRepository[*AdminKey](db, repository.ModelHandlers[*AdminKey]{
		NewRecord: func() *AdminKey { return &AdminKey{} },
		GetID: func(k *AdminKey) uuid.UUID {
			if k == nil {
				return uuid.Nil
			}
			return k.ID
		},
		SetID: func(k *AdminKey, id uuid.UUID) {
			if k != nil {
				k.ID = id
			}
		},
	})

	return &adminKeys{repo: repo, db: db}
}

func (a *adminKeys) Create(ctx context.Context, keyValue string) (*AdminKey, error) {
	record := &AdminKey{
		ID:       uuid.New(),
		KeyValue: keyValue,
	}
	return a.repo.Create(ctx, record)
}

func (a *adminKeys) Claim(ctx context.Context, keyValue string, now time.Time) (*AdminKey, error) {
	return a.ClaimTx(ctx, a.db, keyValue, now)
}

func (a *adminKeys) ClaimTx(ctx context.Context, tx bun.IDB, keyValue string, now time.Time) (*AdminKey, error) {
	record := new(AdminKey)
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.key_value = ?", keyValue).
		Where("?TableAlias.is_used = ?", false).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAdminKeyInvalid
		}
		return nil, err
	}

	res, err := tx.NewUpdate().Model((*AdminKey)(nil)).
		Set("is_used = ?", true).
		Set("used_at = ?", now).
		Where("id = ?", record.ID).
		Where("is_used = ?", false).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	// A concurrent claim may have won between the select and the update.
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, ErrAdminKeyInvalid
	}

	record.IsUsed = true
	record.UsedAt = &now
	return record, nil
}

func (a *adminKeys) List(ctx context.Context) ([]*AdminKey, error) {
	var records []*AdminKey
	err := a.db.NewSelect().Model(&records).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
