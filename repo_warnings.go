package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ListWarningsFilter narrows and pages warning listings.
type ListWarningsFilter struct {
	AccountID uuid.UUID
	Type      WarningType
	Page      int
	Limit     int
}

func (f *ListWarningsFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// Warnings stores the disciplinary record. Rows are append-only; the only
// mutation is flipping the read flag.
type Warnings interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Warning, error)
	Create(ctx context.Context, record *Warning) (*Warning, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Warning) (*Warning, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Warning, error)
	List(ctx context.Context, filter ListWarningsFilter) ([]*Warning, int, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*Warning, error)
}

type warnings struct {
	repo repository.Repository[*Warning]
	db   *bun.DB
}

var _ Warnings = (*warnings)(nil)

func NewWarningsRepository(db *bun.DB) Warnings {
	repo := repository.NewRepository[*Warning](db, repository.ModelHandlers[*Warning]{
		NewRecord: func() *Warning { return &Warning{} },
		GetID: func(w *Warning) uuid.UUID {
			if w == nil {
				return uuid.Nil
			}
			return w.ID
		},
		SetID: func(w *Warning, id uuid.UUID) {
			if w != nil {
				w.ID = id
			}
		},
	})

	return &warnings{repo: repo, db: db}
}

func (w *warnings) GetByID(ctx context.Context, id uuid.UUID) (*Warning, error) {
	record := new(Warning)
	err := w.db.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFoundError("warning")
		}
		return nil, err
	}
	return record, nil
}

func (w *warnings) Create(ctx context.Context, record *Warning) (*Warning, error) {
	return w.CreateTx(ctx, w.db, record)
}

func (w *warnings) CreateTx(ctx context.Context, tx bun.IDB, record *Warning) (*Warning, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return w.repo.CreateTx(ctx, tx, record)
}

func (w *warnings) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Warning, error) {
	var records []*Warning
	err := w.db.NewSelect().Model(&records).
		Where("?TableAlias.account_id = ?", accountID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (w *warnings) List(ctx context.Context, filter ListWarningsFilter) ([]*Warning, int, error) {
	filter.normalize()

	var records []*Warning
	q := w.db.NewSelect().Model(&records)

	if filter.AccountID != uuid.Nil {
		q = q.Where("?TableAlias.account_id = ?", filter.AccountID)
	}

	if filter.Type != "" {
		q = q.Where("?TableAlias.type = ?", filter.Type)
	}

	total, err := q.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (w *warnings) MarkRead(ctx context.Context, id uuid.UUID) (*Warning, error) {
	record, err := w.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.IsRead {
		return record, nil
	}

	record.IsRead = true
	return w.repo.UpdateTx(ctx, w.db, record)
}
