package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OneTimeCodes is the durable store of outstanding OTP challenges.
type OneTimeCodes interface {
	Issue(ctx context.Context, accountID uuid.UUID, purpose OTPPurpose, code string, expiresAt time.Time) (*OneTimeCode, error)
	IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, purpose OTPPurpose, code string, expiresAt time.Time) (*OneTimeCode, error)

	// Consume atomically deletes the code identified by the exact
	// (account, code, purpose) triple, provided it has not expired. It
	// returns ErrCodeInvalid when nothing matched, which covers wrong
	// code, wrong purpose, and expiry alike. Because the match and the
	// delete are one statement, a code can never be used twice even when
	// two verification requests race.
	Consume(ctx context.Context, accountID uuid.UUID, code string, purpose OTPPurpose, now time.Time) error
	ConsumeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string, purpose OTPPurpose, now time.Time) error

	// PurgeAccount removes every outstanding code for the account,
	// regardless of purpose. Runs after any successful verification.
	PurgeAccount(ctx context.Context, accountID uuid.UUID) error
	PurgeAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error
}

type oneTimeCodes struct {
	repo repository.Repository[*OneTimeCode]
	db   *bun.DB
}

var _ OneTimeCodes = (*oneTimeCodes)(nil)

func NewOneTimeCodesRepository(db *bun.DB) OneTimeCodes {
	repo := repository.NewRepository[*OneTimeCode](db, repository.ModelHandlers[*OneTimeCode]{
		NewRecord: func() *OneTimeCode { return &OneTimeCode{} },
		GetID: func(c *OneTimeCode) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *OneTimeCode, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})

	return &oneTimeCodes{repo: repo, db: db}
}

func (o *oneTimeCodes) Issue(ctx context.Context, accountID uuid.UUID, purpose OTPPurpose, code string, expiresAt time.Time) (*OneTimeCode, error) {
	return o.IssueTx(ctx, o.db, accountID, purpose, code, expiresAt)
}

func (o *oneTimeCodes) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, purpose OTPPurpose, code string, expiresAt time.Time) (*OneTimeCode, error) {
	record := &OneTimeCode{
		ID:        uuid.New(),
		AccountID: accountID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	}
	return o.repo.CreateTx(ctx, tx, record)
}

func (o *oneTimeCodes) Consume(ctx context.Context, accountID uuid.UUID, code string, purpose OTPPurpose, now time.Time) error {
	return o.ConsumeTx(ctx, o.db, accountID, code, purpose, now)
}

func (o *oneTimeCodes) ConsumeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string, purpose OTPPurpose, now time.Time) error {
	res, err := tx.NewDelete().Model((*OneTimeCode)(nil)).
		Where("account_id = ?", accountID).
		Where("code = ?", code).
		Where("purpose = ?", purpose).
		Where("expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return ErrCodeInvalid
	}

	return nil
}

func (o *oneTimeCodes) PurgeAccount(ctx context.Context, accountID uuid.UUID) error {
	return o.PurgeAccountTx(ctx, o.db, accountID)
}

func (o *oneTimeCodes) PurgeAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	_, err := tx.NewDelete().Model((*OneTimeCode)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	return err
}
