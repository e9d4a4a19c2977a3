package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Accounts() Accounts
	OneTimeCodes() OneTimeCodes
	Warnings() Warnings
	AdminKeys() AdminKeys
}

type mngr struct {
	db        *bun.DB
	accounts  Accounts
	codes     OneTimeCodes
	warnings  Warnings
	adminKeys AdminKeys
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:        db,
		accounts:  NewAccountsRepository(db),
		codes:     NewOneTimeCodesRepository(db),
		warnings:  NewWarningsRepository(db),
		adminKeys: NewAdminKeysRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.codes == nil {
		return errors.New("repository one time codes should be initialized")
	}

	if m.warnings == nil {
		return errors.New("repository warnings should be initialized")
	}

	if m.adminKeys == nil {
		return errors.New("repository admin keys should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) OneTimeCodes() OneTimeCodes {
	return m.codes
}

func (m mngr) Warnings() Warnings {
	return m.warnings
}

func (m mngr) AdminKeys() AdminKeys {
	return m.adminKeys
}
