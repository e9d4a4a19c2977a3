package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AccountDetail is an account joined with its disciplinary record.
type AccountDetail struct {
	*Account
	Warnings []*Warning `json:"warnings"`
}

// AccountDirectory serves the administrative read and delete operations over
// the account roster.
type AccountDirectory struct {
	repo     RepositoryManager
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

func NewAccountDirectory(repo RepositoryManager, opts ...HandlerOption) *AccountDirectory {
	o := buildHandlerOptions(DefaultVerifyWindow, opts...)
	return &AccountDirectory{
		repo:     repo,
		logger:   o.logger,
		activity: o.activity,
		now:      o.now,
	}
}

// List pages through non-admin accounts.
func (d *AccountDirectory) List(ctx context.Context, filter ListAccountsFilter) ([]*Account, int, error) {
	return d.repo.Accounts().List(ctx, filter)
}

// Get returns the account with its warnings, newest first.
func (d *AccountDirectory) Get(ctx context.Context, id uuid.UUID) (*AccountDetail, error) {
	account, err := d.repo.Accounts().GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFoundError("user")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	warnings, err := d.repo.Warnings().ListByAccount(ctx, id)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load warnings")
	}

	return &AccountDetail{Account: account, Warnings: warnings}, nil
}

// Delete removes a non-admin account. Admin accounts cannot be deleted
// through the directory.
func (d *AccountDirectory) Delete(ctx context.Context, actor ActorRef, id uuid.UUID) error {
	account, err := d.repo.Accounts().GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return notFoundError("user")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if account.Role == RoleAdmin {
		return ErrAdminUndeletable
	}

	if err := d.repo.Accounts().Delete(ctx, id); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete account")
	}

	recordActivity(ctx, d.activity, d.logger, ActivityEvent{
		EventType: ActivityEventAccountDeleted,
		Actor:     actor,
		AccountID: id.String(),
		Metadata:  map[string]any{"role": account.Role},
	}, d.now)

	return nil
}
