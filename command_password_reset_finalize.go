package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	AccountID       uuid.UUID `json:"account_id"`
	Code            string    `json:"otp"`
	NewPassword     string    `json:"new_password"`
	ConfirmPassword string    `json:"confirm_password"`
	OnResponse      func(resp *FinalizePasswordResetResponse)
}

func (m FinalizePasswordResetMessage) Type() string { return "auth.password_reset_finalize" }

type FinalizePasswordResetResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// FinalizePasswordResetHandler redeems a reset code for a new password.
// The confirmation check runs before anything touches the store, so a
// mismatch never burns the code. Consume, rewrite, and purge are one
// transaction.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, opts ...HandlerOption) *FinalizePasswordResetHandler {
	o := buildHandlerOptions(DefaultResetWindow, opts...)
	return &FinalizePasswordResetHandler{
		repo:     repo,
		logger:   o.logger,
		activity: o.activity,
		now:      o.now,
	}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.NewPassword != event.ConfirmPassword {
		return ErrPasswordMismatch
	}

	hash, err := HashPassword(event.NewPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.OneTimeCodes().ConsumeTx(ctx, tx, event.AccountID, event.Code, PurposeForgotPassword, h.now()); err != nil {
			return err
		}

		if err := h.repo.Accounts().UpdatePasswordTx(ctx, tx, event.AccountID, hash); err != nil {
			return err
		}

		return h.repo.OneTimeCodes().PurgeAccountTx(ctx, tx, event.AccountID)
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset transaction failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		AccountID: event.AccountID.String(),
	}, h.now)

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{
			Message: "Password reset successful",
			Success: true,
		})
	}

	return nil
}
