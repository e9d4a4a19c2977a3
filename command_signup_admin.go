package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type SignupAdminMessage struct {
	AdminKey        string `json:"admin_key"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	OnResponse      func(resp *SignupAdminResponse)
}

func (m SignupAdminMessage) Type() string { return "account.signup_admin" }

type SignupAdminResponse struct {
	Account      *Account `json:"account"`
	IsFirstAdmin bool     `json:"is_first_admin"`
	Message      string   `json:"message"`
	Success      bool     `json:"success"`
}

// SignupAdminHandler registers administrators. Each signup consumes a
// pre-provisioned one-shot key; the very first admin in the system comes up
// active, later ones wait for the first admin's approval.
type SignupAdminHandler struct {
	repo     RepositoryManager
	notifier Notifier
	logger   Logger
	activity ActivitySink
	window   time.Duration
	now      func() time.Time
}

func NewSignupAdminHandler(repo RepositoryManager, notifier Notifier, opts ...HandlerOption) *SignupAdminHandler {
	o := buildHandlerOptions(DefaultVerifyWindow, opts...)
	return &SignupAdminHandler{
		repo:     repo,
		notifier: notifier,
		logger:   o.logger,
		activity: o.activity,
		window:   o.window,
		now:      o.now,
	}
}

func (h *SignupAdminHandler) Execute(ctx context.Context, event SignupAdminMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupAdminHandler) execute(ctx context.Context, event SignupAdminMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Password != event.ConfirmPassword {
		return ErrPasswordMismatch
	}

	phone, err := NormalizePhone(event.Phone)
	if err != nil {
		return err
	}

	// Email and phone are unique across every role; the lookup runs unscoped
	// so a user account holding the identifiers blocks the admin signup too.
	existing, err := h.repo.Accounts().FindByEmailOrPhone(ctx, event.Email, phone)
	if err != nil && !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing accounts")
	}

	if existing != nil {
		if existing.Status == StatusActive || existing.Status == StatusPendingApproval {
			field := "Phone"
			if existing.Email == event.Email {
				field = "Email"
			}
			return conflictError(field)
		}
		if err := h.repo.Accounts().Delete(ctx, existing.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove stale admin signup")
		}
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	account := &Account{
		Role:         RoleAdmin,
		Email:        event.Email,
		Phone:        phone,
		PasswordHash: hash,
	}

	emailCode := MustGenerateOTP()
	smsCode := MustGenerateOTP()
	expiresAt := h.now().Add(h.window)

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.AdminKeys().ClaimTx(ctx, tx, event.AdminKey, h.now()); err != nil {
			return err
		}

		count, err := h.repo.Accounts().CountAdmins(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count admins")
		}

		account.ApplyProfile(AdminProfile{
			AccessKey:    event.AdminKey,
			IsFirstAdmin: count == 0,
		})
		if account.IsFirstAdmin {
			account.Status = StatusActive
		} else {
			account.Status = StatusPendingApproval
		}

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create admin account")
		}

		if _, err = h.repo.OneTimeCodes().IssueTx(ctx, tx, account.ID, PurposeEmailVerify, emailCode, expiresAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue email OTP")
		}
		if _, err = h.repo.OneTimeCodes().IssueTx(ctx, tx, account.ID, PurposeSMSVerify, smsCode, expiresAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue SMS OTP")
		}

		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "admin signup transaction failed")
	}

	if err := h.notifier.SendEmail(ctx, adminSignupEmailOTP(account.Email, emailCode)); err != nil {
		h.logger.Error("admin signup email delivery failed: %v", err)
	}
	if err := h.notifier.SendSMS(ctx, adminSignupSMSOTP(account.Phone, smsCode)); err != nil {
		h.logger.Error("admin signup SMS delivery failed: %v", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountCreated,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		ToStatus:  account.Status,
		Metadata:  map[string]any{"role": RoleAdmin, "first_admin": account.IsFirstAdmin},
	}, h.now)

	message := "Admin signup successful. Awaiting approval from First Admin."
	if account.IsFirstAdmin {
		message = "First admin created. Please verify OTP."
	}

	if event.OnResponse != nil {
		event.OnResponse(&SignupAdminResponse{
			Account:      account,
			IsFirstAdmin: account.IsFirstAdmin,
			Message:      message,
			Success:      true,
		})
	}

	return nil
}
