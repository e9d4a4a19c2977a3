package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// VerificationDocsBucket is where uploaded identity proofs land.
const VerificationDocsBucket = "verification-docs"

type SignupUserMessage struct {
	Role            Role   `json:"role"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	StudentID       string `json:"student_id"`
	EmployeeID      string `json:"employee_id"`
	IDCard          Upload `json:"-"`
	UseHashid       bool
	OnResponse      func(resp *SignupUserResponse)
}

func (m SignupUserMessage) Type() string { return "account.signup" }

type SignupUserResponse struct {
	Account *Account `json:"account"`
	Message string   `json:"message"`
	Success bool     `json:"success"`
}

type SignupUserHandler struct {
	repo     RepositoryManager
	uploader Uploader
	notifier Notifier
	logger   Logger
	activity ActivitySink
	window   time.Duration
	now      func() time.Time
}

func NewSignupUserHandler(repo RepositoryManager, uploader Uploader, notifier Notifier, opts ...HandlerOption) *SignupUserHandler {
	o := buildHandlerOptions(DefaultVerifyWindow, opts...)
	return &SignupUserHandler{
		repo:     repo,
		uploader: uploader,
		notifier: notifier,
		logger:   o.logger,
		activity: o.activity,
		window:   o.window,
		now:      o.now,
	}
}

func (h *SignupUserHandler) Execute(ctx context.Context, event SignupUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupUserHandler) execute(ctx context.Context, event SignupUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Password != event.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if !isUserRole(event.Role) {
		return goerrors.New("unsupported role for signup", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"role": event.Role})
	}

	if len(event.IDCard.Data) == 0 {
		return goerrors.New("ID proof is required", goerrors.CategoryValidation)
	}

	phone, err := NormalizePhone(event.Phone)
	if err != nil {
		return err
	}

	identifier := event.StudentID
	if event.Role == RoleLibrarian {
		identifier = event.EmployeeID
	}
	if identifier == "" {
		return goerrors.New("role identifier is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"role": event.Role})
	}

	if err := h.checkCollisions(ctx, event, phone, identifier); err != nil {
		return err
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	docName := fmt.Sprintf("%s/%d_%s", event.Role, h.now().UnixMilli(), event.IDCard.Name)
	docURL, err := h.uploader.Upload(ctx, VerificationDocsBucket, docName, event.IDCard)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store identity document")
	}

	account := &Account{
		Role:         event.Role,
		Email:        event.Email,
		Phone:        phone,
		PasswordHash: hash,
		Status:       StatusPending,
		IDCardURL:    docURL,
	}
	if event.Role == RoleStudent {
		account.StudentID = event.StudentID
	} else {
		account.EmployeeID = event.EmployeeID
	}
	if event.UseHashid {
		if id, err := hashid.NewUUID(account.Email); err == nil {
			account.ID = id
		}
	}

	emailCode := MustGenerateOTP()
	smsCode := MustGenerateOTP()
	expiresAt := h.now().Add(h.window)

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	// Delivery is best effort, the account and codes are already durable.
	if err := h.notifier.SendEmail(ctx, signupEmailOTP(account.Email, emailCode)); err != nil {
		h.logger.Error("signup email delivery failed: %v", err)
	}
	if err := h.notifier.SendSMS(ctx, signupSMSOTP(account.Phone, smsCode)); err != nil {
		h.logger.Error("signup SMS delivery failed: %v", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountCreated,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		ToStatus:  account.Status,
		Metadata:  map[string]any{"role": account.Role},
	}, h.now)

	if event.OnResponse != nil {
		event.OnResponse(&SignupUserResponse{
			Account: account,
			Message: "Signup successful. Please verify OTPs sent to your email and phone.",
			Success: true,
		})
	}

	return nil
}

// checkCollisions enforces identity uniqueness. Email and phone are unique
// across every role, so the lookup runs unscoped. An account that never
// completed verification does not block its identifiers; the stale record is
// removed so the signup can be retried. Admin rows are never reclaimed here.
func (h *SignupUserHandler) checkCollisions(ctx context.Context, event SignupUserMessage, phone, identifier string) error {
	existing, err := h.repo.Accounts().FindByEmailOrPhone(ctx, event.Email, phone)
	if err != nil && !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing accounts")
	}

	if existing != nil {
		if existing.IsActive() || existing.Role == RoleAdmin {
			field := "Phone"
			if existing.Email == event.Email {
				field = "Email"
			}
			return conflictError(field)
		}
		if err := h.repo.Accounts().Delete(ctx, existing.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove stale signup")
		}
	}

	collision, err := h.repo.Accounts().FindByRoleIdentifier(ctx, event.Role, identifier)
	if err != nil && !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check role identifier")
	}
	if collision != nil {
		if event.Role == RoleStudent {
			return conflictError("STUDENT ID")
		}
		return conflictError("EMPLOYEE ID")
	}

	return nil
}

func isUserRole(role Role) bool {
	for _, r := range UserRoles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizePhone parses the number and renders it in E.164 form. Numbers
// without a country prefix are rejected.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
