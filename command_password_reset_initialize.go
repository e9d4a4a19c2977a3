package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (m InitializePasswordResetMessage) Type() string { return "auth.password_reset" }

type InitializePasswordResetResponse struct {
	AccountID string `json:"account_id"`
	Message   string `json:"message"`
	Success   bool   `json:"success"`
}

// InitializePasswordResetHandler starts the forgot-password flow. The reset
// code travels over email only and gets a longer validity window than the
// verification codes. Unknown accounts are reported as not found.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier Notifier
	logger   Logger
	activity ActivitySink
	window   time.Duration
	now      func() time.Time
}

func NewInitializePasswordResetHandler(repo RepositoryManager, notifier Notifier, opts ...HandlerOption) *InitializePasswordResetHandler {
	o := buildHandlerOptions(DefaultResetWindow, opts...)
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: notifier,
		logger:   o.logger,
		activity: o.activity,
		window:   o.window,
		now:      o.now,
	}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByEmailRole(ctx, event.Email, event.Role)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			what := "user"
			if event.Role == RoleAdmin {
				what = "admin"
			}
			return notFoundError(what)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account for password reset")
	}

	code := MustGenerateOTP()
	expiresAt := h.now().Add(h.window)

	if _, err := h.repo.OneTimeCodes().Issue(ctx, account.ID, PurposeForgotPassword, code, expiresAt); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue reset code")
	}

	if err := h.notifier.SendEmail(ctx, passwordResetEmailOTP(account.Email, code, account.Role == RoleAdmin)); err != nil {
		h.logger.Error("password reset email delivery failed: %v", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventCodeIssued,
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"flow": "forgot_password"},
	}, h.now)

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			AccountID: account.ID.String(),
			Message:   "Password reset OTP sent to email",
			Success:   true,
		})
	}

	return nil
}
