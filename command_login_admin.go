package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type LoginAdminMessage struct {
	Email      string `json:"email"`
	AccessKey  string `json:"admin_access_key"`
	OnResponse func(resp *LoginChallengeResponse)
}

func (m LoginAdminMessage) Type() string { return "auth.login_admin" }

// LoginAdminHandler runs the first phase of admin login. Admins authenticate
// with email plus their access key and receive a single code over email;
// there is no SMS channel on this flow.
type LoginAdminHandler struct {
	repo     RepositoryManager
	notifier Notifier
	logger   Logger
	activity ActivitySink
	window   time.Duration
	now      func() time.Time
}

func NewLoginAdminHandler(repo RepositoryManager, notifier Notifier, opts ...HandlerOption) *LoginAdminHandler {
	o := buildHandlerOptions(DefaultVerifyWindow, opts...)
	return &LoginAdminHandler{
		repo:     repo,
		notifier: notifier,
		logger:   o.logger,
		activity: o.activity,
		window:   o.window,
		now:      o.now,
	}
}

func (h *LoginAdminHandler) Execute(ctx context.Context, event LoginAdminMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin login",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LoginAdminHandler) execute(ctx context.Context, event LoginAdminMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByEmailAccessKey(ctx, event.Email, event.AccessKey)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			recordActivity(ctx, h.activity, h.logger, ActivityEvent{
				EventType: ActivityEventLoginFailure,
				Metadata:  map[string]any{"reason": "unknown admin credentials"},
			}, h.now)
			return ErrInvalidCredentials
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up admin")
	}

	if !account.IsActive() {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			AccountID: account.ID.String(),
			Metadata:  map[string]any{"reason": "admin not active"},
		}, h.now)
		return ErrAccountNotActive
	}

	emailCode := MustGenerateOTP()
	expiresAt := h.now().Add(h.window)

	if _, err := h.repo.OneTimeCodes().Issue(ctx, account.ID, PurposeLoginEmail, emailCode, expiresAt); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue login code")
	}

	if err := h.notifier.SendEmail(ctx, adminLoginEmailOTP(account.Email, emailCode)); err != nil {
		h.logger.Error("admin login email delivery failed: %v", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventCodeIssued,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"flow": "admin_login"},
	}, h.now)

	if event.OnResponse != nil {
		event.OnResponse(&LoginChallengeResponse{
			AccountID: account.ID.String(),
			Message:   "OTP sent for login verification",
			Success:   true,
		})
	}

	return nil
}
