package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type LoginUserMessage struct {
	Role       Role   `json:"role"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	OnResponse func(resp *LoginChallengeResponse)
}

func (m LoginUserMessage) Type() string { return "auth.login" }

// LoginChallengeResponse acknowledges the first login phase. No session
// exists yet; the caller must come back with the delivered codes.
type LoginChallengeResponse struct {
	AccountID string `json:"account_id"`
	Message   string `json:"message"`
	Success   bool   `json:"success"`
}

// LoginUserHandler runs the password phase of user login. A correct
// password never yields a session directly: it issues one code per contact
// channel and both must be presented to the verification handler.
type LoginUserHandler struct {
	repo     RepositoryManager
	notifier Notifier
	logger   Logger
	activity ActivitySink
	window   time.Duration
	now      func() time.Time
}

func NewLoginUserHandler(repo RepositoryManager, notifier Notifier, opts ...HandlerOption) *LoginUserHandler {
	o := buildHandlerOptions(DefaultVerifyWindow, opts...)
	return &LoginUserHandler{
		repo:     repo,
		notifier: notifier,
		logger:   o.logger,
		activity: o.activity,
		window:   o.window,
		now:      o.now,
	}
}

func (h *LoginUserHandler) Execute(ctx context.Context, event LoginUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LoginUserHandler) execute(ctx context.Context, event LoginUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByRoleIdentifier(ctx, event.Role, event.Identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			h.recordFailure(ctx, "", "unknown identifier")
			return ErrInvalidCredentials
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	// Status gate runs before the password check.
	if !account.IsActive() {
		h.recordFailure(ctx, account.ID.String(), "account not active")
		return ErrAccountNotActive
	}

	if err := ComparePasswordAndHash(event.Password, account.PasswordHash); err != nil {
		h.recordFailure(ctx, account.ID.String(), "bad password")
		return ErrInvalidCredentials
	}

	emailCode := MustGenerateOTP()
	smsCode := MustGenerateOTP()
	expiresAt := h.now().Add(h.window)

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.OneTimeCodes().IssueTx(ctx, tx, account.ID, PurposeLoginEmail, emailCode, expiresAt); err != nil {
			return err
		}
		_, err := h.repo.OneTimeCodes().IssueTx(ctx, tx, account.ID, PurposeLoginSMS, smsCode, expiresAt)
		return err
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue login codes")
	}

	if err := h.notifier.SendEmail(ctx, loginEmailOTP(account.Email, emailCode)); err != nil {
		h.logger.Error("login email delivery failed: %v", err)
	}
	if err := h.notifier.SendSMS(ctx, loginSMSOTP(account.Phone, smsCode)); err != nil {
		h.logger.Error("login SMS delivery failed: %v", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventCodeIssued,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"flow": "login"},
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

func (h *LoginUserHandler) recordFailure(ctx context.Context, accountID, reason string) {
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		AccountID: accountID,
		Metadata:  map[string]any{"reason": reason},
	}, h.now)
}
