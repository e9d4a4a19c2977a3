package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type VerifyLoginMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	EmailCode  string    `json:"email_otp"`
	SMSCode    string    `json:"sms_otp"`
	OnResponse func(resp *VerifyLoginResponse)
}

func (m VerifyLoginMessage) Type() string { return "auth.verify_login" }

type VerifyLoginResponse struct {
	Token   string   `json:"token"`
	Account *Account `json:"account"`
	Message string   `json:"message"`
	Success bool     `json:"success"`
}

// VerifyLoginHandler completes login. Users must present both channel codes,
// admins only the email one. Consumption and purge happen in a single
// transaction; the session token is minted only after the commit.
type VerifyLoginHandler struct {
	repo     RepositoryManager
	tokener  TokenService
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

func NewVerifyLoginHandler(repo RepositoryManager, tokener TokenService, opts ...HandlerOption) *VerifyLoginHandler {
	o := buildHandlerOptions(DefaultVerifyWindow, opts...)
	return &VerifyLoginHandler{
		repo:     repo,
		tokener:  tokener,
		logger:   o.logger,
		activity: o.activity,
		now:      o.now,
	}
}

func (h *VerifyLoginHandler) Execute(ctx context.Context, event VerifyLoginMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyLoginHandler) execute(ctx context.Context, event VerifyLoginMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByID(ctx, event.AccountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrCodeInvalid
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := h.now()

		if err := h.repo.OneTimeCodes().ConsumeTx(ctx, tx, account.ID, event.EmailCode, PurposeLoginEmail, now); err != nil {
			return err
		}

		if account.Role != RoleAdmin {
			if err := h.repo.OneTimeCodes().ConsumeTx(ctx, tx, account.ID, event.SMSCode, PurposeLoginSMS, now); err != nil {
				return err
			}
		}

		return h.repo.OneTimeCodes().PurgeAccountTx(ctx, tx, account.ID)
	})
	if err != nil {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			AccountID: account.ID.String(),
			Metadata:  map[string]any{"reason": "otp verification failed"},
		}, h.now)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "login verification transaction failed")
	}

	token, err := h.tokener.Generate(account.ID.String(), account.Role)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint session token")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"role": account.Role},
	}, h.now)

	message := "Login successful"
	if account.Role == RoleAdmin {
		message = "Admin login successful"
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyLoginResponse{
			Token:   token,
			Account: account,
			Message: message,
			Success: true,
		})
	}

	return nil
}
