package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type VerifySignupMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	EmailCode  string    `json:"email_otp"`
	SMSCode    string    `json:"sms_otp"`
	OnResponse func(resp *VerifySignupResponse)
}

func (m VerifySignupMessage) Type() string { return "account.verify_signup" }

type VerifySignupResponse struct {
	Account *Account `json:"account"`
	Message string   `json:"message"`
	Success bool     `json:"success"`
}

// VerifySignupHandler confirms ownership of both contact channels. The two
// codes are consumed in one transaction so a partial match leaves both
// outstanding. Users become active on success; admins keep whatever status
// signup assigned, their activation is the approval flow's job.
type VerifySignupHandler struct {
	repo     RepositoryManager
	machine  AccountStateMachine
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

func NewVerifySignupHandler(repo RepositoryManager, machine AccountStateMachine, opts ...HandlerOption) *VerifySignupHandler {
	o := buildHandlerOptions(DefaultVerifyWindow, opts...)
	return &VerifySignupHandler{
		repo:     repo,
		machine:  machine,
		logger:   o.logger,
		activity: o.activity,
		now:      o.now,
	}
}

func (h *VerifySignupHandler) Execute(ctx context.Context, event VerifySignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifySignupHandler) execute(ctx context.Context, event VerifySignupMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}
	activated := false

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := h.now()

		if err := h.repo.OneTimeCodes().ConsumeTx(ctx, tx, event.AccountID, event.EmailCode, PurposeEmailVerify, now); err != nil {
			return err
		}
		if err := h.repo.OneTimeCodes().ConsumeTx(ctx, tx, event.AccountID, event.SMSCode, PurposeSMSVerify, now); err != nil {
			return err
		}

		var err error
		if account, err = h.repo.Accounts().GetByIDTx(ctx, tx, event.AccountID); err != nil {
			return err
		}

		if account.Role != RoleAdmin && account.Status == StatusPending {
			actor := ActorRef{ID: account.ID.String(), Type: "account"}
			if account, err = h.machine.TransitionTx(ctx, tx, actor, account, StatusActive,
				WithTransitionReason("signup verification completed")); err != nil {
				return err
			}
			activated = true
		}

		return h.repo.OneTimeCodes().PurgeAccountTx(ctx, tx, event.AccountID)
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "signup verification transaction failed")
	}

	if activated {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventAccountActivated,
			Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
			AccountID: account.ID.String(),
			ToStatus:  account.Status,
		}, h.now)
	}

	message := "Account verified successfully"
	if account.Role == RoleAdmin {
		message = "OTPs verified successfully"
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifySignupResponse{
			Account: account,
			Message: message,
			Success: true,
		})
	}

	return nil
}
