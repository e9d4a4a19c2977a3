package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type ApproveAdminMessage struct {
	RequesterID uuid.UUID `json:"requester_id"`
	TargetID    uuid.UUID `json:"target_admin_id"`
	OnResponse  func(resp *ApproveAdminResponse)
}

func (m ApproveAdminMessage) Type() string { return "account.approve_admin" }

type ApproveAdminResponse struct {
	Account *Account `json:"account"`
	Message string   `json:"message"`
	Success bool     `json:"success"`
}

// ApproveAdminHandler activates a pending admin. Only the first admin holds
// this power.
type ApproveAdminHandler struct {
	repo     RepositoryManager
	machine  AccountStateMachine
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

func NewApproveAdminHandler(repo RepositoryManager, machine AccountStateMachine, opts ...HandlerOption) *ApproveAdminHandler {
	o := buildHandlerOptions(DefaultVerifyWindow, opts...)
	return &ApproveAdminHandler{
		repo:     repo,
		machine:  machine,
		logger:   o.logger,
		activity: o.activity,
		now:      o.now,
	}
}

func (h *ApproveAdminHandler) Execute(ctx context.Context, event ApproveAdminMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin approval",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ApproveAdminHandler) execute(ctx context.Context, event ApproveAdminMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	requester, err := h.repo.Accounts().GetByID(ctx, event.RequesterID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrFirstAdminOnly
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up requester")
	}

	if requester.Role != RoleAdmin || !requester.IsFirstAdmin {
		return ErrFirstAdminOnly
	}

	target, err := h.repo.Accounts().GetByID(ctx, event.TargetID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return notFoundError("admin")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up target admin")
	}

	if target.Role != RoleAdmin {
		return decorate(ErrInvalidTransition, map[string]any{
			"reason": "target is not an admin",
		})
	}

	actor := ActorRef{ID: requester.ID.String(), Type: "admin"}
	if target, err = h.machine.Transition(ctx, actor, target, StatusActive,
		WithTransitionReason("approved by first admin")); err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountApproved,
		Actor:     actor,
		AccountID: target.ID.String(),
		ToStatus:  target.Status,
	}, h.now)

	if event.OnResponse != nil {
		event.OnResponse(&ApproveAdminResponse{
			Account: target,
			Message: "Admin approved successfully",
			Success: true,
		})
	}

	return nil
}
