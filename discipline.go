package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultSuspensionReason is recorded when an admin suspends without one.
const DefaultSuspensionReason = "Suspended by admin"

// SuspensionPolicy is the three-strikes rule. Threshold is the warning count
// at which an account is suspended automatically, Duration how long the
// suspension lasts.
type SuspensionPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultSuspensionPolicy suspends on the third warning for thirty days.
var DefaultSuspensionPolicy = SuspensionPolicy{
	Threshold: 3,
	Duration:  30 * 24 * time.Hour,
}

type IssueWarningInput struct {
	AccountID   uuid.UUID   `json:"account_id"`
	AdminID     uuid.UUID   `json:"admin_id"`
	Type        WarningType `json:"type"`
	Description string      `json:"description"`
}

type IssueWarningResult struct {
	Warning      *Warning `json:"warning"`
	WarningCount int      `json:"warning_count"`
	Suspended    bool     `json:"suspended"`
}

// DisciplinaryEngine applies the warning and suspension rules. Warning
// creation, the counter bump, and any resulting suspension commit together;
// the notification email goes out afterwards and its failure is only logged.
type DisciplinaryEngine struct {
	repo     RepositoryManager
	notifier Notifier
	policy   SuspensionPolicy
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

type EngineOption func(*DisciplinaryEngine)

// WithEnginePolicy overrides the default three-strikes policy.
func WithEnginePolicy(policy SuspensionPolicy) EngineOption {
	return func(e *DisciplinaryEngine) {
		if policy.Threshold > 0 && policy.Duration > 0 {
			e.policy = policy
		}
	}
}

// WithEngineLogger overrides the default stdout logger.
func WithEngineLogger(logger Logger) EngineOption {
	return func(e *DisciplinaryEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEngineActivitySink publishes disciplinary events to the sink.
func WithEngineActivitySink(sink ActivitySink) EngineOption {
	return func(e *DisciplinaryEngine) {
		e.activity = normalizeActivitySink(sink)
	}
}

// WithEngineClock injects a custom clock (useful for tests).
func WithEngineClock(clock func() time.Time) EngineOption {
	return func(e *DisciplinaryEngine) {
		if clock != nil {
			e.now = clock
		}
	}
}

func NewDisciplinaryEngine(repo RepositoryManager, notifier Notifier, opts ...EngineOption) *DisciplinaryEngine {
	e := &DisciplinaryEngine{
		repo:     repo,
		notifier: notifier,
		policy:   DefaultSuspensionPolicy,
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	return e
}

// IssueWarning records a warning against the account and bumps its counter.
// Crossing the policy threshold suspends the account in the same
// transaction. The counter increment is a single conditional update, so two
// admins warning concurrently each observe a distinct post-increment value
// and only one of them trips the threshold.
func (e *DisciplinaryEngine) IssueWarning(ctx context.Context, actor ActorRef, input IssueWarningInput) (*IssueWarningResult, error) {
	if !input.Type.IsValid() {
		return nil, goerrors.New("unknown warning type", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidWarning).
			WithMetadata(map[string]any{"type": input.Type})
	}
	if input.Description == "" {
		return nil, goerrors.New("warning description is required", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidWarning)
	}

	account, err := e.repo.Accounts().GetByID(ctx, input.AccountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFoundError("user")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account for warning")
	}

	result := &IssueWarningResult{}

	err = e.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		warning := &Warning{
			AccountID:   input.AccountID,
			AdminID:     input.AdminID,
			Type:        input.Type,
			Description: input.Description,
		}

		var err error
		if result.Warning, err = e.repo.Warnings().CreateTx(ctx, tx, warning); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create warning")
		}

		bumped, err := e.repo.Accounts().IncrementWarningCountTx(ctx, tx, input.AccountID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to increment warning count")
		}
		result.WarningCount = bumped.WarningCount

		if bumped.WarningCount >= e.policy.Threshold && !bumped.IsSuspended {
			until := e.now().Add(e.policy.Duration)
			reason := fmt.Sprintf("Automatic suspension after %d warnings", bumped.WarningCount)
			if err := e.repo.Accounts().SetSuspensionTx(ctx, tx, input.AccountID, &until, reason); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to suspend account")
			}
			result.Suspended = true
		}

		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "warning transaction failed")
	}

	if err := e.notifier.SendEmail(ctx, warningEmail(account.Email, input.Type, input.Description, result.WarningCount)); err != nil {
		e.logger.Error("warning email delivery failed: %v", err)
	}

	recordActivity(ctx, e.activity, e.logger, ActivityEvent{
		EventType: ActivityEventWarningIssued,
		Actor:     actor,
		AccountID: input.AccountID.String(),
		Metadata: map[string]any{
			"type":          input.Type,
			"warning_count": result.WarningCount,
		},
	}, e.now)

	if result.Suspended {
		recordActivity(ctx, e.activity, e.logger, ActivityEvent{
			EventType: ActivityEventAccountSuspended,
			Actor:     ActorRef{Type: "system"},
			AccountID: input.AccountID.String(),
			Metadata:  map[string]any{"warning_count": result.WarningCount},
		}, e.now)
	}

	return result, nil
}

// Suspend manually suspends the account for the given number of days. Zero
// days falls back to the policy duration, an empty reason to the default.
func (e *DisciplinaryEngine) Suspend(ctx context.Context, actor ActorRef, accountID uuid.UUID, days int, reason string) (*Account, error) {
	if reason == "" {
		reason = DefaultSuspensionReason
	}

	duration := e.policy.Duration
	if days > 0 {
		duration = time.Duration(days) * 24 * time.Hour
	}
	until := e.now().Add(duration)

	if err := e.repo.Accounts().SetSuspension(ctx, accountID, &until, reason); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFoundError("user")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to suspend account")
	}

	recordActivity(ctx, e.activity, e.logger, ActivityEvent{
		EventType: ActivityEventAccountSuspended,
		Actor:     actor,
		AccountID: accountID.String(),
		Metadata:  map[string]any{"reason": reason, "until": until},
	}, e.now)

	return e.repo.Accounts().GetByID(ctx, accountID)
}

// Unsuspend reinstates the account. The warning counter is untouched: a
// reinstated account is still one warning away from the threshold it already
// crossed, unless an operator resets the count out of band.
func (e *DisciplinaryEngine) Unsuspend(ctx context.Context, actor ActorRef, accountID uuid.UUID) (*Account, error) {
	if err := e.repo.Accounts().ClearSuspension(ctx, accountID); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFoundError("user")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reinstate account")
	}

	recordActivity(ctx, e.activity, e.logger, ActivityEvent{
		EventType: ActivityEventAccountReinstated,
		Actor:     actor,
		AccountID: accountID.String(),
	}, e.now)

	return e.repo.Accounts().GetByID(ctx, accountID)
}
