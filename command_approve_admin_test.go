package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestApproveAdmin(t *testing.T) {
	repo := NewMockRepositoryManager()
	machine := &MockStateMachine{}
	sink := &CapturingSink{}
	handler := NewApproveAdminHandler(repo, machine,
		WithHandlerLogger(silentLogger{}),
		WithHandlerActivitySink(sink),
	)

	first := &Account{ID: uuid.New(), Role: RoleAdmin, Status: StatusActive, IsFirstAdmin: true}
	target := &Account{ID: uuid.New(), Role: RoleAdmin, Status: StatusPendingApproval}

	repo.accounts.On("GetByID", mock.Anything, first.ID).Return(first, nil)
	repo.accounts.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	machine.On("Transition", mock.Anything, ActorRef{ID: first.ID.String(), Type: "admin"}, target, StatusActive).
		Return(&Account{ID: target.ID, Role: RoleAdmin, Status: StatusActive}, nil)

	var resp *ApproveAdminResponse
	err := handler.Execute(context.Background(), ApproveAdminMessage{
		RequesterID: first.ID,
		TargetID:    target.ID,
		OnResponse:  func(r *ApproveAdminResponse) { resp = r },
	})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, "Admin approved successfully", resp.Message)
	assert.Equal(t, StatusActive, resp.Account.Status)
	assert.Equal(t, []ActivityEventType{ActivityEventAccountApproved}, sink.Verbs())
}

func TestApproveAdminRequiresFirstAdmin(t *testing.T) {
	repo := NewMockRepositoryManager()
	machine := &MockStateMachine{}
	handler := NewApproveAdminHandler(repo, machine, WithHandlerLogger(silentLogger{}))

	regular := &Account{ID: uuid.New(), Role: RoleAdmin, Status: StatusActive, IsFirstAdmin: false}
	repo.accounts.On("GetByID", mock.Anything, regular.ID).Return(regular, nil)

	err := handler.Execute(context.Background(), ApproveAdminMessage{
		RequesterID: regular.ID,
		TargetID:    uuid.New(),
	})
	assert.ErrorIs(t, err, ErrFirstAdminOnly)
	machine.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveAdminRejectsNonAdminRequester(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewApproveAdminHandler(repo, &MockStateMachine{}, WithHandlerLogger(silentLogger{}))

	student := &Account{ID: uuid.New(), Role: RoleStudent, Status: StatusActive}
	repo.accounts.On("GetByID", mock.Anything, student.ID).Return(student, nil)

	err := handler.Execute(context.Background(), ApproveAdminMessage{
		RequesterID: student.ID,
		TargetID:    uuid.New(),
	})
	assert.ErrorIs(t, err, ErrFirstAdminOnly)
}

func TestApproveAdminUnknownTarget(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewApproveAdminHandler(repo, &MockStateMachine{}, WithHandlerLogger(silentLogger{}))

	first := &Account{ID: uuid.New(), Role: RoleAdmin, Status: StatusActive, IsFirstAdmin: true}
	targetID := uuid.New()
	repo.accounts.On("GetByID", mock.Anything, first.ID).Return(first, nil)
	repo.accounts.On("GetByID", mock.Anything, targetID).Return(nil, notFound())

	err := handler.Execute(context.Background(), ApproveAdminMessage{
		RequesterID: first.ID,
		TargetID:    targetID,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin")
}

func TestApproveAdminRejectsNonAdminTarget(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewApproveAdminHandler(repo, &MockStateMachine{}, WithHandlerLogger(silentLogger{}))

	first := &Account{ID: uuid.New(), Role: RoleAdmin, Status: StatusActive, IsFirstAdmin: true}
	student := &Account{ID: uuid.New(), Role: RoleStudent, Status: StatusActive}
	repo.accounts.On("GetByID", mock.Anything, first.ID).Return(first, nil)
	repo.accounts.On("GetByID", mock.Anything, student.ID).Return(student, nil)

	err := handler.Execute(context.Background(), ApproveAdminMessage{
		RequesterID: first.ID,
		TargetID:    student.ID,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
