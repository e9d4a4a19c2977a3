package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func activeStudent(t *testing.T, password string) *Account {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &Account{
		ID:           uuid.New(),
		Role:         RoleStudent,
		Email:        "sam@uni.edu",
		Phone:        testPhone,
		PasswordHash: hash,
		Status:       StatusActive,
		StudentID:    "S-2025-104",
	}
}

func TestLoginIssuesBothChannelCodes(t *testing.T) {
	repo := NewMockRepositoryManager()
	notifier := &CapturingNotifier{}
	handler := NewLoginUserHandler(repo, notifier, WithHandlerLogger(silentLogger{}))

	account := activeStudent(t, "hunter2!")
	repo.accounts.On("GetByRoleIdentifier", mock.Anything, RoleStudent, "S-2025-104").Return(account, nil)
	repo.codes.On("IssueTx", mock.Anything, mock.Anything, account.ID, PurposeLoginEmail, mock.Anything, mock.Anything).
		Return(&OneTimeCode{}, nil)
	repo.codes.On("IssueTx", mock.Anything, mock.Anything, account.ID, PurposeLoginSMS, mock.Anything, mock.Anything).
		Return(&OneTimeCode{}, nil)

	var resp *LoginChallengeResponse
	err := handler.Execute(context.Background(), LoginUserMessage{
		Role:       RoleStudent,
		Identifier: "S-2025-104",
		Password:   "hunter2!",
		OnResponse: func(r *LoginChallengeResponse) { resp = r },
	})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, account.ID.String(), resp.AccountID)
	assert.Equal(t, "OTP sent for login verification", resp.Message)

	require.Len(t, notifier.Emails, 1)
	assert.Equal(t, "Login OTP", notifier.Emails[0].Subject)
	require.Len(t, notifier.Texts, 1)

	repo.AssertExpectations(t)
}

func TestLoginUnknownIdentifier(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewLoginUserHandler(repo, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	repo.accounts.On("GetByRoleIdentifier", mock.Anything, RoleStudent, "nobody").
		Return(nil, notFound())

	err := handler.Execute(context.Background(), LoginUserMessage{
		Role:       RoleStudent,
		Identifier: "nobody",
		Password:   "whatever",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginStatusGateRunsBeforePasswordCheck(t *testing.T) {
	repo := NewMockRepositoryManager()
	sink := &CapturingSink{}
	handler := NewLoginUserHandler(repo, &CapturingNotifier{},
		WithHandlerLogger(silentLogger{}),
		WithHandlerActivitySink(sink),
	)

	account := activeStudent(t, "hunter2!")
	account.Status = StatusPending
	repo.accounts.On("GetByRoleIdentifier", mock.Anything, RoleStudent, "S-2025-104").Return(account, nil)

	// Even the correct password gets the not-active error.
	err := handler.Execute(context.Background(), LoginUserMessage{
		Role:       RoleStudent,
		Identifier: "S-2025-104",
		Password:   "hunter2!",
	})
	assert.ErrorIs(t, err, ErrAccountNotActive)
	assert.Equal(t, []ActivityEventType{ActivityEventLoginFailure}, sink.Verbs())
	repo.codes.AssertNotCalled(t, "IssueTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewLoginUserHandler(repo, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	account := activeStudent(t, "hunter2!")
	repo.accounts.On("GetByRoleIdentifier", mock.Anything, RoleStudent, "S-2025-104").Return(account, nil)

	err := handler.Execute(context.Background(), LoginUserMessage{
		Role:       RoleStudent,
		Identifier: "S-2025-104",
		Password:   "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLoginIssuesEmailCodeOnly(t *testing.T) {
	repo := NewMockRepositoryManager()
	notifier := &CapturingNotifier{}
	handler := NewLoginAdminHandler(repo, notifier, WithHandlerLogger(silentLogger{}))

	admin := &Account{ID: uuid.New(), Role: RoleAdmin, Email: "root@uni.edu", Status: StatusActive}
	repo.accounts.On("GetByEmailAccessKey", mock.Anything, "root@uni.edu", "ADM-KEY-001").Return(admin, nil)
	repo.codes.On("Issue", mock.Anything, admin.ID, PurposeLoginEmail, mock.Anything, mock.Anything).
		Return(&OneTimeCode{}, nil)

	var resp *LoginChallengeResponse
	err := handler.Execute(context.Background(), LoginAdminMessage{
		Email:      "root@uni.edu",
		AccessKey:  "ADM-KEY-001",
		OnResponse: func(r *LoginChallengeResponse) { resp = r },
	})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, admin.ID.String(), resp.AccountID)

	require.Len(t, notifier.Emails, 1)
	assert.Equal(t, "Admin Login OTP", notifier.Emails[0].Subject)
	assert.Empty(t, notifier.Texts)
}

func TestAdminLoginUnknownCredentials(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewLoginAdminHandler(repo, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	repo.accounts.On("GetByEmailAccessKey", mock.Anything, "root@uni.edu", "bad-key").
		Return(nil, notFound())

	err := handler.Execute(context.Background(), LoginAdminMessage{
		Email:     "root@uni.edu",
		AccessKey: "bad-key",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLoginPendingApprovalBlocked(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewLoginAdminHandler(repo, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	admin := &Account{ID: uuid.New(), Role: RoleAdmin, Email: "second@uni.edu", Status: StatusPendingApproval}
	repo.accounts.On("GetByEmailAccessKey", mock.Anything, "second@uni.edu", "ADM-KEY-002").Return(admin, nil)

	err := handler.Execute(context.Background(), LoginAdminMessage{
		Email:     "second@uni.edu",
		AccessKey: "ADM-KEY-002",
	})
	assert.ErrorIs(t, err, ErrAccountNotActive)
}

func TestVerifyLoginUserNeedsBothCodes(t *testing.T) {
	repo := NewMockRepositoryManager()
	tokener := &MockTokenService{}
	handler := NewVerifyLoginHandler(repo, tokener, WithHandlerLogger(silentLogger{}))

	account := activeStudent(t, "hunter2!")
	repo.accounts.On("GetByID", mock.Anything, account.ID).Return(account, nil)
	repo.codes.On("ConsumeTx", mock.Anything, mock.Anything, account.ID, "111111", PurposeLoginEmail, mock.Anything).Return(nil)
	repo.codes.On("ConsumeTx", mock.Anything, mock.Anything, account.ID, "222222", PurposeLoginSMS, mock.Anything).Return(nil)
	repo.codes.On("PurgeAccountTx", mock.Anything, mock.Anything, account.ID).Return(nil)
	tokener.On("Generate", account.ID.String(), RoleStudent).Return("signed.jwt.token", nil)

	var resp *VerifyLoginResponse
	err := handler.Execute(context.Background(), VerifyLoginMessage{
		AccountID: account.ID,
		EmailCode: "111111",
		SMSCode:   "222222",
		OnResponse: func(r *VerifyLoginResponse) { resp = r },
	})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, "signed.jwt.token", resp.Token)
	assert.Equal(t, "Login successful", resp.Message)
	repo.AssertExpectations(t)
}

func TestVerifyLoginAdminSkipsSMSCode(t *testing.T) {
	repo := NewMockRepositoryManager()
	tokener := &MockTokenService{}
	handler := NewVerifyLoginHandler(repo, tokener, WithHandlerLogger(silentLogger{}))

	admin := &Account{ID: uuid.New(), Role: RoleAdmin, Email: "root@uni.edu", Status: StatusActive}
	repo.accounts.On("GetByID", mock.Anything, admin.ID).Return(admin, nil)
	repo.codes.On("ConsumeTx", mock.Anything, mock.Anything, admin.ID, "111111", PurposeLoginEmail, mock.Anything).Return(nil)
	repo.codes.On("PurgeAccountTx", mock.Anything, mock.Anything, admin.ID).Return(nil)
	tokener.On("Generate", admin.ID.String(), RoleAdmin).Return("signed.jwt.token", nil)

	var resp *VerifyLoginResponse
	err := handler.Execute(context.Background(), VerifyLoginMessage{
		AccountID: admin.ID,
		EmailCode: "111111",
		OnResponse: func(r *VerifyLoginResponse) { resp = r },
	})
	require.NoError(t, err)

	assert.Equal(t, "Admin login successful", resp.Message)
	repo.codes.AssertNotCalled(t, "ConsumeTx", mock.Anything, mock.Anything, admin.ID, mock.Anything, PurposeLoginSMS, mock.Anything)
}

func TestVerifyLoginBadCodeNoToken(t *testing.T) {
	repo := NewMockRepositoryManager()
	tokener := &MockTokenService{}
	sink := &CapturingSink{}
	handler := NewVerifyLoginHandler(repo, tokener,
		WithHandlerLogger(silentLogger{}),
		WithHandlerActivitySink(sink),
	)

	account := activeStudent(t, "hunter2!")
	repo.accounts.On("GetByID", mock.Anything, account.ID).Return(account, nil)
	repo.codes.On("ConsumeTx", mock.Anything, mock.Anything, account.ID, "000000", PurposeLoginEmail, mock.Anything).
		Return(ErrCodeInvalid)

	err := handler.Execute(context.Background(), VerifyLoginMessage{
		AccountID: account.ID,
		EmailCode: "000000",
		SMSCode:   "222222",
	})
	assert.ErrorIs(t, err, ErrCodeInvalid)
	assert.Equal(t, []ActivityEventType{ActivityEventLoginFailure}, sink.Verbs())
	tokener.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestVerifyLoginUnknownAccount(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewVerifyLoginHandler(repo, &MockTokenService{}, WithHandlerLogger(silentLogger{}))

	id := uuid.New()
	repo.accounts.On("GetByID", mock.Anything, id).Return(nil, notFound())

	err := handler.Execute(context.Background(), VerifyLoginMessage{AccountID: id, EmailCode: "111111"})
	assert.ErrorIs(t, err, ErrCodeInvalid)
}
