package identity

import (
	"context"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPhone = "+14155552671"

func notFound() error {
	return repository.NewRecordNotFound()
}

func validSignupMessage() SignupUserMessage {
	return SignupUserMessage{
		Role:            RoleStudent,
		Email:           "sam@uni.edu",
		Phone:           testPhone,
		Password:        "hunter2!",
		ConfirmPassword: "hunter2!",
		StudentID:       "S-2025-104",
		IDCard:          Upload{Name: "idcard.png", ContentType: "image/png", Data: []byte{0x89, 0x50}},
	}
}

func TestSignupPasswordMismatchFailsBeforeStore(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewSignupUserHandler(repo, &MockUploader{}, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	msg := validSignupMessage()
	msg.ConfirmPassword = "different"

	err := handler.Execute(context.Background(), msg)
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	repo.accounts.AssertNotCalled(t, "FindByEmailOrPhone", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignupRejectsAdminRole(t *testing.T) {
	handler := NewSignupUserHandler(NewMockRepositoryManager(), &MockUploader{}, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	msg := validSignupMessage()
	msg.Role = RoleAdmin

	err := handler.Execute(context.Background(), msg)
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryBadInput, richErr.Category)
}

func TestSignupRequiresIDCard(t *testing.T) {
	handler := NewSignupUserHandler(NewMockRepositoryManager(), &MockUploader{}, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	msg := validSignupMessage()
	msg.IDCard = Upload{}

	err := handler.Execute(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ID proof")
}

func TestSignupRejectsInvalidPhone(t *testing.T) {
	handler := NewSignupUserHandler(NewMockRepositoryManager(), &MockUploader{}, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	msg := validSignupMessage()
	msg.Phone = "not-a-phone"

	err := handler.Execute(context.Background(), msg)
	require.Error(t, err)
}

func TestSignupActiveEmailCollision(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewSignupUserHandler(repo, &MockUploader{}, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	existing := &Account{ID: uuid.New(), Email: "sam@uni.edu", Phone: testPhone, Status: StatusActive}
	repo.accounts.On("FindByEmailOrPhone", mock.Anything, "sam@uni.edu", testPhone).
		Return(existing, nil)

	err := handler.Execute(context.Background(), validSignupMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email")
	repo.accounts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSignupEmailHeldByAdminCollides(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewSignupUserHandler(repo, &MockUploader{}, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	admin := &Account{ID: uuid.New(), Role: RoleAdmin, Email: "sam@uni.edu", Status: StatusActive}
	repo.accounts.On("FindByEmailOrPhone", mock.Anything, "sam@uni.edu", testPhone).
		Return(admin, nil)

	err := handler.Execute(context.Background(), validSignupMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email")
	repo.accounts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	repo.accounts.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignupNeverReclaimsAdminRecord(t *testing.T) {
	// Even an admin signup stuck in pending_approval holds its email against
	// user signups; only the approval flow resolves it.
	repo := NewMockRepositoryManager()
	handler := NewSignupUserHandler(repo, &MockUploader{}, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	admin := &Account{ID: uuid.New(), Role: RoleAdmin, Email: "sam@uni.edu", Status: StatusPendingApproval}
	repo.accounts.On("FindByEmailOrPhone", mock.Anything, "sam@uni.edu", testPhone).
		Return(admin, nil)

	err := handler.Execute(context.Background(), validSignupMessage())
	require.Error(t, err)
	repo.accounts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSignupReclaimsStaleRecord(t *testing.T) {
	repo := NewMockRepositoryManager()
	uploader := &MockUploader{}
	notifier := &CapturingNotifier{}
	handler := NewSignupUserHandler(repo, uploader, notifier, WithHandlerLogger(silentLogger{}))

	staleID := uuid.New()
	stale := &Account{ID: staleID, Email: "sam@uni.edu", Status: StatusPending}
	repo.accounts.On("FindByEmailOrPhone", mock.Anything, "sam@uni.edu", testPhone).
		Return(stale, nil)
	repo.accounts.On("Delete", mock.Anything, staleID).Return(nil)
	repo.accounts.On("FindByRoleIdentifier", mock.Anything, RoleStudent, "S-2025-104").
		Return(nil, notFound())

	uploader.On("Upload", mock.Anything, VerificationDocsBucket, mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "student/") && strings.HasSuffix(name, "_idcard.png")
	}), mock.Anything).Return("/files/verification-docs/student/1_idcard.png", nil)

	createdID := uuid.New()
	repo.accounts.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(a *Account) bool {
		return a.Email == "sam@uni.edu" && a.Status == StatusPending && a.StudentID == "S-2025-104"
	})).Return(&Account{ID: createdID, Role: RoleStudent, Email: "sam@uni.edu", Phone: testPhone, Status: StatusPending}, nil)

	repo.codes.On("IssueTx", mock.Anything, mock.Anything, createdID, PurposeEmailVerify, mock.Anything, mock.Anything).
		Return(&OneTimeCode{}, nil)
	repo.codes.On("IssueTx", mock.Anything, mock.Anything, createdID, PurposeSMSVerify, mock.Anything, mock.Anything).
		Return(&OneTimeCode{}, nil)

	var resp *SignupUserResponse
	msg := validSignupMessage()
	msg.OnResponse = func(r *SignupUserResponse) { resp = r }

	err := handler.Execute(context.Background(), msg)
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Signup successful. Please verify OTPs sent to your email and phone.", resp.Message)

	require.Len(t, notifier.Emails, 1)
	assert.Equal(t, "Your Signup OTP", notifier.Emails[0].Subject)
	require.Len(t, notifier.Texts, 1)

	repo.AssertExpectations(t)
}

func TestSignupStudentIDCollision(t *testing.T) {
	repo := NewMockRepositoryManager()
	handler := NewSignupUserHandler(repo, &MockUploader{}, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	repo.accounts.On("FindByEmailOrPhone", mock.Anything, "sam@uni.edu", testPhone).
		Return(nil, notFound())
	repo.accounts.On("FindByRoleIdentifier", mock.Anything, RoleStudent, "S-2025-104").
		Return(&Account{ID: uuid.New(), Status: StatusActive}, nil)

	err := handler.Execute(context.Background(), validSignupMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STUDENT ID")
}

func TestSignupLibrarianUsesEmployeeID(t *testing.T) {
	repo := NewMockRepositoryManager()
	uploader := &MockUploader{}
	handler := NewSignupUserHandler(repo, uploader, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	repo.accounts.On("FindByEmailOrPhone", mock.Anything, "lib@uni.edu", testPhone).
		Return(nil, notFound())
	repo.accounts.On("FindByRoleIdentifier", mock.Anything, RoleLibrarian, "E-88").
		Return(nil, notFound())
	uploader.On("Upload", mock.Anything, VerificationDocsBucket, mock.Anything, mock.Anything).
		Return("/files/verification-docs/librarian/1_badge.png", nil)

	createdID := uuid.New()
	repo.accounts.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(a *Account) bool {
		return a.Role == RoleLibrarian && a.EmployeeID == "E-88" && a.StudentID == ""
	})).Return(&Account{ID: createdID, Role: RoleLibrarian, Email: "lib@uni.edu", Phone: testPhone, Status: StatusPending}, nil)
	repo.codes.On("IssueTx", mock.Anything, mock.Anything, createdID, mock.Anything, mock.Anything, mock.Anything).
		Return(&OneTimeCode{}, nil).Twice()

	msg := SignupUserMessage{
		Role:            RoleLibrarian,
		Email:           "lib@uni.edu",
		Phone:           testPhone,
		Password:        "hunter2!",
		ConfirmPassword: "hunter2!",
		EmployeeID:      "E-88",
		IDCard:          Upload{Name: "badge.png", Data: []byte{0x1}},
	}

	require.NoError(t, handler.Execute(context.Background(), msg))
	repo.AssertExpectations(t)
}

func TestSignupMissingIdentifier(t *testing.T) {
	handler := NewSignupUserHandler(NewMockRepositoryManager(), &MockUploader{}, &CapturingNotifier{}, WithHandlerLogger(silentLogger{}))

	msg := validSignupMessage()
	msg.StudentID = ""

	err := handler.Execute(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identifier")
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("+1 415 555 2671")
	require.NoError(t, err)
	assert.Equal(t, testPhone, got)

	_, err = NormalizePhone("5552671")
	assert.Error(t, err)
}
