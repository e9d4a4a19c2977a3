package identity

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockRepositoryManager wires the repository mocks together. RunInTx invokes
// the callback directly with a zero transaction so the Tx variants of the
// mocks see the calls.
type MockRepositoryManager struct {
	accounts  *MockAccounts
	codes     *MockOneTimeCodes
	warnings  *MockWarnings
	adminKeys *MockAdminKeys
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		accounts:  &MockAccounts{},
		codes:     &MockOneTimeCodes{},
		warnings:  &MockWarnings{},
		adminKeys: &MockAdminKeys{},
	}
}

func (m *MockRepositoryManager) Validate() error { return nil }
func (m *MockRepositoryManager) MustValidate()   {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Accounts() Accounts         { return m.accounts }
func (m *MockRepositoryManager) OneTimeCodes() OneTimeCodes { return m.codes }
func (m *MockRepositoryManager) Warnings() Warnings         { return m.warnings }
func (m *MockRepositoryManager) AdminKeys() AdminKeys       { return m.adminKeys }

func (m *MockRepositoryManager) AssertExpectations(t mock.TestingT) {
	m.accounts.AssertExpectations(t)
	m.codes.AssertExpectations(t)
	m.warnings.AssertExpectations(t)
	m.adminKeys.AssertExpectations(t)
}

func accountResult(args mock.Arguments) (*Account, error) {
	var account *Account
	if v := args.Get(0); v != nil {
		account = v.(*Account)
	}
	return account, args.Error(1)
}

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return accountResult(m.Called(ctx, id))
}

func (m *MockAccounts) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	return accountResult(m.Called(ctx, tx, id))
}

func (m *MockAccounts) GetByRoleIdentifier(ctx context.Context, role Role, identifier string) (*Account, error) {
	return accountResult(m.Called(ctx, role, identifier))
}

func (m *MockAccounts) GetByEmailRole(ctx context.Context, email string, role Role) (*Account, error) {
	return accountResult(m.Called(ctx, email, role))
}

func (m *MockAccounts) GetByEmailAccessKey(ctx context.Context, email, accessKey string) (*Account, error) {
	return accountResult(m.Called(ctx, email, accessKey))
}

func (m *MockAccounts) FindByEmailOrPhone(ctx context.Context, email, phone string, roles ...Role) (*Account, error) {
	return accountResult(m.Called(ctx, email, phone))
}

func (m *MockAccounts) FindByRoleIdentifier(ctx context.Context, role Role, identifier string) (*Account, error) {
	return accountResult(m.Called(ctx, role, identifier))
}

func (m *MockAccounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return accountResult(m.Called(ctx, record))
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	return accountResult(m.Called(ctx, tx, record))
}

func (m *MockAccounts) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccounts) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockAccounts) UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus) (*Account, error) {
	return accountResult(m.Called(ctx, id, status))
}

func (m *MockAccounts) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus) (*Account, error) {
	return accountResult(m.Called(ctx, tx, id, status))
}

func (m *MockAccounts) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockAccounts) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, tx, id, passwordHash).Error(0)
}

func (m *MockAccounts) IncrementWarningCount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return accountResult(m.Called(ctx, id))
}

func (m *MockAccounts) IncrementWarningCountTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	return accountResult(m.Called(ctx, tx, id))
}

func (m *MockAccounts) SetSuspension(ctx context.Context, id uuid.UUID, until *time.Time, reason string) error {
	return m.Called(ctx, id, until, reason).Error(0)
}

func (m *MockAccounts) SetSuspensionTx(ctx context.Context, tx bun.IDB, id uuid.UUID, until *time.Time, reason string) error {
	return m.Called(ctx, tx, id, until, reason).Error(0)
}

func (m *MockAccounts) ClearSuspension(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccounts) CountAdmins(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAccounts) List(ctx context.Context, filter ListAccountsFilter) ([]*Account, int, error) {
	args := m.Called(ctx, filter)
	var accounts []*Account
	if v := args.Get(0); v != nil {
		accounts = v.([]*Account)
	}
	return accounts, args.Int(1), args.Error(2)
}

func codeResult(args mock.Arguments) (*OneTimeCode, error) {
	var code *OneTimeCode
	if v := args.Get(0); v != nil {
		code = v.(*OneTimeCode)
	}
	return code, args.Error(1)
}

type MockOneTimeCodes struct {
	mock.Mock
}

func (m *MockOneTimeCodes) Issue(ctx context.Context, accountID uuid.UUID, purpose OTPPurpose, code string, expiresAt time.Time) (*OneTimeCode, error) {
	return codeResult(m.Called(ctx, accountID, purpose, code, expiresAt))
}

func (m *MockOneTimeCodes) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, purpose OTPPurpose, code string, expiresAt time.Time) (*OneTimeCode, error) {
	return codeResult(m.Called(ctx, tx, accountID, purpose, code, expiresAt))
}

func (m *MockOneTimeCodes) Consume(ctx context.Context, accountID uuid.UUID, code string, purpose OTPPurpose, now time.Time) error {
	return m.Called(ctx, accountID, code, purpose, now).Error(0)
}

func (m *MockOneTimeCodes) ConsumeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string, purpose OTPPurpose, now time.Time) error {
	return m.Called(ctx, tx, accountID, code, purpose, now).Error(0)
}

func (m *MockOneTimeCodes) PurgeAccount(ctx context.Context, accountID uuid.UUID) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *MockOneTimeCodes) PurgeAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	return m.Called(ctx, tx, accountID).Error(0)
}

func warningResult(args mock.Arguments) (*Warning, error) {
	var warning *Warning
	if v := args.Get(0); v != nil {
		warning = v.(*Warning)
	}
	return warning, args.Error(1)
}

type MockWarnings struct {
	mock.Mock
}

func (m *MockWarnings) GetByID(ctx context.Context, id uuid.UUID) (*Warning, error) {
	return warningResult(m.Called(ctx, id))
}

func (m *MockWarnings) Create(ctx context.Context, record *Warning) (*Warning, error) {
	return warningResult(m.Called(ctx, record))
}

func (m *MockWarnings) CreateTx(ctx context.Context, tx bun.IDB, record *Warning) (*Warning, error) {
	return warningResult(m.Called(ctx, tx, record))
}

func (m *MockWarnings) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Warning, error) {
	args := m.Called(ctx, accountID)
	var warnings []*Warning
	if v := args.Get(0); v != nil {
		warnings = v.([]*Warning)
	}
	return warnings, args.Error(1)
}

func (m *MockWarnings) List(ctx context.Context, filter ListWarningsFilter) ([]*Warning, int, error) {
	args := m.Called(ctx, filter)
	var warnings []*Warning
	if v := args.Get(0); v != nil {
		warnings = v.([]*Warning)
	}
	return warnings, args.Int(1), args.Error(2)
}

func (m *MockWarnings) MarkRead(ctx context.Context, id uuid.UUID) (*Warning, error) {
	return warningResult(m.Called(ctx, id))
}

func keyResult(args mock.Arguments) (*AdminKey, error) {
	var key *AdminKey
	if v := args.Get(0); v != nil {
		key = v.(*AdminKey)
	}
	return key, args.Error(1)
}

type MockAdminKeys struct {
	mock.Mock
}

func (m *MockAdminKeys) Create(ctx context.Context, keyValue string) (*AdminKey, error) {
	return keyResult(m.Called(ctx, keyValue))
}

func (m *MockAdminKeys) Claim(ctx context.Context, keyValue string, now time.Time) (*AdminKey, error) {
	return keyResult(m.Called(ctx, keyValue, now))
}

func (m *MockAdminKeys) ClaimTx(ctx context.Context, tx bun.IDB, keyValue string, now time.Time) (*AdminKey, error) {
	return keyResult(m.Called(ctx, tx, keyValue, now))
}

func (m *MockAdminKeys) List(ctx context.Context) ([]*AdminKey, error) {
	args := m.Called(ctx)
	var keys []*AdminKey
	if v := args.Get(0); v != nil {
		keys = v.([]*AdminKey)
	}
	return keys, args.Error(1)
}

// CapturingNotifier records every outbound message. SendErr, when set, is
// returned from both methods so write-then-notify behavior can be exercised.
type CapturingNotifier struct {
	mu      sync.Mutex
	Emails  []EmailMessage
	Texts   []SMSMessage
	SendErr error
}

func (n *CapturingNotifier) SendEmail(ctx context.Context, msg EmailMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Emails = append(n.Emails, msg)
	return n.SendErr
}

func (n *CapturingNotifier) SendSMS(ctx context.Context, msg SMSMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Texts = append(n.Texts, msg)
	return n.SendErr
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, bucket, name string, upload Upload) (string, error) {
	args := m.Called(ctx, bucket, name, upload)
	return args.String(0), args.Error(1)
}

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Generate(accountID string, role Role) (string, error) {
	args := m.Called(accountID, role)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(raw string) (*SessionClaims, error) {
	args := m.Called(raw)
	var claims *SessionClaims
	if v := args.Get(0); v != nil {
		claims = v.(*SessionClaims)
	}
	return claims, args.Error(1)
}

// CapturingSink collects activity events for assertions.
type CapturingSink struct {
	mu     sync.Mutex
	Events []ActivityEvent
}

func (s *CapturingSink) Record(ctx context.Context, event ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, event)
	return nil
}

func (s *CapturingSink) Verbs() []ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	verbs := make([]ActivityEventType, 0, len(s.Events))
	for _, e := range s.Events {
		verbs = append(verbs, e.EventType)
	}
	return verbs
}

type MockStateMachine struct {
	mock.Mock
}

func (m *MockStateMachine) Transition(ctx context.Context, actor ActorRef, account *Account, target AccountStatus, opts ...TransitionOption) (*Account, error) {
	return accountResult(m.Called(ctx, actor, account, target))
}

func (m *MockStateMachine) TransitionTx(ctx context.Context, tx bun.IDB, actor ActorRef, account *Account, target AccountStatus, opts ...TransitionOption) (*Account, error) {
	return accountResult(m.Called(ctx, tx, actor, account, target))
}

func (m *MockStateMachine) CurrentStatus(account *Account) AccountStatus {
	return account.Status
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}
