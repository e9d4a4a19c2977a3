package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the account's role within the library system.
type Role = string

const (
	// RoleStudent is a borrowing member identified by a student ID
	RoleStudent Role = "student"
	// RoleLibrarian is library staff identified by an employee ID
	RoleLibrarian Role = "librarian"
	// RoleAdmin is a system administrator, identified by email + access key
	RoleAdmin Role = "admin"
)

// UserRoles lists the non-admin roles managed through the user signup flow.
var UserRoles = []Role{RoleStudent, RoleLibrarian}

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	// StatusPending is a freshly signed-up account awaiting OTP verification
	StatusPending AccountStatus = "pending"
	// StatusPendingApproval is an admin account awaiting first-admin approval
	StatusPendingApproval AccountStatus = "pending_approval"
	// StatusActive is a fully verified account, the only status that may log in
	StatusActive AccountStatus = "active"
	// StatusBlocked is an account locked out by an administrator
	StatusBlocked AccountStatus = "blocked"
)

// Account is a student, librarian, or admin identity record.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID           uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role         Role          `bun:"role,notnull" json:"role,omitempty"`
	Email        string        `bun:"email,notnull" json:"email,omitempty"`
	Phone        string        `bun:"phone,nullzero" json:"phone,omitempty"`
	PasswordHash string        `bun:"password_hash" json:"-"`
	Status       AccountStatus `bun:"status,notnull" json:"status,omitempty"`

	StudentID      string `bun:"student_id,nullzero,unique" json:"student_id,omitempty"`
	EmployeeID     string `bun:"employee_id,nullzero,unique" json:"employee_id,omitempty"`
	AdminAccessKey string `bun:"admin_access_key,nullzero" json:"-"`
	IsFirstAdmin   bool   `bun:"is_first_admin" json:"is_first_admin,omitempty"`

	IDCardURL string `bun:"id_card_url,nullzero" json:"id_card_url,omitempty"`

	WarningCount    int        `bun:"warning_count,default:0" json:"warning_count"`
	IsSuspended     bool       `bun:"is_suspended,default:false" json:"is_suspended"`
	SuspendedUntil  *time.Time `bun:"suspended_until,nullzero" json:"suspended_until,omitempty"`
	SuspendedReason string     `bun:"suspended_reason,nullzero" json:"suspended_reason,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus backfills the zero value with the initial lifecycle status.
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = StatusPending
	}
}

// IsActive reports whether the account completed verification.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// RoleIdentifier returns the role-specific login identifier, if any.
// Students log in with their student ID, librarians with their employee ID.
// Admins have no role identifier; they authenticate with email + access key.
func (a *Account) RoleIdentifier() string {
	switch a.Role {
	case RoleStudent:
		return a.StudentID
	case RoleLibrarian:
		return a.EmployeeID
	default:
		return ""
	}
}

// RoleProfile is the role-specific payload of an Account. Exactly one concrete
// profile applies per account; Profile performs the dispatch so callers never
// poke at the sparse columns directly.
type RoleProfile interface {
	ProfileRole() Role
}

// StudentProfile is the student-specific account payload.
type StudentProfile struct {
	StudentID string
}

func (StudentProfile) ProfileRole() Role { return RoleStudent }

// LibrarianProfile is the librarian-specific account payload.
type LibrarianProfile struct {
	EmployeeID string
}

func (LibrarianProfile) ProfileRole() Role { return RoleLibrarian }

// AdminProfile is the admin-specific account payload.
type AdminProfile struct {
	AccessKey    string
	IsFirstAdmin bool
}

func (AdminProfile) ProfileRole() Role { return RoleAdmin }

// Profile returns the tagged role payload for the account.
func (a *Account) Profile() RoleProfile {
	switch a.Role {
	case RoleLibrarian:
		return LibrarianProfile{EmployeeID: a.EmployeeID}
	case RoleAdmin:
		return AdminProfile{AccessKey: a.AdminAccessKey, IsFirstAdmin: a.IsFirstAdmin}
	default:
		return StudentProfile{StudentID: a.StudentID}
	}
}

// ApplyProfile writes the role payload back into the record.
func (a *Account) ApplyProfile(p RoleProfile) *Account {
	switch v := p.(type) {
	case StudentProfile:
		a.Role = RoleStudent
		a.StudentID = v.StudentID
	case LibrarianProfile:
		a.Role = RoleLibrarian
		a.EmployeeID = v.EmployeeID
	case AdminProfile:
		a.Role = RoleAdmin
		a.AdminAccessKey = v.AccessKey
		a.IsFirstAdmin = v.IsFirstAdmin
	}
	return a
}

// OTPPurpose identifies which flow a one-time code belongs to. Codes only
// match on the exact (account, code, purpose) triple.
type OTPPurpose string

const (
	PurposeEmailVerify    OTPPurpose = "email_verify"
	PurposeSMSVerify      OTPPurpose = "sms_verify"
	PurposeLoginEmail     OTPPurpose = "login_email"
	PurposeLoginSMS       OTPPurpose = "login_sms"
	PurposeForgotPassword OTPPurpose = "forgot_password"
)

// OneTimeCode is a single outstanding OTP challenge.
type OneTimeCode struct {
	bun.BaseModel `bun:"table:one_time_codes,alias:otc"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Code      string     `bun:"code,notnull" json:"-"`
	Purpose   OTPPurpose `bun:"purpose,notnull" json:"purpose,omitempty"`
	ExpiresAt time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// WarningType categorizes a disciplinary warning.
type WarningType string

const (
	WarningOverdue    WarningType = "overdue"
	WarningNuisance   WarningType = "nuisance"
	WarningHarassment WarningType = "harassment"
	WarningHateSpeech WarningType = "hate_speech"
	WarningOther      WarningType = "other"
)

// WarningTypeLabels maps types to the human-readable labels used in notices.
var WarningTypeLabels = map[WarningType]string{
	WarningOverdue:    "Overdue Book Return",
	WarningNuisance:   "Nuisance Behavior",
	WarningHarassment: "Harassment",
	WarningHateSpeech: "Hate Speech",
	WarningOther:      "Other Violation",
}

// IsValid checks the type against the fixed enumeration.
func (t WarningType) IsValid() bool {
	_, ok := WarningTypeLabels[t]
	return ok
}

// Warning is a disciplinary record against an account. Warnings are never
// deleted; the only mutation is flipping IsRead.
type Warning struct {
	bun.BaseModel `bun:"table:warnings,alias:wrn"`

	ID          uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID   uuid.UUID   `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	AdminID     uuid.UUID   `bun:"admin_id,notnull,type:uuid" json:"admin_id,omitempty"`
	Type        WarningType `bun:"type,notnull" json:"type,omitempty"`
	Description string      `bun:"description,notnull" json:"description,omitempty"`
	IsRead      bool        `bun:"is_read,default:false" json:"is_read"`
	CreatedAt   *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// AdminKey is a pre-provisioned one-time secret that authorizes an admin
// signup. The claimed key value becomes the admin's access key.
type AdminKey struct {
	bun.BaseModel `bun:"table:admin_keys,alias:adk"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	KeyValue  string     `bun:"key_value,notnull,unique" json:"-"`
	IsUsed    bool       `bun:"is_used,default:false" json:"is_used"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UsedAt    *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
}
