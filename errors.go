package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeAccountNotActive   = "ACCOUNT_NOT_ACTIVE"
	TextCodeCodeInvalid        = "OTP_INVALID_OR_EXPIRED"
	TextCodePasswordMismatch   = "PASSWORD_MISMATCH"
	TextCodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	TextCodeAdminKeyInvalid    = "ADMIN_KEY_INVALID"
	TextCodeFirstAdminOnly     = "FIRST_ADMIN_ONLY"
	TextCodeAdminUndeletable   = "ADMIN_UNDELETABLE"
	TextCodeInvalidTransition  = "INVALID_ACCOUNT_STATE_TRANSITION"
	TextCodeInvalidWarning     = "INVALID_WARNING"
)

// ErrInvalidCredentials is returned when the identifier/password (or admin
// email/access key) pair does not resolve. It deliberately carries no detail
// about which part failed.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials)

// ErrAccountNotActive is returned when credentials check out but the account
// is not in the active status. Unlike ErrInvalidCredentials this one is
// surfaced distinctly so the caller knows to finish verification or wait for
// approval.
var ErrAccountNotActive = goerrors.New("account not verified or blocked", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountNotActive)

// ErrCodeInvalid covers every OTP failure: no matching code, wrong purpose,
// or expiry. A single message prevents channel enumeration.
var ErrCodeInvalid = goerrors.New("invalid or expired OTP", goerrors.CategoryValidation).
	WithTextCode(TextCodeCodeInvalid)

// ErrPasswordMismatch is returned when password and confirmation differ.
// The check happens before any store interaction.
var ErrPasswordMismatch = goerrors.New("passwords do not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch)

// ErrAdminKeyInvalid is returned when the supplied admin signup key does not
// exist or has already been claimed.
var ErrAdminKeyInvalid = goerrors.New("invalid or already used admin key", goerrors.CategoryValidation).
	WithTextCode(TextCodeAdminKeyInvalid)

// ErrFirstAdminOnly guards the admin approval operation.
var ErrFirstAdminOnly = goerrors.New("only the first admin can approve other admins", goerrors.CategoryAuth).
	WithTextCode(TextCodeFirstAdminOnly)

// ErrAdminUndeletable rejects delete requests that target admin accounts.
var ErrAdminUndeletable = goerrors.New("cannot delete admin accounts", goerrors.CategoryAuth).
	WithTextCode(TextCodeAdminUndeletable)

// ErrInvalidTransition is returned when a requested status change is not in
// the lifecycle table.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition)

// decorate attaches metadata to a wrapper around the sentinel instead of the
// sentinel itself, which WithMetadata would otherwise mutate in place.
// errors.Is still matches the sentinel through the wrap chain.
func decorate(sentinel *goerrors.Error, md map[string]any) error {
	return goerrors.Wrap(sentinel, sentinel.Category, sentinel.Message).
		WithTextCode(sentinel.TextCode).
		WithMetadata(md)
}

// conflictError builds the duplicate-identity error raised during signup,
// naming whichever field collided with an established account.
func conflictError(field string) *goerrors.Error {
	return goerrors.New(field+" is already registered", goerrors.CategoryConflict).
		WithTextCode(TextCodeDuplicateIdentity).
		WithMetadata(map[string]any{"field": field})
}

// notFoundError wraps a missing account lookup.
func notFoundError(what string) *goerrors.Error {
	return goerrors.New(what+" not found", goerrors.CategoryNotFound)
}
