package identity

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface the package needs. Callers plug in
// their own implementation; defLogger writes to stdout.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenConfig holds the knobs the token service needs.
type TokenConfig interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

// EmailMessage is a single outbound email.
type EmailMessage struct {
	To      string
	Subject string
	Text    string
}

// SMSMessage is a single outbound text message.
type SMSMessage struct {
	To   string
	Body string
}

// Notifier delivers out-of-band messages. Delivery is best effort from the
// core's perspective: callers log failures and move on, they never roll back
// the state that was already written.
type Notifier interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
	SendSMS(ctx context.Context, msg SMSMessage) error
}

// Upload is the raw content of an uploaded identity document.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stores an identity proof document and returns its public URL.
// Storage mechanics live outside this package.
type Uploader interface {
	Upload(ctx context.Context, bucket, name string, upload Upload) (string, error)
}

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
