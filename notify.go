package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// SMTPConfig configures the email half of the notifier.
type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
}

// SMSConfig configures the text message half of the notifier. It speaks the
// Twilio-style messages endpoint: a form POST authenticated with account SID
// and token.
type SMSConfig struct {
	Endpoint string
	Account  string
	Token    string
	From     string
}

type notifier struct {
	smtp   SMTPConfig
	sms    SMSConfig
	client *http.Client
	logger Logger
}

var _ Notifier = (*notifier)(nil)

// NewNotifier wires SMTP email delivery and HTTP SMS delivery behind the
// Notifier interface.
func NewNotifier(smtpCfg SMTPConfig, smsCfg SMSConfig, logger Logger) Notifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &notifier{
		smtp:   smtpCfg,
		sms:    smsCfg,
		client: http.DefaultClient,
		logger: logger,
	}
}

func (n *notifier) SendEmail(_ context.Context, msg EmailMessage) error {
	if n.smtp.Addr == "" {
		return goerrors.New("smtp address not configured", goerrors.CategoryInternal)
	}

	host := n.smtp.Addr
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	var auth smtp.Auth
	if n.smtp.Username != "" {
		auth = smtp.PlainAuth("", n.smtp.Username, n.smtp.Password, host)
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.smtp.From, msg.To, msg.Subject, msg.Text)

	if err := smtp.SendMail(n.smtp.Addr, auth, n.smtp.From, []string{msg.To}, []byte(body)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send email")
	}

	return nil
}

func (n *notifier) SendSMS(ctx context.Context, msg SMSMessage) error {
	if n.sms.Endpoint == "" {
		return goerrors.New("sms endpoint not configured", goerrors.CategoryInternal)
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", n.sms.From)
	form.Set("Body", msg.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.sms.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build sms request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(n.sms.Account, n.sms.Token)

	resp, err := n.client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send sms")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return goerrors.New("sms provider rejected message", goerrors.CategoryExternal).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	return nil
}

// LogNotifier writes every message to the logger instead of delivering it.
// Useful for development and tests.
type LogNotifier struct {
	Logger Logger
}

var _ Notifier = (*LogNotifier)(nil)

func (l LogNotifier) SendEmail(_ context.Context, msg EmailMessage) error {
	logger := l.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("email to=%s subject=%q body=%q", msg.To, msg.Subject, msg.Text)
	return nil
}

func (l LogNotifier) SendSMS(_ context.Context, msg SMSMessage) error {
	logger := l.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("sms to=%s body=%q", msg.To, msg.Body)
	return nil
}

// Message builders. The copy is part of the contract with downstream
// clients, keep it stable.

func signupEmailOTP(to, code string) EmailMessage {
	return EmailMessage{
		To:      to,
		Subject: "Your Signup OTP",
		Text:    fmt.Sprintf("Your email verification OTP is %s", code),
	}
}

func signupSMSOTP(to, code string) SMSMessage {
	return SMSMessage{
		To:   to,
		Body: fmt.Sprintf("Your phone verification OTP is %s", code),
	}
}

func adminSignupEmailOTP(to, code string) EmailMessage {
	return EmailMessage{
		To:      to,
		Subject: "Admin Signup OTP",
		Text:    fmt.Sprintf("Your OTP is %s", code),
	}
}

func adminSignupSMSOTP(to, code string) SMSMessage {
	return SMSMessage{
		To:   to,
		Body: fmt.Sprintf("Your OTP is %s", code),
	}
}

func loginEmailOTP(to, code string) EmailMessage {
	return EmailMessage{
		To:      to,
		Subject: "Login OTP",
		Text:    fmt.Sprintf("Your login OTP is %s", code),
	}
}

func loginSMSOTP(to, code string) SMSMessage {
	return SMSMessage{
		To:   to,
		Body: fmt.Sprintf("Your login OTP is %s", code),
	}
}

func adminLoginEmailOTP(to, code string) EmailMessage {
	return EmailMessage{
		To:      to,
		Subject: "Admin Login OTP",
		Text:    fmt.Sprintf("Your login OTP is %s", code),
	}
}

func passwordResetEmailOTP(to, code string, admin bool) EmailMessage {
	subject := "Password Reset OTP"
	if admin {
		subject = "Admin Password Reset OTP"
	}
	return EmailMessage{
		To:      to,
		Subject: subject,
		Text:    fmt.Sprintf("Your password reset OTP is %s", code),
	}
}

// warningEmail builds the disciplinary notice. warningNumber is the
// post-increment count; the second and third warnings carry escalating
// notices.
func warningEmail(to string, warningType WarningType, description string, warningNumber int) EmailMessage {
	label := WarningTypeLabels[warningType]

	var notice string
	switch {
	case warningNumber >= 3:
		notice = "\n\nIMPORTANT: This is your 3rd warning. Your account has been automatically suspended for 30 days."
	case warningNumber == 2:
		notice = "\n\nWARNING: This is your 2nd warning. One more warning will result in automatic account suspension."
	}

	text := fmt.Sprintf(
		"Dear User,\n\nYou have received a warning for: %s\n\nDetails: %s\n\nThis is warning #%d on your account.%s\n\nPlease take this seriously and ensure compliance with library rules.\n\nBest regards,\nPortLib Library Management",
		label, description, warningNumber, notice,
	)

	return EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("Library Warning: %s", label),
		Text:    text,
	}
}
