package mailer

import (
	"context"
	"fmt"
	"strings"

	mail "github.com/wneessen/go-mail"

	"github.com/spec-kit/auth-service/internal/config"
)

// Sender dispatches verification emails. Delivery may fail independently of
// registration success.
type Sender interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
}

// SMTPSender sends mail over SMTP using go-mail.
type SMTPSender struct {
	cfg     config.SMTPConfig
	baseURL string
}

// NewSMTPSender builds the sender. The base URL is used to construct
// verification links.
func NewSMTPSender(cfg config.SMTPConfig, baseURL string) *SMTPSender {
	return &SMTPSender{cfg: cfg, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// SendVerificationEmail emails a verification link for the given token.
func (s *SMTPSender) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	verifyURL := fmt.Sprintf("%s/auth/verify-email?token=%s", s.baseURL, token)

	msg := mail.NewMsg()
	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject("Verify your email")
	msg.SetBodyString(mail.TypeTextHTML, verificationBody(verifyURL))

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func verificationBody(verifyURL string) string {
	return fmt.Sprintf(`
      <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #333;">Welcome!</h2>
        <p>Thank you for registering. Please click the button below to verify your email address:</p>
        <div style="text-align: center; margin: 30px 0;">
          <a href="%s"
             style="background-color: #007bff; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">
            Verify Email Address
          </a>
        </div>
        <p style="color: #666; font-size: 14px;">
          If the button doesn't work, you can copy and paste this link into your browser:<br>
          <a href="%s">%s</a>
        </p>
        <p style="color: #666; font-size: 14px;">
          This link expires in 1 hour. If you didn't create an account, you can safely ignore this email.
        </p>
      </div>
    `, verifyURL, verifyURL, verifyURL)
}
