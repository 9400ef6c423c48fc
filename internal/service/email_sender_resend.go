package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ResendEmailSender delivers verification, reset and MFA notices through the
// Resend API. Sends are fire-and-forget from the caller's perspective: the
// auth flows commit their state before dispatching mail.
type ResendEmailSender struct {
	Client     *resend.Client
	From       string
	AppBaseURL string
	VerifyPath string
	ResetPath  string
}

func NewResendEmailSender(apiKey string, from string, appBaseURL string) *ResendEmailSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return &ResendEmailSender{}
	}
	return &ResendEmailSender{
		Client:     resend.NewClient(apiKey),
		From:       from,
		AppBaseURL: strings.TrimRight(appBaseURL, "/"),
		VerifyPath: "/verify-email",
		ResetPath:  "/reset-password",
	}
}

func (s *ResendEmailSender) SendVerificationEmail(ctx context.Context, email string, token string) error {
	link := s.buildURL(s.VerifyPath, token)
	return s.send(ctx, email, "Verify your email",
		fmt.Sprintf("<p>Click to verify your email:</p><p><a href=\"%s\">Verify Email</a></p>", link),
		fmt.Sprintf("Verify your email: %s", link))
}

func (s *ResendEmailSender) SendPasswordResetEmail(ctx context.Context, email string, token string) error {
	link := s.buildURL(s.ResetPath, token)
	return s.send(ctx, email, "Reset your password",
		fmt.Sprintf("<p>Click to reset your password:</p><p><a href=\"%s\">Reset Password</a></p>", link),
		fmt.Sprintf("Reset your password: %s", link))
}

func (s *ResendEmailSender) SendMFAEnabledEmail(ctx context.Context, email string) error {
	return s.send(ctx, email, "Two-factor authentication enabled",
		"<p>Two-factor authentication was enabled on your account. If this wasn't you, reset your password immediately.</p>",
		"Two-factor authentication was enabled on your account. If this wasn't you, reset your password immediately.")
}

func (s *ResendEmailSender) buildURL(path string, token string) string {
	if s.AppBaseURL == "" {
		return token
	}
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s%s?token=%s", s.AppBaseURL, path, token)
}

func (s *ResendEmailSender) send(ctx context.Context, to string, subject string, html string, text string) error {
	if s.Client == nil {
		return errors.New("email sender not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.Client.Emails.Send(&resend.SendEmailRequest{
		From:    s.From,
		To:      []string{to},
		Subject: subject,
		Html:    html,
		Text:    text,
	})
	return err
}
