package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers one-time codes.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

// SendGridMailer delivers over the SendGrid API.
type SendGridMailer struct {
	apiKey    string
	fromEmail string
	fromName  string
}

// NewSendGridMailer constructs a SendGridMailer.
func NewSendGridMailer(apiKey, fromEmail, fromName string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, fromEmail: fromEmail, fromName: fromName}
}

// SendOTP sends the code as a plain text email.
func (m *SendGridMailer) SendOTP(_ context.Context, email, code string) error {
	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail("", email)
	body := fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code)
	message := mail.NewSingleEmail(from, "Verification code", to, body, "")

	response, err := sendgrid.NewSendClient(m.apiKey).Send(message)
	if err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("send otp email: status %d", response.StatusCode)
	}
	return nil
}

// LogMailer writes codes to the log instead of sending. Dev only.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendOTP(_ context.Context, email, code string) error {
	m.Logger.Info("otp email", slog.String("email", email), slog.String("code", code))
	return nil
}

// NewOTPEmailHandler processes TaskTypeOTPEmail tasks.
func NewOTPEmailHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OTPEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := mailer.SendOTP(ctx, payload.Email, payload.Code); err != nil {
			logger.Warn("otp delivery failed",
				slog.String("email", payload.Email), slog.Any("error", err))
			return err
		}
		return nil
	}
}
