// internal/email/sender.go
package email

import (
	"context"
	"fmt"
	"log"
	"time"

	"filesync-service/internal/config"
	"filesync-service/internal/email/templates"

	"gopkg.in/gomail.v2"
)

type Sender struct {
	cfg *config.Config
}

func NewSender(cfg *config.Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send delivers one HTML email with retries. Callers that must not block
// should invoke it from a goroutine with its own timeout context.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	log.Printf("📧 [SEND] To: %s | Subject: %s", to, subject)

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	dialer := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)

	// Exponential backoff: 1s, 2s, 4s → max 3 retries
	for attempt := 0; attempt < 3; attempt++ {
		if err := dialer.DialAndSend(m); err != nil {
			delay := time.Duration(1<<attempt) * time.Second // 1s, 2s, 4s
			log.Printf("❌ [ATTEMPT %d] Failed to send email to %s: %v → retrying in %v", attempt+1, to, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("email send cancelled: %w", ctx.Err())
			}
			continue
		}
		log.Printf("✅ [SUCCESS] Email sent to %s (Subject: %s)", to, subject)
		return nil
	}

	log.Printf("💥 [FAILED] All retries exhausted for %s", to)
	return fmt.Errorf("failed to send email to %s after 3 attempts", to)
}

// SendSyncFailed renders and sends the sync failure alert.
func (s *Sender) SendSyncFailed(ctx context.Context, to string, data templates.SyncFailedData) error {
	body, err := templates.RenderSyncFailedEmail(data)
	if err != nil {
		return fmt.Errorf("render sync_failed: %w", err)
	}
	subject := fmt.Sprintf("⚠️ %s file sync failed", data.Provider)
	return s.Send(ctx, to, subject, body)
}

// SendIntegrationConnected renders and sends the integration connected email.
func (s *Sender) SendIntegrationConnected(ctx context.Context, to string, data templates.IntegrationConnectedData) error {
	body, err := templates.RenderIntegrationConnectedEmail(data)
	if err != nil {
		return fmt.Errorf("render integration_connected: %w", err)
	}
	subject := fmt.Sprintf("✅ %s connected to KT-Portal", data.Provider)
	return s.Send(ctx, to, subject, body)
}
