package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/templates"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog"
)

// Notifier is told about key workflow events that a human should hear about.
// Implementations must not block the caller.
type Notifier interface {
	KeyRequested(ctx context.Context, req models.KeyRequest)
	KeyDecided(ctx context.Context, req models.KeyRequest, decision models.Decision)
}

type noopNotifier struct{}

func (noopNotifier) KeyRequested(context.Context, models.KeyRequest)                  {}
func (noopNotifier) KeyDecided(context.Context, models.KeyRequest, models.Decision) {}

// EmailConfig holds Mailgun settings and the blog details used in messages
type EmailConfig struct {
	Domain    string
	APIKey    string
	FromEmail string
	FromName  string
	EU        bool

	AdminEmail string // receives new key request notices
	BaseURL    string
	BlogTitle  string
	AuthorName string
}

// EmailService sends notification e-mails via Mailgun
type EmailService struct {
	cfg    EmailConfig
	send   func(ctx context.Context, to string, msg *templates.Rendered) error
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewEmailService creates a new email service with Mailgun configuration
func NewEmailService(cfg EmailConfig) *EmailService {
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.EU {
		mg.SetAPIBase(mailgun.APIBaseEU)
	}

	s := &EmailService{
		cfg:    cfg,
		logger: logging.NewLogger("email"),
	}
	s.send = func(ctx context.Context, to string, msg *templates.Rendered) error {
		message := mg.NewMessage(
			fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
			msg.Subject,
			msg.Text,
			to,
		)

		ctxWithTimeout, cancel := context.WithTimeout(ctx, time.Second*30)
		defer cancel()

		if _, _, err := mg.Send(ctxWithTimeout, message); err != nil {
			return fmt.Errorf("failed to send email to %s: %w", to, err)
		}
		return nil
	}
	return s
}

// KeyRequested tells the blog owner about a new request
func (s *EmailService) KeyRequested(ctx context.Context, req models.KeyRequest) {
	if s.cfg.AdminEmail == "" {
		return
	}
	s.deliver(ctx, templates.KeyRequested, s.cfg.AdminEmail, req)
}

// KeyDecided tells the agent's contact address about the decision
func (s *EmailService) KeyDecided(ctx context.Context, req models.KeyRequest, decision models.Decision) {
	if req.ContactEmail == "" {
		return
	}
	kind := templates.KeyRejected
	if decision == models.DecisionApprove {
		kind = templates.KeyApproved
	}
	s.deliver(ctx, kind, req.ContactEmail, req)
}

// Wait blocks until queued e-mails have been attempted
func (s *EmailService) Wait() {
	s.wg.Wait()
}

func (s *EmailService) deliver(ctx context.Context, kind, to string, req models.KeyRequest) {
	msg, err := templates.Render(kind, templates.MessageData{
		BlogTitle:        s.cfg.BlogTitle,
		AuthorName:       s.cfg.AuthorName,
		BaseURL:          s.cfg.BaseURL,
		RequestID:        req.RequestID,
		AgentName:        req.AgentName,
		AgentDescription: req.AgentDescription,
		ContactEmail:     req.ContactEmail,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("template", kind).Msg("failed to render notification")
		return
	}

	// The request context ends with the HTTP response.
	sendCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.send(sendCtx, to, msg); err != nil {
			s.logger.Error().Err(err).Str("template", kind).Str("request_id", req.RequestID).Msg("notification failed")
			return
		}
		s.logger.Info().Str("template", kind).Str("request_id", req.RequestID).Msg("notification sent")
	}()
}
