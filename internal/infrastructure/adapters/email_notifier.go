package adapters

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/config"
)

// RecipientResolver maps a user ID to a deliverable email address. The
// identity platform owns user records; this engine only needs addresses.
type RecipientResolver func(ctx context.Context, event *entities.SettlementEvent) (string, error)

// EmailNotifier delivers settlement events over sendgrid
type EmailNotifier struct {
	client  *sendgrid.Client
	config  config.EmailConfig
	resolve RecipientResolver
	logger  *zap.Logger
}

// NewEmailNotifier creates a sendgrid-backed settlement notifier
func NewEmailNotifier(cfg config.EmailConfig, resolve RecipientResolver, logger *zap.Logger) (*EmailNotifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if resolve == nil {
		resolve = metadataRecipient
	}
	return &EmailNotifier{
		client:  sendgrid.NewSendClient(cfg.APIKey),
		config:  cfg,
		resolve: resolve,
		logger:  logger,
	}, nil
}

// metadataRecipient reads the recipient address off the event itself.
// Deployments with a user directory plug in their own resolver instead.
func metadataRecipient(_ context.Context, event *entities.SettlementEvent) (string, error) {
	if to, ok := event.Metadata["recipient"]; ok && to != "" {
		return to, nil
	}
	return "", fmt.Errorf("no recipient for settlement event %s", event.ID)
}

// NotifySettlement sends one settlement email
func (n *EmailNotifier) NotifySettlement(ctx context.Context, event *entities.SettlementEvent) error {
	to, err := n.resolve(ctx, event)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	subject := n.subject(event)
	text := fmt.Sprintf("%s\n\nAmount: $%s\nReference: %s",
		event.Description, event.Amount.StringFixed(2), event.ID)
	html := fmt.Sprintf("<p>%s</p><p><strong>Amount:</strong> $%s</p><p>Reference: %s</p>",
		event.Description, event.Amount.StringFixed(2), event.ID)

	from := mail.NewEmail(n.config.FromName, n.config.FromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), text, html)

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send settlement email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}

	n.logger.Debug("settlement email sent",
		zap.String("event_id", event.ID.String()),
		zap.String("kind", string(event.Kind)))
	return nil
}

func (n *EmailNotifier) subject(event *entities.SettlementEvent) string {
	switch event.Kind {
	case entities.SettlementProfitDistributed:
		return "Your portfolio was updated"
	case entities.SettlementInvestmentMatured:
		return "Your investment has matured"
	case entities.SettlementWithdrawalApproved:
		return "Your withdrawal was approved"
	case entities.SettlementWithdrawalRejected:
		return "Update on your withdrawal request"
	default:
		return "Account activity notice"
	}
}
