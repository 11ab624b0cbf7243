package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/gate-access-service/internal/config"
	"github.com/spec-kit/gate-access-service/internal/events"
)

// NotificationService emits security notifications for gate events. Denied
// entries go to the webhook channel; enrollments to email.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventEntryDenied, n.handleEntryDenied)
	n.dispatcher.Subscribe(events.EventEntryGranted, n.handleEntryGranted)
	n.dispatcher.Subscribe(events.EventBiometricsEnrolled, n.handleBiometricsEnrolled)
}

func (n *NotificationService) handleEntryDenied(ctx context.Context, event events.Event) error {
	n.logger.Info("EntryDenied", zap.Int64("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleEntryGranted(ctx context.Context, event events.Event) error {
	n.logger.Info("EntryGranted", zap.Int64("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleBiometricsEnrolled(ctx context.Context, event events.Event) error {
	n.logger.Info("BiometricsEnrolled", zap.Int64("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Int64("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.Int64("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
