package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/GlennOnyango/housing-nest-be/pkg/kafka"
	"github.com/GlennOnyango/housing-nest-be/pkg/logger"
)

// Kafka topic constants for identity and auth domain events.
const (
	TopicIdentityRegistered     = "housing.identity.registered"
	TopicAuthLockedOut          = "housing.auth.locked_out"
	TopicAuthMagicLinkRequested = "housing.auth.magic_link_requested"
	TopicAuthInviteIssued       = "housing.auth.invite_issued"
	TopicAuthTokenReuseDetected = "housing.auth.token_reuse_detected"
)

// Aggregate type constant.
const AggregateTypeIdentity = "identity"

// Source identifier for events originating from the identity service.
const SourceIdentityService = "identity-service"

// IdentityRegisteredData is the payload for an identity.registered event.
type IdentityRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	OrgID string `json:"org_id,omitempty"`
	Role  string `json:"role,omitempty"`
}

// LockedOutData is the payload for an auth.locked_out event.
type LockedOutData struct {
	IdentityID   string `json:"identity_id"`
	FailureCount int    `json:"failure_count"`
	LockedUntil  string `json:"locked_until"`
}

// MagicLinkRequestedData is the payload for an auth.magic_link_requested
// event. The bearer rides in the event so the notification collaborator can
// deliver it; it is never returned to the HTTP caller.
type MagicLinkRequestedData struct {
	Email  string `json:"email"`
	Bearer string `json:"bearer"`
}

// InviteIssuedData is the payload for an auth.invite_issued event.
type InviteIssuedData struct {
	OrgID     string `json:"org_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	InvitedBy string `json:"invited_by"`
	Bearer    string `json:"bearer"`
}

// TokenReuseDetectedData is the payload for an auth.token_reuse_detected event.
type TokenReuseDetectedData struct {
	IdentityID string `json:"identity_id"`
	SessionID  string `json:"session_id"`
	TokenID    string `json:"token_id"`
}

// Producer publishes identity and auth domain events to Kafka. Publish
// failures are the caller's concern; orchestrators log and continue, since
// event delivery must never fail an auth request.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishIdentityRegistered publishes an identity.registered event.
func (p *Producer) PublishIdentityRegistered(ctx context.Context, data IdentityRegisteredData) error {
	return p.publish(ctx, TopicIdentityRegistered, data.ID, data)
}

// PublishLockedOut publishes an auth.locked_out event.
func (p *Producer) PublishLockedOut(ctx context.Context, data LockedOutData) error {
	return p.publish(ctx, TopicAuthLockedOut, data.IdentityID, data)
}

// PublishMagicLinkRequested publishes an auth.magic_link_requested event.
func (p *Producer) PublishMagicLinkRequested(ctx context.Context, data MagicLinkRequestedData) error {
	return p.publish(ctx, TopicAuthMagicLinkRequested, data.Email, data)
}

// PublishInviteIssued publishes an auth.invite_issued event.
func (p *Producer) PublishInviteIssued(ctx context.Context, data InviteIssuedData) error {
	return p.publish(ctx, TopicAuthInviteIssued, data.OrgID, data)
}

// PublishTokenReuseDetected publishes an auth.token_reuse_detected event.
func (p *Producer) PublishTokenReuseDetected(ctx context.Context, data TokenReuseDetectedData) error {
	return p.publish(ctx, TopicAuthTokenReuseDetected, data.IdentityID, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypeIdentity, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		event.WithCorrelationID(correlationID)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}
