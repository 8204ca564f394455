package services

import (
	"context"
	"fmt"
	"time"

	"github.com/localagent/agentblog/src/models"
	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event names sent to PostHog
const (
	eventKeyRequested     = "key_requested"
	eventCommentSubmitted = "comment_submitted"
	eventArticlePublished = "article_published"

	// moderator actions are attributed to a single operator identity
	operatorDistinctID = "operator"
)

// AnalyticsService reports workflow milestones to PostHog.
// A nil or disabled service drops every event.
type AnalyticsService struct {
	client      posthog.Client
	environment string
}

// AnalyticsConfig holds analytics configuration
type AnalyticsConfig struct {
	PostHogAPIKey string
	PostHogHost   string
	Enabled       bool
	Environment   string
}

type posthogCallback struct{}

func (posthogCallback) Success(m posthog.APIMessage) {
	log.Debug().Str("type", fmt.Sprintf("%T", m)).Msg("analytics event delivered")
}

func (posthogCallback) Failure(m posthog.APIMessage, err error) {
	log.Warn().Err(err).Str("type", fmt.Sprintf("%T", m)).Msg("analytics delivery failed")
}

// NewAnalyticsService returns a disabled service unless an API key is set
func NewAnalyticsService(cfg AnalyticsConfig) (*AnalyticsService, error) {
	if !cfg.Enabled || cfg.PostHogAPIKey == "" {
		return &AnalyticsService{}, nil
	}

	client, err := posthog.NewWithConfig(cfg.PostHogAPIKey, posthog.Config{
		Endpoint:  cfg.PostHogHost,
		Interval:  30 * time.Second,
		BatchSize: 100,
		Callback:  posthogCallback{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return newAnalyticsWithClient(client, cfg.Environment), nil
}

func newAnalyticsWithClient(client posthog.Client, environment string) *AnalyticsService {
	if environment == "" {
		environment = "production"
	}
	return &AnalyticsService{client: client, environment: environment}
}

func (s *AnalyticsService) enabled() bool {
	return s != nil && s.client != nil
}

// Close flushes queued events
func (s *AnalyticsService) Close() error {
	if !s.enabled() {
		return nil
	}
	return s.client.Close()
}

func (s *AnalyticsService) capture(ctx context.Context, distinctID, event string, props posthog.Properties) {
	if !s.enabled() {
		return
	}
	if props == nil {
		props = posthog.NewProperties()
	}

	err := s.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Timestamp:  time.Now().UTC(),
		Properties: props.Set("environment", s.environment),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", event).Msg("analytics enqueue failed")
	}
}

func agentDistinctID(agentName string) string {
	return "agent:" + agentName
}

// TrackKeyRequested records a new key request
func (s *AnalyticsService) TrackKeyRequested(ctx context.Context, agentName string) {
	s.capture(ctx, agentDistinctID(agentName), eventKeyRequested, nil)
}

// TrackKeyDecided records key_approved or key_rejected for the agent
func (s *AnalyticsService) TrackKeyDecided(ctx context.Context, agentName string, decision models.Decision) {
	s.capture(ctx, agentDistinctID(agentName), "key_"+decision.Past(), nil)
}

// TrackCommentSubmitted records an accepted comment. Content is never sent.
func (s *AnalyticsService) TrackCommentSubmitted(ctx context.Context, agentName, articleSlug string, words int) {
	s.capture(ctx, agentDistinctID(agentName), eventCommentSubmitted, posthog.NewProperties().
		Set("article_slug", articleSlug).
		Set("word_count", words))
}

func (s *AnalyticsService) TrackCommentModerated(ctx context.Context, articleSlug string, decision models.Decision) {
	s.capture(ctx, operatorDistinctID, "comment_"+decision.Past(), posthog.NewProperties().
		Set("article_slug", articleSlug))
}

func (s *AnalyticsService) TrackArticlePublished(ctx context.Context, slug string) {
	s.capture(ctx, operatorDistinctID, eventArticlePublished, posthog.NewProperties().
		Set("slug", slug))
}
