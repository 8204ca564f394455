package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/templates"
	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to      string
	subject string
	text    string
}

func newCapturingEmailService(cfg EmailConfig, fail bool) (*EmailService, *[]sentMail) {
	s := NewEmailService(cfg)
	var mu sync.Mutex
	sent := &[]sentMail{}
	s.send = func(_ context.Context, to string, msg *templates.Rendered) error {
		mu.Lock()
		defer mu.Unlock()
		*sent = append(*sent, sentMail{to: to, subject: msg.Subject, text: msg.Text})
		if fail {
			return errors.New("mailgun unavailable")
		}
		return nil
	}
	return s, sent
}

func testEmailConfig() EmailConfig {
	return EmailConfig{
		Domain:     "mg.example.com",
		APIKey:     "key",
		FromEmail:  "blog@example.com",
		FromName:   "Agent Blog",
		AdminEmail: "owner@example.com",
		BaseURL:    "https://blog.example.com",
		BlogTitle:  "Agent Blog",
		AuthorName: "Ada",
	}
}

func TestEmailService_KeyRequestedGoesToAdmin(t *testing.T) {
	s, sent := newCapturingEmailService(testEmailConfig(), false)

	s.KeyRequested(context.Background(), models.KeyRequest{RequestID: "r1", AgentName: "bot-1"})
	s.Wait()

	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "owner@example.com", mail.to)
	assert.Contains(t, mail.subject, "bot-1")
	assert.Contains(t, mail.text, "https://blog.example.com/api/admin/keys/pending")
}

func TestEmailService_KeyDecided(t *testing.T) {
	s, sent := newCapturingEmailService(testEmailConfig(), false)
	ctx := context.Background()

	s.KeyDecided(ctx, models.KeyRequest{RequestID: "r1", AgentName: "bot-1"}, models.DecisionApprove)
	s.Wait()
	assert.Empty(t, *sent, "no contact address, nothing to send")

	req := models.KeyRequest{RequestID: "r1", AgentName: "bot-1", ContactEmail: "bot@example.com"}
	s.KeyDecided(ctx, req, models.DecisionApprove)
	s.KeyDecided(ctx, req, models.DecisionReject)
	s.Wait()

	require.Len(t, *sent, 2)
	texts := (*sent)[0].text + (*sent)[1].text
	assert.Contains(t, texts, "Ada approved your request r1")
	assert.Contains(t, texts, "decided not to issue a key")
}

func TestEmailService_NoAdminAddress(t *testing.T) {
	cfg := testEmailConfig()
	cfg.AdminEmail = ""
	s, sent := newCapturingEmailService(cfg, false)

	s.KeyRequested(context.Background(), models.KeyRequest{RequestID: "r1", AgentName: "bot"})
	s.Wait()
	assert.Empty(t, *sent)
}

func TestEmailService_SendFailureIsSwallowed(t *testing.T) {
	s, sent := newCapturingEmailService(testEmailConfig(), true)

	assert.NotPanics(t, func() {
		s.KeyRequested(context.Background(), models.KeyRequest{RequestID: "r1", AgentName: "bot"})
		s.Wait()
	})
	assert.Len(t, *sent, 1)
}

type fakePosthog struct {
	posthog.Client
	mu       sync.Mutex
	captured []posthog.Capture
	closed   bool
}

func (f *fakePosthog) Enqueue(m posthog.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := m.(posthog.Capture); ok {
		f.captured = append(f.captured, c)
	}
	return nil
}

func (f *fakePosthog) Close() error {
	f.closed = true
	return nil
}

func TestAnalytics_NilAndDisabledAreNoops(t *testing.T) {
	var nilService *AnalyticsService
	assert.NotPanics(t, func() {
		nilService.TrackKeyRequested(context.Background(), "bot")
		_ = nilService.Close()
	})

	disabled, err := NewAnalyticsService(AnalyticsConfig{Enabled: true})
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		disabled.TrackArticlePublished(context.Background(), "slug")
	})
	assert.NoError(t, disabled.Close())
}

func TestAnalytics_Events(t *testing.T) {
	client := &fakePosthog{}
	a := newAnalyticsWithClient(client, "")
	ctx := context.Background()

	a.TrackKeyRequested(ctx, "bot")
	a.TrackKeyDecided(ctx, "bot", models.DecisionApprove)
	a.TrackCommentSubmitted(ctx, "bot", "hello", 12)
	a.TrackCommentModerated(ctx, "hello", models.DecisionReject)
	a.TrackArticlePublished(ctx, "hello")
	require.NoError(t, a.Close())

	require.Len(t, client.captured, 5)
	assert.Equal(t, "key_requested", client.captured[0].Event)
	assert.Equal(t, "agent:bot", client.captured[0].DistinctId)
	assert.False(t, client.captured[0].Timestamp.IsZero())
	assert.Equal(t, "key_approved", client.captured[1].Event)
	assert.Equal(t, 12, client.captured[2].Properties["word_count"])
	assert.Equal(t, "comment_rejected", client.captured[3].Event)
	assert.Equal(t, "operator", client.captured[3].DistinctId)
	assert.Equal(t, "production", client.captured[3].Properties["environment"])
	assert.Equal(t, "article_published", client.captured[4].Event)
	assert.Equal(t, "hello", client.captured[4].Properties["slug"])
	assert.True(t, client.closed)
}

func TestKeyService_NotifiesThroughEmailService(t *testing.T) {
	mailer, sent := newCapturingEmailService(testEmailConfig(), false)
	ks := newSQLKeyService(t)
	ks.SetNotifier(mailer)
	ctx := context.Background()

	id, err := ks.RequestKey(ctx, KeyRequestInput{AgentName: "bot", ContactEmail: "bot@example.com"})
	require.NoError(t, err)
	_, err = ks.Decide(ctx, id, "approve")
	require.NoError(t, err)
	mailer.Wait()

	require.Len(t, *sent, 2)
	recipients := []string{(*sent)[0].to, (*sent)[1].to}
	assert.ElementsMatch(t, []string{"owner@example.com", "bot@example.com"}, recipients)
}
