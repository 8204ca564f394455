// Package cli holds the agentblog command tree: the server itself plus the
// out-of-band admin commands that work directly against the stores.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/localagent/agentblog/src/config"
	"github.com/localagent/agentblog/src/database"
	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/repositories"
	"github.com/localagent/agentblog/src/services"
	"github.com/localagent/agentblog/src/site"
	"github.com/rs/zerolog/log"
)

// app is everything a command needs once configuration is loaded
type app struct {
	cfg     *config.Config
	profile *site.Profile
	stores  *database.Stores

	keys       *services.KeyService
	comments   *services.CommentService
	moderation *services.ModerationService
	articles   *services.ArticleService

	mailer    *services.EmailService
	analytics *services.AnalyticsService
	logFile   io.Closer
}

// openOptions tune bootstrap per command
type openOptions struct {
	// quiet raises the log level to warn so table output stays readable
	quiet bool
}

// openApp loads configuration, sets up logging and opens both stores.
// Migrations are left to the caller.
func openApp(ctx context.Context, configPath string, opts openOptions) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logFile, err := logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Quiet:  opts.quiet,
	})
	if err != nil {
		return nil, err
	}

	profile, err := site.Load(cfg.SiteFile)
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}

	blog, err := database.Open(ctx, database.StoreBlog, cfg.BlogDB.Driver, cfg.BlogDB.DSN)
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}
	keys, err := database.Open(ctx, database.StoreKeys, cfg.KeysDB.Driver, cfg.KeysDB.DSN)
	if err != nil {
		_ = blog.Close()
		_ = logFile.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		profile: profile,
		stores:  &database.Stores{Blog: blog, Keys: keys},
		logFile: logFile,
	}, nil
}

// migrate applies migrations to both stores
func (a *app) migrate(direction string) error {
	for _, db := range []*database.Database{a.stores.Blog, a.stores.Keys} {
		if err := db.Migrate(direction); err != nil {
			return err
		}
	}
	return nil
}

// wireServices builds the workflow services over the open stores
func (a *app) wireServices() error {
	encryptor, err := services.NewEncryptor(a.cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	if encryptor != nil {
		log.Info().Msg("contact e-mail encryption enabled (AES-256-GCM)")
	}

	keyRepo := repositories.NewKeyRepository(a.stores.Keys)
	blogRepo := repositories.NewBlogRepository(a.stores.Blog)

	a.keys = services.NewKeyService(keyRepo, encryptor)
	a.comments = services.NewCommentService(keyRepo, blogRepo)
	a.moderation = services.NewModerationService(blogRepo)
	a.articles = services.NewArticleService(blogRepo, a.cfg.BaseURL)

	if a.cfg.Mailgun.Domain != "" && a.cfg.Mailgun.APIKey != "" {
		a.mailer = services.NewEmailService(services.EmailConfig{
			Domain:     a.cfg.Mailgun.Domain,
			APIKey:     a.cfg.Mailgun.APIKey,
			FromEmail:  a.cfg.Mailgun.FromEmail,
			FromName:   a.cfg.Mailgun.FromName,
			EU:         a.cfg.Mailgun.EU,
			AdminEmail: a.cfg.Admin.Email,
			BaseURL:    a.cfg.BaseURL,
			BlogTitle:  a.profile.Blog.Title,
			AuthorName: a.profile.AuthorName(),
		})
		a.keys.SetNotifier(a.mailer)
		log.Info().Str("domain", a.cfg.Mailgun.Domain).Msg("Mailgun notifications enabled")
	} else {
		log.Warn().Msg("Mailgun credentials not configured - notifications disabled")
	}

	analytics, err := services.NewAnalyticsService(services.AnalyticsConfig{
		PostHogAPIKey: a.cfg.PostHog.APIKey,
		PostHogHost:   a.cfg.PostHog.Host,
		Enabled:       a.cfg.PostHog.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize analytics service: %w", err)
	}
	a.analytics = analytics
	a.keys.SetAnalytics(analytics)
	a.comments.SetAnalytics(analytics)
	a.moderation.SetAnalytics(analytics)
	a.articles.SetAnalytics(analytics)

	return nil
}

// Close flushes pending notifications and releases the stores
func (a *app) Close() error {
	if a.mailer != nil {
		a.mailer.Wait()
	}
	var errs []error
	if a.analytics != nil {
		errs = append(errs, a.analytics.Close())
	}
	errs = append(errs, a.stores.Close(), a.logFile.Close())
	return errors.Join(errs...)
}

// withServices opens a migrated app with services wired, runs fn and closes it
func withServices(ctx context.Context, configPath string, fn func(a *app) error) error {
	a, err := openApp(ctx, configPath, openOptions{quiet: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	if err := a.migrate("up"); err != nil {
		return err
	}
	if err := a.wireServices(); err != nil {
		return err
	}
	return fn(a)
}
