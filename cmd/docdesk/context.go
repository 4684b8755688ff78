package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"docdesk/internal/config"
	"docdesk/internal/layout"
	"docdesk/internal/logging"
	"docdesk/internal/metastore"
	"docdesk/internal/services"
	"docdesk/internal/triage"
)

type commandContext struct {
	configFlag *string
	userFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, userFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// actorContext attaches the --user flag to ctx when set.
func (c *commandContext) actorContext(ctx context.Context) context.Context {
	if c.userFlag == nil {
		return ctx
	}
	if user := strings.TrimSpace(*c.userFlag); user != "" {
		return services.WithActor(ctx, user)
	}
	return ctx
}

// cliLogger writes to stderr so command output stays parseable, and tees a
// JSON copy into the application log.
func cliLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
		FilePath:    layout.New(cfg.Paths.Root).AppLogPath(),
	})
}

// withService opens the meta store and runs fn against a triage service.
func (c *commandContext) withService(cmd *cobra.Command, fn func(context.Context, *triage.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cliLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	store, err := metastore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open meta store: %w", err)
	}
	defer store.Close()

	svc, err := triage.New(cfg, store, logger)
	if err != nil {
		return err
	}
	return fn(c.actorContext(cmd.Context()), svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
