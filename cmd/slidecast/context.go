package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"slidecast/internal/audiogen"
	"slidecast/internal/backend"
	"slidecast/internal/cache"
	"slidecast/internal/config"
	"slidecast/internal/history"
	"slidecast/internal/logging"
	"slidecast/internal/renderqueue"
	"slidecast/internal/stale"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
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

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// app wires the orchestration stack for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *backend.Client
	stale   *stale.Set
	store   *cache.Store
	audio   *audiogen.Orchestrator
	queue   *renderqueue.Queue
	journal *history.Journal
}

func (c *commandContext) newApp() (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	client := backend.New(cfg, logger)
	staleSet := stale.NewSet()
	store := cache.NewStore(client, staleSet, logger)
	audio := audiogen.New(client, store, staleSet, cfg.AudioPollInterval(), logger)

	journal, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open render history: %w", err)
	}
	queue := renderqueue.New(client, journal, cfg.RenderPollInterval(), logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		stale:   staleSet,
		store:   store,
		audio:   audio,
		queue:   queue,
		journal: journal,
	}, nil
}

func (a *app) Close() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
}
