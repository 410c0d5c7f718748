// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pdiddy/term-engine/internal/embed"
	"github.com/pdiddy/term-engine/internal/glossary"
	"github.com/pdiddy/term-engine/internal/index"
	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/internal/resolve"
	"github.com/pdiddy/term-engine/pkg/types"
)

// app holds the components a command works with. Commands open only what
// they need: the store always, the index manager and resolver on demand.
type app struct {
	cfg     types.Config
	norm    *normalize.Normalizer
	store   *glossary.Store
	manager *index.Manager
}

// openApp loads the configuration and opens the glossary store.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	norm := normalize.New(cfg.Normalize)
	store, err := glossary.NewStore(cfg.Glossary, norm)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, norm: norm, store: store}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// indexManager builds the embedder and the index manager over the store.
func (a *app) indexManager() (*index.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	emb, err := embed.New(a.cfg.Embedding)
	if err != nil {
		return nil, err
	}
	a.manager = index.NewManager(a.store, emb, index.OptionsFromConfig(a.cfg.Embedding, a.norm))
	return a.manager, nil
}

// resolver wires the index manager into a Term Resolver.
func (a *app) resolver(opts ...resolve.Option) (*resolve.Resolver, error) {
	m, err := a.indexManager()
	if err != nil {
		return nil, err
	}
	return resolve.New(m, a.cfg.Resolver.WithDefaults(), opts...), nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// syncGlossaryDir imports changed glossary files before a command reads
// the store. A missing directory is not an error.
func (a *app) syncGlossaryDir(ctx context.Context) error {
	dir := a.cfg.Glossary.Dir
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	summary, err := a.store.SyncDir(ctx, dir, os.Stderr)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d glossary file(s) failed to import", summary.Failed)
	}
	return nil
}
