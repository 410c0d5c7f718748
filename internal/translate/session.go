// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/term-engine/internal/document"
	"github.com/pdiddy/term-engine/internal/extract"
	"github.com/pdiddy/term-engine/internal/ledger"
	"github.com/pdiddy/term-engine/internal/normalize"
	"github.com/pdiddy/term-engine/internal/resolve"
	"github.com/pdiddy/term-engine/pkg/types"
)

// Result is the outcome of one session.
type Result struct {
	SessionID string                   `json:"session_id" yaml:"session_id"`
	Document  string                   `json:"document,omitempty" yaml:"document,omitempty"`
	Blocks    []types.TranslatedBlock  `json:"blocks" yaml:"blocks"`
	Records   []types.ResolutionRecord `json:"records" yaml:"records"`

	// Abandoned counts text blocks left untranslated at the deadline.
	Abandoned int `json:"abandoned" yaml:"abandoned"`
}

// Session translates documents one at a time. Each Run opens a fresh
// ledger, so terminology is consistent within a document and independent
// across documents.
type Session struct {
	resolver   *resolve.Resolver
	translator Translator
	cfg        types.TranslationConfig
	extraction types.ExtractionConfig
	norm       *normalize.Normalizer
	logger     *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithNormalizer sets the normalizer ledgers key terms with. It must match
// the glossary's.
func WithNormalizer(n *normalize.Normalizer) SessionOption {
	return func(s *Session) { s.norm = n }
}

// WithExtraction sets the extraction settings used by the synthesis pre-pass.
func WithExtraction(cfg types.ExtractionConfig) SessionOption {
	return func(s *Session) { s.extraction = cfg }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession wires a resolver and translator into a session runner.
func NewSession(r *resolve.Resolver, tr Translator, cfg types.TranslationConfig, opts ...SessionOption) *Session {
	s := &Session{
		resolver:   r,
		translator: tr,
		cfg:        cfg,
		norm:       normalize.Default(),
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run translates blocks. Text blocks are annotated concurrently against a
// new ledger and then translated with their constraint lists; other blocks
// are copied through. When the session timeout expires, text blocks not
// yet translated are marked abandoned and the partial result is returned
// without error.
func (s *Session) Run(ctx context.Context, blocks []types.ContentBlock) (Result, error) {
	l := ledger.New(s.norm)
	res := Result{SessionID: l.ID(), Blocks: make([]types.TranslatedBlock, len(blocks))}

	sctx := ctx
	if s.cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, s.cfg.SessionTimeout)
		defer cancel()
	}

	var units []string
	var unitBlock []int
	for i, b := range blocks {
		res.Blocks[i] = types.TranslatedBlock{ContentBlock: b}
		if b.Kind == types.BlockText && strings.TrimSpace(b.Text) != "" {
			units = append(units, b.Text)
			unitBlock = append(unitBlock, i)
		} else {
			res.Blocks[i].Translation = b.Text
		}
	}

	finish := func(err error) (Result, error) {
		res.Records = l.Export()
		if err == nil || !expired(ctx, sctx, err) {
			return res, err
		}
		for _, bi := range unitBlock {
			if res.Blocks[bi].Translation == "" {
				res.Blocks[bi].Abandoned = true
				res.Abandoned++
			}
		}
		s.logger.Warn("session deadline reached", "session", res.SessionID, "abandoned", res.Abandoned)
		return res, nil
	}

	if s.cfg.SynthesizeTerms {
		if err := s.synthesize(sctx, l, blocks, len(units)); err != nil {
			return finish(err)
		}
	}

	anns, err := s.resolver.AnnotateAll(sctx, l, units, s.cfg.Domains)
	if err != nil {
		return finish(fmt.Errorf("annotating: %w", err))
	}

	g, gctx := errgroup.WithContext(sctx)
	g.SetLimit(s.resolver.Config().Workers)
	for u, bi := range unitBlock {
		ann := anns[u]
		res.Blocks[bi].Constraints = ann.Constraints
		for _, a := range ann.Defaulted {
			s.logger.Debug("ambiguous term defaulted", "span", a.Span, "target", a.Default.Entry.TargetTerm, "unit", u)
		}
		g.Go(func() error {
			b := blocks[bi]
			out, err := s.translator.Translate(gctx, Request{
				Text:        b.Text,
				Constraints: ann.Constraints,
				Section:     b.Section,
			})
			if err != nil {
				return fmt.Errorf("translating block %d: %w", b.Index, err)
			}
			res.Blocks[bi].Translation = out
			return nil
		})
	}
	return finish(g.Wait())
}

// synthesize renders extracted candidates the glossary does not cover so
// they are fixed before any unit is translated. Records start at position
// last and are moved to their first occurrence during annotation.
func (s *Session) synthesize(ctx context.Context, l *ledger.Ledger, blocks []types.ContentBlock, last int) error {
	candidates := extract.New(s.norm, s.extraction).Extract(extract.ProseText(blocks), nil)
	for _, c := range candidates {
		out, err := s.resolver.Synthesize(ctx, l, c.Text, s.cfg.Domains, last)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, resolve.ErrNoTranslator) {
				return err
			}
			s.logger.Warn("term synthesis failed", "term", c.Text, "error", err)
			continue
		}
		if m, ok := out.(resolve.Match); ok && !m.FromLedger {
			s.logger.Debug("term synthesized", "term", c.Text, "target", m.Target(), "origin", m.Record.Origin)
		}
	}
	return nil
}

// expired reports whether err comes from the session deadline rather than
// the caller cancelling ctx.
func expired(parent, sctx context.Context, err error) bool {
	return parent.Err() == nil && sctx.Err() != nil && errors.Is(err, context.DeadlineExceeded)
}

// TranslateFile loads a Markdown or PDF document, runs the session over it
// and writes <doc>.md and <doc>-session.yaml to cfg.OutputDir.
func (s *Session) TranslateFile(ctx context.Context, path string, w io.Writer) (Result, error) {
	blocks, err := document.Load(nil, path)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	res, err := s.Run(ctx, blocks)
	if err != nil {
		return res, fmt.Errorf("translating %s: %w", path, err)
	}
	res.Document = filepath.Base(path)

	outDir := s.cfg.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, fmt.Errorf("creating output directory: %w", err)
	}
	docID := strings.TrimSuffix(res.Document, filepath.Ext(res.Document))
	mdPath := filepath.Join(outDir, docID+".md")
	if err := os.WriteFile(mdPath, []byte(document.RenderMarkdown(res.Blocks)), 0o644); err != nil {
		return res, fmt.Errorf("writing %s: %w", mdPath, err)
	}
	if err := WriteResult(filepath.Join(outDir, docID+"-session.yaml"), res); err != nil {
		return res, err
	}

	fmt.Fprintf(w, "translated %s (%d blocks, %d terms, %d abandoned, %s)\n",
		docID, len(res.Blocks), len(res.Records), res.Abandoned, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// WriteResult writes res as JSON when path ends in .json and as YAML
// otherwise.
func WriteResult(path string, res Result) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(res, "", "  ")
	} else {
		data, err = yaml.Marshal(res)
	}
	if err != nil {
		return fmt.Errorf("marshaling session result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadResult loads a file written by WriteResult.
func ReadResult(path string) (Result, error) {
	var res Result
	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &res)
	} else {
		err = yaml.Unmarshal(data, &res)
	}
	if err != nil {
		return res, fmt.Errorf("parsing %s: %w", path, err)
	}
	return res, nil
}
