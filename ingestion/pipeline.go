package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/filingrag/chunking"
	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/filing"
	"github.com/poiesic/filingrag/parser"
	"github.com/poiesic/filingrag/render"
	"github.com/poiesic/filingrag/retrieval"
)

const (
	// DefaultOutputDir receives rendered markdown.
	DefaultOutputDir = "data/generated"

	// SourceEDGAR is recorded as the source of every ingested filing.
	SourceEDGAR = "SEC EDGAR"
)

// Pipeline orchestrates processing of filings from fetch to index.
type Pipeline struct {
	store     *filing.Store
	index     *retrieval.Index
	renderer  *render.Renderer
	targets   []core.Target
	strategy  chunking.Strategy
	outputDir string
	pool      *ants.Pool
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many symbols ProcessAll handles at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithTargets sets the sections extracted from each filing.
// Default is core.DefaultTargets().
func WithTargets(targets ...core.Target) Option {
	return func(p *Pipeline) error {
		if len(targets) == 0 {
			return errors.New("at least one target section required")
		}
		p.targets = targets
		return nil
	}
}

// WithRenderer sets the markdown renderer.
func WithRenderer(renderer *render.Renderer) Option {
	return func(p *Pipeline) error {
		if renderer != nil {
			p.renderer = renderer
		}
		return nil
	}
}

// WithStrategy overrides the index's chunking strategy for filings.
func WithStrategy(strategy chunking.Strategy) Option {
	return func(p *Pipeline) error {
		s, err := chunking.ParseStrategy(string(strategy))
		if err != nil {
			return err
		}
		p.strategy = s
		return nil
	}
}

// WithOutputDir sets where rendered markdown is written.
// Default is data/generated.
func WithOutputDir(dir string) Option {
	return func(p *Pipeline) error {
		if dir == "" {
			return errors.New("output directory cannot be empty")
		}
		p.outputDir = dir
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a pipeline that caches filings in store and indexes
// them into the store's collection.
func NewPipeline(store *filing.Store, index *retrieval.Index, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	renderer, err := render.New()
	if err != nil {
		pool.Release()
		return nil, err
	}

	p := &Pipeline{
		store:     store,
		index:     index,
		renderer:  renderer,
		targets:   core.DefaultTargets(),
		outputDir: DefaultOutputDir,
		pool:      pool,
		logger:    slog.Default().With("component", "ingestion"),
		locks:     make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Collection returns the name of the collection filings are indexed into.
func (p *Pipeline) Collection() string {
	return p.store.Collection()
}

// Index returns the retrieval index filings are indexed into.
func (p *Pipeline) Index() *retrieval.Index {
	return p.index
}

// OutputPath returns where the rendered markdown for symbol is written.
func (p *Pipeline) OutputPath(symbol string) string {
	return filepath.Join(p.outputDir, fmt.Sprintf("%s_10k_parsed.md", symbol))
}

// Result describes one processed filing.
type Result struct {
	Symbol        string   `json:"symbol"`
	WasCached     bool     `json:"was_cached"`
	Sections      []string `json:"sections"`
	MarkdownPath  string   `json:"markdown_path"`
	Markdown      string   `json:"-"`
	Ingested      bool     `json:"ingested"`
	ChunksCreated int      `json:"chunks_created"`
	IngestionID   string   `json:"ingestion_id,omitempty"`
}

// Process runs one symbol through every stage. A symbol already ingested
// into the collection is rendered again but not re-indexed. Without state
// tracking a cache hit counts as already ingested.
//
// Calls for the same symbol run one at a time, so a filing is indexed at most
// once however many callers race on it.
func (p *Pipeline) Process(ctx context.Context, symbol string) (*Result, error) {
	symbol, err := core.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	unlock := p.lock(symbol)
	defer unlock()

	logger := p.logger.With("symbol", symbol)
	result := &Result{Symbol: symbol, MarkdownPath: p.OutputPath(symbol)}

	result.WasCached, result.Markdown, result.Sections, err = p.render(ctx, symbol)
	if err != nil {
		logger.Error("error processing filing", "err", err)
		return nil, err
	}

	if err := writeFile(result.MarkdownPath, []byte(result.Markdown)); err != nil {
		logger.Error("error writing markdown", "path", result.MarkdownPath, "err", err)
		return nil, &core.StorageError{Path: result.MarkdownPath, Err: err}
	}
	logger.Info("Wrote markdown", "path", result.MarkdownPath, "sections", len(result.Sections))

	ingested, err := p.alreadyIngested(ctx, symbol, result.WasCached)
	if err != nil {
		return result, err
	}
	if ingested {
		logger.Info("Filing already ingested", "collection", p.Collection())
		return result, nil
	}
	if strings.TrimSpace(result.Markdown) == "" {
		return result, nil
	}

	if err := p.ingest(ctx, result); err != nil {
		logger.Error("error ingesting filing", "err", err)
		return result, err
	}

	if !p.store.TracksState() {
		return result, nil
	}
	return result, p.store.MarkIngested(ctx, symbol)
}

func (p *Pipeline) alreadyIngested(ctx context.Context, symbol string, wasCached bool) (bool, error) {
	if !p.store.TracksState() {
		return wasCached, nil
	}
	state, err := p.store.State(ctx, symbol)
	if err != nil {
		return false, err
	}
	return state == core.StateIngested, nil
}

// lock serializes Process calls for one symbol and returns the matching unlock.
func (p *Pipeline) lock(symbol string) func() {
	p.mu.Lock()
	l, ok := p.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		p.locks[symbol] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// render loads the filing and renders its target sections. Rendering
// failures degrade to empty markdown.
func (p *Pipeline) render(ctx context.Context, symbol string) (bool, string, []string, error) {
	wasCached, content, err := p.store.GetOrFetch(ctx, symbol)
	if err != nil {
		return false, "", nil, err
	}

	tree, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return wasCached, "", nil, err
	}

	sections := parser.SelectSections(tree, p.targets)
	if len(sections) == 0 {
		p.logger.Warn("No target sections found", "symbol", symbol)
		return wasCached, "", nil, nil
	}

	titles := make([]string, len(sections))
	for i, section := range sections {
		titles[i] = section.Title
	}

	markdown, err := p.renderer.RenderDocument(sections)
	if err != nil {
		p.logger.Error("error rendering sections", "symbol", symbol, "err", err)
		return wasCached, "", titles, nil
	}
	return wasCached, markdown, titles, nil
}

func (p *Pipeline) ingest(ctx context.Context, result *Result) error {
	collection, err := p.index.Collection(p.Collection())
	if err != nil {
		return err
	}

	metadata := map[string]string{
		core.MetaSymbol:        result.Symbol,
		core.MetaFilingType:    p.store.FormType(),
		core.MetaDateProcessed: time.Now().UTC().Format(time.RFC3339),
		core.MetaSource:        SourceEDGAR,
		core.MetaSections:      render.SectionLabels(result.Markdown),
	}

	ingested, err := collection.IngestText(ctx, result.Markdown, p.strategy, metadata)
	if ingested != nil {
		result.ChunksCreated = ingested.ChunksCreated
		result.IngestionID = ingested.IngestionID
	}
	if err != nil {
		return err
	}
	result.Ingested = true
	return nil
}

// ProcessAll processes symbols concurrently. Results are in argument order;
// a symbol that failed has a nil result and contributes to the joined error.
func (p *Pipeline) ProcessAll(ctx context.Context, symbols []string) ([]*Result, error) {
	results := make([]*Result, len(symbols))
	errs := make([]error, len(symbols))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			result, err := p.Process(ctx, symbol)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", symbol, err)
				return
			}
			results[i] = result
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("%s: %w", symbol, err)
		}
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// writeFile replaces path with content through a temp file in the same directory.
func writeFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".markdown-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
