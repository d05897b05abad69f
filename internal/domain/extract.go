package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"codesift.dev/pkg/codesift/internal/adapter"
	"codesift.dev/pkg/codesift/internal/controller"
	m "codesift.dev/pkg/codesift/internal/model"
)

// extractorCheckpointPrefix keys the crash-recovery snapshots written by
// the extraction collection loop.
const extractorCheckpointPrefix = "codesift_extractor"

// DefaultCheckpoint is the number of collected records between snapshots
// when no interval is configured.
const DefaultCheckpoint = 10

// ErrUnknownLanguage is returned when a registry lookup names a language
// no extractor is registered for.
var ErrUnknownLanguage = errors.New("unsupported language")

// Extractor yields every function definition found in source files of one
// language.
type Extractor interface {
	// Language returns the tag the extractor is registered under.
	Language() string

	// Extensions returns the file extensions (with leading dot) the
	// extractor can parse.
	Extensions() []string

	// Extract parses one file into source function records.
	Extract(ctx context.Context, path m.Path) ([]m.SourceFunction, error)

	// ExtractableFiles lists every file under repo the extractor can
	// parse.
	ExtractableFiles(repo m.Path) ([]m.Path, error)
}

// ExtractorRegistry is an ordered set of extractors keyed by language tag.
// The registry is owned by the caller and handed to the pipeline at
// construction; there is no process-wide registration.
type ExtractorRegistry struct {
	extractors []Extractor
}

// NewExtractorRegistry creates a registry holding extractors in the given
// order.
func NewExtractorRegistry(extractors ...Extractor) (*ExtractorRegistry, error) {
	registry := &ExtractorRegistry{}
	for _, extractor := range extractors {
		if err := registry.Register(extractor); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Register adds extractor at the end of the registry order. An extractor
// already registered for the same language is replaced and moved to the
// end.
func (r *ExtractorRegistry) Register(extractor Extractor) error {
	if err := validateExtractor(extractor); err != nil {
		return err
	}

	r.remove(extractor.Language())
	r.extractors = append(r.extractors, extractor)
	slog.Info("registered extractor", "language", extractor.Language(), "order", "append")

	return nil
}

// Prepend adds extractor at the front of the registry order, replacing an
// extractor already registered for the same language.
func (r *ExtractorRegistry) Prepend(extractor Extractor) error {
	if err := validateExtractor(extractor); err != nil {
		return err
	}

	r.remove(extractor.Language())
	r.extractors = append([]Extractor{extractor}, r.extractors...)
	slog.Info("registered extractor", "language", extractor.Language(), "order", "prepend")

	return nil
}

// Set replaces the registry content wholesale.
func (r *ExtractorRegistry) Set(extractors ...Extractor) error {
	replacement, err := NewExtractorRegistry(extractors...)
	if err != nil {
		return err
	}

	r.extractors = replacement.extractors

	return nil
}

// Get returns the extractor registered for language.
func (r *ExtractorRegistry) Get(language string) (Extractor, error) {
	for _, extractor := range r.extractors {
		if extractor.Language() == language {
			return extractor, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, language)
}

// Extractors returns the extractors in registry order.
func (r *ExtractorRegistry) Extractors() []Extractor {
	return append([]Extractor(nil), r.extractors...)
}

// Languages returns the registered language tags in registry order.
func (r *ExtractorRegistry) Languages() []string {
	languages := make([]string, 0, len(r.extractors))
	for _, extractor := range r.extractors {
		languages = append(languages, extractor.Language())
	}

	return languages
}

func (r *ExtractorRegistry) remove(language string) {
	for i, extractor := range r.extractors {
		if extractor.Language() == language {
			r.extractors = append(r.extractors[:i], r.extractors[i+1:]...)

			return
		}
	}
}

func validateExtractor(extractor Extractor) error {
	if extractor == nil {
		return fmt.Errorf("extractor is required")
	}
	if strings.TrimSpace(extractor.Language()) == "" {
		return fmt.Errorf("extractor language tag is required")
	}

	return nil
}

// Transform optionally rewrites each extracted record before collection.
// A failing transform skips that record only.
type Transform func(m.SourceFunction) (m.SourceFunction, error)

// ExtractConfig bounds and filters one extraction run.
type ExtractConfig struct {
	// MaxWorkers bounds the extraction pool; 0 selects runtime.NumCPU().
	MaxWorkers int

	// Accurate materializes the full file list upfront so the progress
	// total is known, at the cost of a longer startup. When false, files
	// are discovered while extraction is already running.
	Accurate bool

	// Transform rewrites records as they are collected.
	Transform Transform

	// ExclusiveSubpaths keeps files under these repo-relative paths even
	// when an exclude subpath covers them.
	ExclusiveSubpaths []string

	// ExcludeSubpaths drops files under these repo-relative paths.
	ExcludeSubpaths []string

	// Checkpoint is the number of collected records between snapshots;
	// 0 disables checkpointing.
	Checkpoint int

	// UseCheckpoint merges snapshots left behind by earlier runs.
	UseCheckpoint bool
}

// DefaultExtractConfig returns the configuration used when the caller has
// no overrides.
func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		Accurate:      true,
		Checkpoint:    DefaultCheckpoint,
		UseCheckpoint: true,
	}
}

// Validate reports configuration errors before any work is submitted.
func (c ExtractConfig) Validate() error {
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max workers must be a positive integer, got %d", c.MaxWorkers)
	}
	if c.Checkpoint < 0 {
		return fmt.Errorf("checkpoint must be a non-negative integer, got %d", c.Checkpoint)
	}
	for _, subpath := range c.ExcludeSubpaths {
		for _, exclusive := range c.ExclusiveSubpaths {
			if filepath.Clean(subpath) == filepath.Clean(exclusive) {
				return fmt.Errorf("cannot have overlapping paths in exclude and exclusive subpaths: %s", subpath)
			}
		}
	}

	return nil
}

// extractionUnit is one (extractor, file) pair submitted to the pool.
type extractionUnit struct {
	extractor Extractor
	file      m.Path
}

// Extraction coordinates per-file extraction pools over a repository.
type Extraction struct {
	fs          adapter.SourceFSAdapter
	checkpoints adapter.CheckpointStore
	registry    *ExtractorRegistry
}

// NewExtraction constructs the extraction phase from its collaborators.
func NewExtraction(fs adapter.SourceFSAdapter, checkpoints adapter.CheckpointStore, registry *ExtractorRegistry) *Extraction {
	return &Extraction{fs: fs, checkpoints: checkpoints, registry: registry}
}

// Registry returns the extractor registry the phase draws from.
func (e *Extraction) Registry() *ExtractorRegistry {
	return e.registry
}

// Driver validates cfg, builds the extraction pool and binds it to sink.
// Records accumulate in *sink in completion order, checkpoint merge
// included, once the driver is drained by RunPools. Checkpoint snapshots
// from earlier runs are consumed at drain start; fresh snapshots are
// written every cfg.Checkpoint collected records.
func (e *Extraction) Driver(ctx context.Context, repo m.Path, cfg ExtractConfig, sink *[]m.SourceFunction) (*PoolDriver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := e.validateSubpaths(repo, cfg); err != nil {
		return nil, err
	}

	workers := cfg.MaxWorkers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	var (
		pool     *Pool[extractionUnit, []m.SourceFunction]
		walkErrs chan error
		err      error
	)

	if cfg.Accurate {
		var units []extractionUnit

		units, err = e.locateUnits(repo, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("located extractable source code files", "count", len(units))

		pool, err = NewPool("Extracting functions", units, workers, e.extractUnit)
	} else {
		feed := make(chan extractionUnit)
		walkErrs = make(chan error, 1)
		// The feeder parks on ctx when the driver is never drained.
		go e.streamUnits(ctx, repo, cfg, feed, walkErrs)

		pool, err = NewLazyPool("Extracting functions", feed, workers, e.extractUnit)
	}
	if err != nil {
		return nil, err
	}

	base := GatherFunc(pool, e.collector(cfg, sink))

	return &PoolDriver{
		progress: pool.Progress(),
		drain: func(ctx context.Context) error {
			if cfg.UseCheckpoint {
				loaded, err := e.checkpoints.Load(extractorCheckpointPrefix)
				if err != nil {
					return fmt.Errorf("load checkpoint: %w", err)
				}
				if len(loaded) > 0 {
					slog.Info("loaded checkpoint results", "count", len(loaded))
					*sink = append(loaded, *sink...)
				}
			}

			if err := base.drain(ctx); err != nil {
				return err
			}

			if walkErrs != nil {
				select {
				case err := <-walkErrs:
					return err
				default:
				}
			}

			return nil
		},
	}, nil
}

// Extract runs the extraction phase on its own and builds the source
// dataset. Duplicate uids from a merged checkpoint collapse last-write-wins
// at dataset build.
func (e *Extraction) Extract(ctx context.Context, ui controller.UI, repo m.Path, cfg ExtractConfig) (*m.SourceDataset, error) {
	// Cancelling on exit releases the lazy discovery feeder when the
	// drain stops before consuming everything.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var collected []m.SourceFunction

	driver, err := e.Driver(ctx, repo, cfg, &collected)
	if err != nil {
		return nil, err
	}

	if err := RunPools(ctx, ui, driver); err != nil {
		return nil, err
	}

	return m.NewSourceDataset(collected), nil
}

func (e *Extraction) extractUnit(ctx context.Context, unit extractionUnit) ([]m.SourceFunction, error) {
	return unit.extractor.Extract(ctx, unit.file)
}

func (e *Extraction) collector(cfg ExtractConfig, sink *[]m.SourceFunction) func([]m.SourceFunction) error {
	return func(functions []m.SourceFunction) error {
		for _, function := range functions {
			if cfg.Transform != nil {
				transformed, err := cfg.Transform(function)
				if err != nil {
					slog.Warn("transformation failed", "uid", function.UID, "error", err)

					continue
				}
				function = transformed
			}

			*sink = append(*sink, function)

			if cfg.Checkpoint > 0 && len(*sink)%cfg.Checkpoint == 0 {
				if err := e.checkpoints.Save(extractorCheckpointPrefix, *sink); err != nil {
					return fmt.Errorf("save checkpoint: %w", err)
				}
				slog.Info("extraction checkpoint saved", "records", len(*sink))
			}
		}

		return nil
	}
}

func (e *Extraction) locateUnits(repo m.Path, cfg ExtractConfig) ([]extractionUnit, error) {
	var units []extractionUnit

	for _, extractor := range e.registry.Extractors() {
		files, err := extractor.ExtractableFiles(repo)
		if err != nil {
			return nil, fmt.Errorf("discover %s files: %w", extractor.Language(), err)
		}

		for _, file := range files {
			if e.keepFile(repo, file, cfg) {
				units = append(units, extractionUnit{extractor: extractor, file: file})
			}
		}
	}

	return units, nil
}

// streamUnits feeds (extractor, file) pairs while the pool is already
// running. Discovery is extension-driven here; a walk failure ends the
// feed and fails the run once the pool drains.
func (e *Extraction) streamUnits(ctx context.Context, repo m.Path, cfg ExtractConfig, feed chan<- extractionUnit, walkErrs chan<- error) {
	defer close(feed)

	for _, extractor := range e.registry.Extractors() {
		files, errs := e.fs.StreamFilesWithExtensions(ctx, repo, extractor.Extensions())

		for file := range files {
			if !e.keepFile(repo, file, cfg) {
				continue
			}

			select {
			case feed <- extractionUnit{extractor: extractor, file: file}:
			case <-ctx.Done():
				return
			}
		}

		if err := <-errs; err != nil {
			walkErrs <- fmt.Errorf("discover %s files: %w", extractor.Language(), err)

			return
		}
	}
}

func (e *Extraction) validateSubpaths(repo m.Path, cfg ExtractConfig) error {
	subpaths := make([]string, 0, len(cfg.ExclusiveSubpaths)+len(cfg.ExcludeSubpaths))
	subpaths = append(subpaths, cfg.ExclusiveSubpaths...)
	subpaths = append(subpaths, cfg.ExcludeSubpaths...)

	for _, subpath := range subpaths {
		if filepath.IsAbs(subpath) {
			return fmt.Errorf("subpath must be relative to the repository: %s", subpath)
		}
		if _, err := e.fs.FileInfo(e.fs.JoinPath(string(repo), subpath)); err != nil {
			return fmt.Errorf("subpath does not exist in repository: %s", subpath)
		}
	}

	return nil
}

// keepFile applies the subpath filters: a file is kept unless an exclude
// subpath covers it, and exclusive subpaths override excludes.
func (e *Extraction) keepFile(repo, file m.Path, cfg ExtractConfig) bool {
	if len(cfg.ExcludeSubpaths) == 0 && len(cfg.ExclusiveSubpaths) == 0 {
		return true
	}

	rel, err := e.fs.RelPath(repo, file)
	if err != nil {
		slog.Warn("cannot resolve file against repository, keeping it", "file", file, "error", err)

		return true
	}

	return !underAny(rel, cfg.ExcludeSubpaths) || underAny(rel, cfg.ExclusiveSubpaths)
}

func underAny(rel m.Path, subpaths []string) bool {
	cleaned := filepath.Clean(string(rel))

	for _, subpath := range subpaths {
		prefix := filepath.Clean(subpath)
		if cleaned == prefix || strings.HasPrefix(cleaned, prefix+string(os.PathSeparator)) {
			return true
		}
	}

	return false
}
