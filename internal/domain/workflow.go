package domain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"codesift.dev/pkg/codesift/internal/adapter"
	"codesift.dev/pkg/codesift/internal/controller"
	m "codesift.dev/pkg/codesift/internal/model"
)

// GenerationMode selects how the repository is treated while a dataset is
// generated from it.
type GenerationMode string

const (
	// ModePath works on the repository in place.
	ModePath GenerationMode = "path"

	// ModeTemp works on a temporary copy, leaving the repository alone.
	ModeTemp GenerationMode = "temp"

	// ModeTempAppend runs two passes: a transformed temporary copy first,
	// then the untouched repository, pairing both in the final dataset.
	ModeTempAppend GenerationMode = "temp-append"
)

// Validate reports whether the mode is one of the known choices.
func (g GenerationMode) Validate() error {
	switch g {
	case ModePath, ModeTemp, ModeTempAppend:
		return nil
	}

	return fmt.Errorf("unknown generation mode: %q", g)
}

// SourceDatasetConfig shapes one source dataset run.
type SourceDatasetConfig struct {
	// Mode selects where extraction happens.
	Mode GenerationMode

	// Extract bounds and filters the extraction phase.
	Extract ExtractConfig

	// DeleteTemp removes the temporary copy once the dataset is built.
	DeleteTemp bool
}

// DefaultSourceDatasetConfig extracts from a throwaway copy and cleans it
// up afterwards.
func DefaultSourceDatasetConfig() SourceDatasetConfig {
	return SourceDatasetConfig{
		Mode:       ModeTemp,
		Extract:    DefaultExtractConfig(),
		DeleteTemp: true,
	}
}

// Validate reports configuration errors before any work starts.
func (c SourceDatasetConfig) Validate() error {
	if err := c.Mode.Validate(); err != nil {
		return err
	}

	return c.Extract.Validate()
}

// DecompiledDatasetConfig shapes one decompiled dataset run.
type DecompiledDatasetConfig struct {
	// Extract bounds and filters the extraction side.
	Extract ExtractConfig

	// Decompile bounds the decompilation side.
	Decompile DecompileConfig

	// Strip anonymizes source symbols in matched decompiled records.
	Strip bool
}

// DefaultDecompiledDatasetConfig returns the decompiled-run defaults.
func DefaultDecompiledDatasetConfig() DecompiledDatasetConfig {
	return DecompiledDatasetConfig{Extract: DefaultExtractConfig()}
}

// Validate reports configuration errors before any work starts.
func (c DecompiledDatasetConfig) Validate() error {
	if err := c.Extract.Validate(); err != nil {
		return err
	}

	return c.Decompile.Validate()
}

// Curator wires extraction, decompilation and the repository lifecycle
// into complete dataset runs. It owns the shared progress display; the
// pools themselves never touch it.
type Curator struct {
	fs            adapter.SourceFSAdapter
	store         adapter.DatasetStore
	extraction    *Extraction
	decompilation *Decompilation
	manager       *Manager
	stripper      m.Stripper
	ui            controller.UI
}

// NewCurator constructs a curator from its phases.
func NewCurator(fs adapter.SourceFSAdapter, store adapter.DatasetStore, extraction *Extraction, decompilation *Decompilation, manager *Manager, stripper m.Stripper, ui controller.UI) *Curator {
	return &Curator{
		fs:            fs,
		store:         store,
		extraction:    extraction,
		decompilation: decompilation,
		manager:       manager,
		stripper:      stripper,
		ui:            ui,
	}
}

// CreateSourceDataset extracts every registered language from repo into a
// source dataset, honoring the generation mode.
func (c *Curator) CreateSourceDataset(ctx context.Context, repo m.Path, cfg SourceDatasetConfig) (*m.SourceDataset, error) {
	dataset, _, cleanup, err := c.createSourceDatasetAt(ctx, repo, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.DeleteTemp {
		cleanup()
	}

	return dataset, nil
}

// createSourceDatasetAt extracts under the generation mode and also hands
// back the directory extraction actually ran in, so a compile step can
// build the same tree. cleanup removes the temporary copy; it is the
// caller's to run.
func (c *Curator) createSourceDatasetAt(ctx context.Context, repo m.Path, cfg SourceDatasetConfig) (*m.SourceDataset, m.Path, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, "", nil, err
	}

	mode := cfg.Mode
	if mode == ModeTempAppend {
		slog.Warn("temp-append applies to decompiled datasets, generating from a temporary copy")
		mode = ModeTemp
	}

	workRepo := repo
	cleanup := func() {}

	switch {
	case mode == ModeTemp:
		tempRoot, err := c.fs.CreateTempDir("codesift-repo-")
		if err != nil {
			return nil, "", nil, fmt.Errorf("create temporary repository: %w", err)
		}

		workRepo = c.fs.JoinPath(string(tempRoot), repo.Base())
		slog.Info("copying repository to temporary directory", "repo", repo, "copy", workRepo)

		if err := c.fs.CopyDir(repo, workRepo); err != nil {
			_ = c.fs.RemoveAll(tempRoot)

			return nil, "", nil, fmt.Errorf("copy repository: %w", err)
		}

		cleanup = func() { _ = c.fs.RemoveAll(tempRoot) }
	case cfg.Extract.Transform != nil:
		slog.Warn("transforming repository files in place", "repo", repo)
	}

	dataset, err := c.extraction.Extract(ctx, c.ui, workRepo, cfg.Extract)
	if err != nil {
		cleanup()

		return nil, "", nil, err
	}

	if cfg.Extract.Transform != nil {
		if err := c.writeTransformedDefinitions(dataset.Functions()); err != nil {
			cleanup()

			return nil, "", nil, err
		}
	}

	return dataset, workRepo, cleanup, nil
}

// CreateDecompiledDataset extracts repo and decompiles bins concurrently,
// then pairs both sides by correlation key. The repository is used as it
// stands; compiling first is CompileDataset's job.
func (c *Curator) CreateDecompiledDataset(ctx context.Context, repo m.Path, bins []m.Path, cfg DecompiledDatasetConfig) (*m.DecompiledDataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(bins) == 0 {
		return nil, fmt.Errorf("must specify at least one binary")
	}

	// Cancelling on exit releases the lazy discovery feeder when a pool
	// fails before draining everything.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	binaries, err := c.decompilation.DiscoverBinaries(bins)
	if err != nil {
		return nil, err
	}

	var (
		sources    []m.SourceFunction
		decompiled []m.DecompiledFunction
	)

	extractDriver, err := c.extraction.Driver(ctx, repo, cfg.Extract, &sources)
	if err != nil {
		return nil, err
	}

	decompileDriver, err := c.decompilation.Driver(ctx, binaries, cfg.Decompile, &decompiled)
	if err != nil {
		return nil, err
	}

	if err := RunPools(ctx, c.ui, extractDriver, decompileDriver); err != nil {
		return nil, err
	}

	return c.correlate(m.NewSourceDataset(sources), decompiled, cfg.Strip)
}

// CreateDecompiledDatasetFromSource decompiles bins against an already
// extracted source dataset, skipping the extraction pool.
func (c *Curator) CreateDecompiledDatasetFromSource(ctx context.Context, source *m.SourceDataset, bins []m.Path, cfg DecompiledDatasetConfig) (*m.DecompiledDataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	decompiled, err := c.decompilation.Decompile(ctx, c.ui, bins, cfg.Decompile)
	if err != nil {
		return nil, err
	}

	return c.correlate(source, decompiled, cfg.Strip)
}

// CompileDataset builds repo and generates the decompiled dataset under
// the chosen generation mode. Without a transform the mode changes
// nothing: the repository is built and decompiled where it stands. With a
// transform the transformed pass runs first; temp-append then adds an
// untransformed pass over the original repository and pairs the two.
func (c *Curator) CompileDataset(ctx context.Context, repo m.Path, bins []m.Path, build adapter.Command, manageCfg ManageConfig, cfg DecompiledDatasetConfig, mode GenerationMode) (*m.DecompiledDataset, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if err := manageCfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(bins) == 0 {
		return nil, fmt.Errorf("must specify at least one binary")
	}

	if cfg.Extract.Transform == nil {
		if err := c.placeExtraPaths(repo, manageCfg.ExtraPaths); err != nil {
			return nil, err
		}

		return c.managedRun(ctx, repo, build, manageCfg, func(ctx context.Context) (*m.DecompiledDataset, error) {
			return c.CreateDecompiledDataset(ctx, repo, bins, cfg)
		})
	}

	return c.compileTransformed(ctx, repo, bins, build, manageCfg, cfg, mode)
}

// compileTransformed is the transformed side of CompileDataset: extract
// with the transform, splice the rewritten definitions into the working
// tree, build and decompile it. In temp-append mode the untouched
// repository goes through a second untransformed round and the merge
// annotates its records with the transformed results.
func (c *Curator) compileTransformed(ctx context.Context, repo m.Path, bins []m.Path, build adapter.Command, manageCfg ManageConfig, cfg DecompiledDatasetConfig, mode GenerationMode) (*m.DecompiledDataset, error) {
	sourceMode := ModeTemp
	if mode == ModePath {
		sourceMode = ModePath
	}

	sourceCfg := SourceDatasetConfig{Mode: sourceMode, Extract: cfg.Extract}

	transformedSource, workRepo, cleanupRepo, err := c.createSourceDatasetAt(ctx, repo, sourceCfg)
	if err != nil {
		return nil, err
	}

	defer cleanupRepo()

	backupDir, err := c.saveTransformedBackup(transformedSource)
	if err != nil {
		return nil, err
	}

	if err := c.placeExtraPaths(workRepo, manageCfg.ExtraPaths); err != nil {
		return nil, err
	}

	transformed, err := c.managedRun(ctx, workRepo, build, manageCfg, func(ctx context.Context) (*m.DecompiledDataset, error) {
		return c.CreateDecompiledDatasetFromSource(ctx, transformedSource, c.rebaseBinaries(repo, workRepo, bins), cfg)
	})
	if err != nil {
		return nil, err
	}

	if mode != ModeTempAppend {
		slog.Debug("removing backup modified source dataset", "dir", backupDir)
		_ = c.fs.RemoveAll(backupDir)

		return transformed, nil
	}

	// Second pass: the untouched repository, no transform.
	plainCfg := cfg
	plainCfg.Extract.Transform = nil

	original, err := c.managedRun(ctx, repo, build, manageCfg, func(ctx context.Context) (*m.DecompiledDataset, error) {
		return c.CreateDecompiledDataset(ctx, repo, bins, plainCfg)
	})
	if err != nil {
		return nil, err
	}

	return mergeTransformed(original, transformed)
}

// managedRun wraps Manage so a cleanup failure cannot discard the dataset
// the body already produced.
func (c *Curator) managedRun(ctx context.Context, repo m.Path, build adapter.Command, manageCfg ManageConfig, body func(context.Context) (*m.DecompiledDataset, error)) (*m.DecompiledDataset, error) {
	var dataset *m.DecompiledDataset

	err := c.manager.Manage(ctx, repo, build, manageCfg, func(ctx context.Context) error {
		produced, bodyErr := body(ctx)
		if bodyErr != nil {
			return bodyErr
		}
		dataset = produced

		return nil
	})
	if err != nil {
		if dataset != nil && errors.Is(err, ErrCleanup) {
			slog.Error("cleanup failed after dataset generation", "error", err)

			return dataset, nil
		}

		return nil, err
	}

	return dataset, nil
}

func (c *Curator) correlate(source *m.SourceDataset, decompiled []m.DecompiledFunction, strip bool) (*m.DecompiledDataset, error) {
	var stripper m.Stripper
	if strip {
		if c.stripper == nil {
			return nil, fmt.Errorf("stripping requested but no stripper configured")
		}
		stripper = c.stripper
	}

	dataset, err := m.Correlate(source, decompiled, stripper)
	if err != nil {
		return nil, fmt.Errorf("correlate datasets: %w", err)
	}

	return dataset, nil
}

// writeTransformedDefinitions splices each transformed definition over its
// original byte range so the following build compiles the transformed
// code. Replacements apply per file from the end backwards, keeping
// earlier byte offsets valid. A file that cannot be read back (a stale
// checkpoint record from a previous run's copy) is skipped with a
// warning.
func (c *Curator) writeTransformedDefinitions(functions []m.SourceFunction) error {
	perFile := make(map[m.Path][]m.SourceFunction)
	for _, fn := range functions {
		perFile[fn.Path] = append(perFile[fn.Path], fn)
	}

	for path, fns := range perFile {
		content, err := c.fs.ReadFile(path)
		if err != nil {
			slog.Warn("cannot read extracted file for write back, skipping it", "file", path, "error", err)

			continue
		}

		sort.Slice(fns, func(i, j int) bool { return fns[i].StartByte > fns[j].StartByte })

		patched := content
		for _, fn := range fns {
			if fn.StartByte < 0 || fn.EndByte > len(patched) || fn.StartByte >= fn.EndByte {
				slog.Warn("definition range no longer fits its file, skipping write back", "uid", fn.UID)

				continue
			}

			var spliced []byte
			spliced = append(spliced, patched[:fn.StartByte]...)
			spliced = append(spliced, fn.Definition...)
			spliced = append(spliced, patched[fn.EndByte:]...)
			patched = spliced
		}

		if bytes.Equal(patched, content) {
			continue
		}

		info, err := c.fs.FileInfo(path)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", path, err)
		}
		if err := c.fs.WriteFile(path, patched, info.Mode().Perm()); err != nil {
			return fmt.Errorf("write transformed %s: %w", path, err)
		}

		logDefinitionDiff(path, content, patched)
	}

	return nil
}

func logDefinitionDiff(path m.Path, before, after []byte) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: string(path),
		ToFile:   string(path) + " (transformed)",
		Context:  3,
	})
	if err != nil {
		return
	}

	slog.Debug("transformed file", "path", path, "diff", diff)
}

// saveTransformedBackup keeps the transformed records on disk before any
// build runs, so a failing build cannot cost the transform work. It
// returns the backup directory for later removal.
func (c *Curator) saveTransformedBackup(dataset *m.SourceDataset) (m.Path, error) {
	dir, err := c.fs.CreateTempDir("codesift-backup-")
	if err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := c.fs.JoinPath(string(dir), "modified_source_dataset.json")
	slog.Info("saving backup modified source dataset", "path", path)

	if err := c.store.SaveSource(path, dataset); err != nil {
		_ = c.fs.RemoveAll(dir)

		return "", fmt.Errorf("save backup dataset: %w", err)
	}

	return dir, nil
}

// placeExtraPaths copies extra files or directories into the repository
// root before building, e.g. build scripts the repository itself does not
// carry.
func (c *Curator) placeExtraPaths(repo m.Path, extras []m.Path) error {
	for _, extra := range extras {
		info, err := c.fs.FileInfo(extra)
		if err != nil {
			return fmt.Errorf("inspect extra path %s: %w", extra, err)
		}

		target := c.fs.JoinPath(string(repo), extra.Base())

		if info.IsDir() {
			if err := c.fs.CopyDir(extra, target); err != nil {
				return fmt.Errorf("copy extra path %s: %w", extra, err)
			}

			continue
		}

		content, err := c.fs.ReadFile(extra)
		if err != nil {
			return fmt.Errorf("read extra path %s: %w", extra, err)
		}
		if err := c.fs.WriteFile(target, content, info.Mode().Perm()); err != nil {
			return fmt.Errorf("copy extra path %s: %w", extra, err)
		}
	}

	return nil
}

// rebaseBinaries points repository-relative binaries into the working
// copy; paths outside the repository stay as given.
func (c *Curator) rebaseBinaries(repo, workRepo m.Path, bins []m.Path) []m.Path {
	if workRepo == repo {
		return bins
	}

	rebased := make([]m.Path, 0, len(bins))
	for _, bin := range bins {
		rel, err := c.fs.RelPath(repo, bin)
		if err != nil || strings.HasPrefix(string(rel), "..") {
			rebased = append(rebased, bin)

			continue
		}

		rebased = append(rebased, c.fs.JoinPath(string(workRepo), string(rel)))
	}

	return rebased
}

// mergeTransformed pairs the untransformed pass with the transformed one.
// Every original entry whose uid also came out of the transformed pass
// gets the transformed definition and assembly recorded on its source
// records' metadata; entries only one pass produced stay as they are.
func mergeTransformed(original, transformed *m.DecompiledDataset) (*m.DecompiledDataset, error) {
	entries := make([]m.DecompiledEntry, 0, original.Len())

	for _, entry := range original.Entries() {
		match, ok := transformed.Get(entry.Decompiled.UID)
		if !ok {
			entries = append(entries, entry)

			continue
		}

		functions := make([]m.SourceFunction, 0, entry.Sources.Len())
		for _, fn := range entry.Sources.Functions() {
			annotations := map[string]any{
				"transformed_assembly": match.Decompiled.Assembly,
			}
			if source, ok := match.Sources.Get(fn.UID); ok {
				annotations["transformed_definition"] = source.Definition
			}

			annotated, err := fn.WithMetadata(annotations)
			if err != nil {
				return nil, fmt.Errorf("annotate %s: %w", fn.UID, err)
			}
			functions = append(functions, annotated)
		}

		entries = append(entries, m.DecompiledEntry{
			Decompiled: entry.Decompiled,
			Sources:    m.NewSourceDataset(functions),
		})
	}

	return m.NewDecompiledDataset(entries), nil
}
