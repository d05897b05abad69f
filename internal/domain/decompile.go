package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"codesift.dev/pkg/codesift/internal/adapter"
	"codesift.dev/pkg/codesift/internal/controller"
	m "codesift.dev/pkg/codesift/internal/model"
)

// ErrUnknownDecompiler is returned when a registry lookup names a
// decompiler that was never registered.
var ErrUnknownDecompiler = errors.New("unsupported decompiler")

// Decompiler recovers function records from one compiled binary.
type Decompiler interface {
	// Name returns the tag the decompiler is registered under.
	Name() string

	// Decompile returns every function recovered from the binary at path.
	Decompile(ctx context.Context, path m.Path) ([]m.DecompiledFunction, error)
}

// DecompilerRegistry is an ordered set of decompilers keyed by name,
// owned by the caller like the extractor registry.
type DecompilerRegistry struct {
	decompilers []Decompiler
}

// NewDecompilerRegistry creates a registry holding decompilers in the
// given order; the first one registered is the default.
func NewDecompilerRegistry(decompilers ...Decompiler) (*DecompilerRegistry, error) {
	registry := &DecompilerRegistry{}
	for _, decompiler := range decompilers {
		if err := registry.Register(decompiler); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Register adds decompiler at the end of the registry order, replacing
// one already registered under the same name.
func (r *DecompilerRegistry) Register(decompiler Decompiler) error {
	if decompiler == nil {
		return fmt.Errorf("decompiler is required")
	}
	if strings.TrimSpace(decompiler.Name()) == "" {
		return fmt.Errorf("decompiler name is required")
	}

	for i, registered := range r.decompilers {
		if registered.Name() == decompiler.Name() {
			r.decompilers = append(r.decompilers[:i], r.decompilers[i+1:]...)

			break
		}
	}

	r.decompilers = append(r.decompilers, decompiler)
	slog.Info("registered decompiler", "name", decompiler.Name())

	return nil
}

// Get returns the decompiler registered under name.
func (r *DecompilerRegistry) Get(name string) (Decompiler, error) {
	for _, decompiler := range r.decompilers {
		if decompiler.Name() == name {
			return decompiler, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownDecompiler, name)
}

// Default returns the first registered decompiler.
func (r *DecompilerRegistry) Default() (Decompiler, error) {
	if len(r.decompilers) == 0 {
		return nil, fmt.Errorf("no decompiler registered")
	}

	return r.decompilers[0], nil
}

// Decompilers returns the decompilers in registry order.
func (r *DecompilerRegistry) Decompilers() []Decompiler {
	return append([]Decompiler(nil), r.decompilers...)
}

// Names returns the registered decompiler names in registry order.
func (r *DecompilerRegistry) Names() []string {
	names := make([]string, 0, len(r.decompilers))
	for _, decompiler := range r.decompilers {
		names = append(names, decompiler.Name())
	}

	return names
}

// DecompileConfig bounds one decompilation run.
type DecompileConfig struct {
	// MaxWorkers bounds the decompilation pool; 0 selects
	// runtime.NumCPU().
	MaxWorkers int
}

// Validate reports configuration errors before any work is submitted.
func (c DecompileConfig) Validate() error {
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max workers must be a positive integer, got %d", c.MaxWorkers)
	}

	return nil
}

// Decompilation coordinates per-binary decompilation pools.
type Decompilation struct {
	fs         adapter.SourceFSAdapter
	decompiler Decompiler
}

// NewDecompilation constructs the decompilation phase around one chosen
// decompiler.
func NewDecompilation(fs adapter.SourceFSAdapter, decompiler Decompiler) *Decompilation {
	return &Decompilation{fs: fs, decompiler: decompiler}
}

// DiscoverBinaries expands each path into decompilable binaries: a
// directory contributes its immediate children that sniff as binaries,
// a file is taken as given. An empty result is not an error, only a
// warning.
func (d *Decompilation) DiscoverBinaries(paths []m.Path) ([]m.Path, error) {
	var binaries []m.Path

	for _, path := range paths {
		info, err := d.fs.FileInfo(path)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", path, err)
		}

		if !info.IsDir() {
			binaries = append(binaries, path)

			continue
		}

		children, err := d.fs.ListDir(path)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}

		for _, child := range children {
			isBinary, err := d.fs.IsBinaryFile(child)
			if err != nil {
				slog.Warn("cannot sniff file, skipping it", "file", child, "error", err)

				continue
			}
			if isBinary {
				binaries = append(binaries, child)
			}
		}
	}

	if len(binaries) == 0 {
		slog.Warn("no binaries found to decompile")
	}

	return binaries, nil
}

// Driver validates cfg and builds a pool decompiling every binary, with
// recovered records flattened into *sink in completion order once the
// driver is drained by RunPools.
func (d *Decompilation) Driver(ctx context.Context, binaries []m.Path, cfg DecompileConfig, sink *[]m.DecompiledFunction) (*PoolDriver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	workers := cfg.MaxWorkers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	pool, err := NewPool("Decompiling binaries", binaries, workers, func(ctx context.Context, binary m.Path) ([]m.DecompiledFunction, error) {
		return d.decompiler.Decompile(ctx, binary)
	})
	if err != nil {
		return nil, err
	}

	return GatherFunc(pool, func(functions []m.DecompiledFunction) error {
		*sink = append(*sink, functions...)

		return nil
	}), nil
}

// Decompile runs the decompilation phase on its own over paths.
func (d *Decompilation) Decompile(ctx context.Context, ui controller.UI, paths []m.Path, cfg DecompileConfig) ([]m.DecompiledFunction, error) {
	binaries, err := d.DiscoverBinaries(paths)
	if err != nil {
		return nil, err
	}

	var collected []m.DecompiledFunction

	driver, err := d.Driver(ctx, binaries, cfg, &collected)
	if err != nil {
		return nil, err
	}

	if err := RunPools(ctx, ui, driver); err != nil {
		return nil, err
	}

	return collected, nil
}
