package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codesift.dev/pkg/codesift/internal/adapter"
	"codesift.dev/pkg/codesift/internal/domain"
	m "codesift.dev/pkg/codesift/internal/model"
)

var createSourceOnly bool
var createBuild string
var createCleanup string
var createBuildHandling string
var createCleanupHandling string
var createRunFrom string
var createGenerationMode string
var createCheckpoint int
var createUseCheckpoint bool
var createIgnoreCheckpoint bool
var createAccurate bool
var createLazy bool
var createMaxExtractorWorkers int
var createMaxDecompilerWorkers int
var createExcludeSubpaths []string
var createExclusiveSubpaths []string
var createExtraPaths []string
var createStrip bool
var createURL string
var createGit bool
var createArchive bool
var createGhidraPath string
var createGhidraScript string
var createDecompilerName string
var createLanguages []string

// createCmd represents the create command.
var createCmd = newCreateCmd()

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create REPO DATASET [BINARY...]",
		Short: "Create a function dataset from a repository",
		Long:  createLongDescription,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := m.Path(args[0])
			saveAs := m.Path(args[1])
			bins := parsePaths(args[2:])

			// The output format and the repository directory are checked
			// before any expensive work starts.
			if _, err := adapter.DatasetExtension(saveAs); err != nil {
				return err
			}
			if err := os.MkdirAll(string(repo), 0o750); err != nil {
				return fmt.Errorf("create repository directory %s: %w", repo, err)
			}

			if createGhidraPath != "" {
				if err := adapter.SetGhidraPath(m.Path(createGhidraPath)); err != nil {
					return fmt.Errorf("set ghidra path: %w", err)
				}
			}
			if createGhidraScript != "" {
				ghidra.UseScript(m.Path(createGhidraScript))
			}

			decompiler, err := selectDecompiler()
			if err != nil {
				return err
			}

			registry, err := selectLanguages()
			if err != nil {
				return err
			}

			if createURL != "" {
				if createGit {
					if err := fetcher.Clone(cmd.Context(), createURL, repo); err != nil {
						return err
					}
				} else {
					if err := fetcher.Decompress(cmd.Context(), createURL, repo); err != nil {
						return err
					}
				}
			}

			extractCfg := domain.ExtractConfig{
				MaxWorkers:        viper.GetInt(extractorWorkersConfigKey),
				Accurate:          createAccurate && !createLazy,
				ExclusiveSubpaths: createExclusiveSubpaths,
				ExcludeSubpaths:   createExcludeSubpaths,
				Checkpoint:        viper.GetInt(checkpointConfigKey),
				UseCheckpoint:     createUseCheckpoint && !createIgnoreCheckpoint,
			}

			curator := newCurator(cmd, registry, decompiler)
			mode := domain.GenerationMode(viper.GetString(generationModeConfigKey))

			decompile := len(bins) > 0 && !createSourceOnly
			if createBuild != "" && !decompile {
				slog.Warn("a build command implies a decompiled dataset, enabling decompilation")

				decompile = true
			}

			if !decompile {
				if len(bins) > 0 {
					slog.Warn("binaries are ignored for source-only datasets")
				}

				return createSource(cmd, curator, repo, saveAs, mode, extractCfg)
			}

			if len(bins) == 0 {
				return fmt.Errorf("must specify at least one binary for decompiled datasets")
			}

			return createDecompiled(cmd, curator, repo, saveAs, bins, mode, extractCfg)
		},
	}

	configureCreateFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func configureCreateFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&createSourceOnly, "source-only", false, "extract a source dataset even when binaries are given")
	cmd.Flags().BoolVar(&createStrip, "strip", false, "anonymize source symbols in the decompiled records")

	cmd.Flags().StringVarP(&createBuild, "build", "b", "", "command that builds the repository before decompiling")
	cmd.Flags().StringVarP(&createCleanup, "cleanup", "c", "", "command that cleans the repository up after the run")
	cmd.Flags().StringVar(&createBuildHandling, buildHandlingFlagName, defaultBuildHandling, "build failure policy: interactive, ignore or none")
	bindFlagToConfig(cmd.Flags().Lookup(buildHandlingFlagName), buildHandlingConfigKey)
	cmd.Flags().StringVar(&createCleanupHandling, cleanupHandlingFlagName, defaultCleanupHandling, "cleanup failure policy: interactive, ignore or none")
	bindFlagToConfig(cmd.Flags().Lookup(cleanupHandlingFlagName), cleanupHandlingConfigKey)
	cmd.Flags().StringVar(&createRunFrom, runFromFlagName, defaultRunFrom, "directory build/cleanup commands run from: cwd or repo")
	bindFlagToConfig(cmd.Flags().Lookup(runFromFlagName), runFromConfigKey)
	cmd.Flags().StringArrayVar(&createExtraPaths, "extra-path", nil, "extra files/directories to add to the repository (e.g. build scripts)")

	cmd.Flags().StringVar(&createGenerationMode, generationModeFlagName, defaultGenerationMode, "repository handling: path (in place), temp (copy) or temp-append")
	bindFlagToConfig(cmd.Flags().Lookup(generationModeFlagName), generationModeConfigKey)

	cmd.Flags().IntVar(&createCheckpoint, checkpointFlagName, defaultCheckpoint, "save partial extraction results every N functions (0 disables)")
	bindFlagToConfig(cmd.Flags().Lookup(checkpointFlagName), checkpointConfigKey)
	cmd.Flags().BoolVar(&createUseCheckpoint, "use-checkpoint", true, "resume from partial results of an interrupted run")
	cmd.Flags().BoolVar(&createIgnoreCheckpoint, "ignore-checkpoint", false, "start over instead of resuming from partial results")
	cmd.MarkFlagsMutuallyExclusive("use-checkpoint", "ignore-checkpoint")

	cmd.Flags().BoolVar(&createAccurate, "accurate", true, "list every file up front for accurate progress totals")
	cmd.Flags().BoolVar(&createLazy, "lazy", false, "discover files while extracting, at the cost of progress totals")
	cmd.MarkFlagsMutuallyExclusive("accurate", "lazy")

	cmd.Flags().IntVar(&createMaxExtractorWorkers, extractorWorkersFlagName, defaultWorkers, "extraction workers (0 uses every CPU)")
	bindFlagToConfig(cmd.Flags().Lookup(extractorWorkersFlagName), extractorWorkersConfigKey)
	cmd.Flags().IntVar(&createMaxDecompilerWorkers, decompilerWorkersFlagName, defaultWorkers, "decompilation workers (0 uses every CPU)")
	bindFlagToConfig(cmd.Flags().Lookup(decompilerWorkersFlagName), decompilerWorkersConfigKey)

	cmd.Flags().StringArrayVarP(&createExcludeSubpaths, "exclude-subpath", "e", nil, "repository subpath to skip during extraction (can be repeated)")
	cmd.Flags().StringArrayVarP(&createExclusiveSubpaths, "exclusive-subpath", "E", nil, "repository subpath extracted even when excluded (can be repeated)")

	cmd.Flags().StringVar(&createURL, "url", "", "download a remote repository to REPO before extracting")
	cmd.Flags().BoolVar(&createGit, "git", false, "treat --url as a Git repository to clone")
	cmd.Flags().BoolVar(&createArchive, "archive", false, "treat --url as a .zip/.tar.gz archive to unpack")
	cmd.MarkFlagsMutuallyExclusive("git", "archive")

	cmd.Flags().StringVar(&createGhidraPath, "ghidra-path", "", "path to Ghidra's analyzeHeadless command")
	cmd.Flags().StringVar(&createGhidraScript, "ghidra-script", "", "replacement Ghidra post-script used to dump functions")
	cmd.Flags().StringVar(&createDecompilerName, decompilerFlagName, defaultDecompiler, "registered decompiler to use (default: first registered)")
	bindFlagToConfig(cmd.Flags().Lookup(decompilerFlagName), decompilerConfigKey)

	cmd.Flags().StringSliceVar(&createLanguages, "languages", nil, "restrict extraction to these registered languages")
}

func createSource(cmd *cobra.Command, curator *domain.Curator, repo, saveAs m.Path, mode domain.GenerationMode, extractCfg domain.ExtractConfig) error {
	cfg := domain.SourceDatasetConfig{
		Mode:       mode,
		Extract:    extractCfg,
		DeleteTemp: true,
	}

	dataset, err := curator.CreateSourceDataset(cmd.Context(), repo, cfg)
	if err != nil {
		return err
	}

	if err := datasetStore.SaveSource(saveAs, dataset); err != nil {
		return err
	}

	slog.Info("dataset saved", "path", saveAs, "records", dataset.Len())
	cmd.Printf("Saved %d function(s) to %s\n", dataset.Len(), saveAs)

	return nil
}

func createDecompiled(cmd *cobra.Command, curator *domain.Curator, repo, saveAs m.Path, bins []m.Path, mode domain.GenerationMode, extractCfg domain.ExtractConfig) error {
	cfg := domain.DecompiledDatasetConfig{
		Extract:   extractCfg,
		Decompile: domain.DecompileConfig{MaxWorkers: viper.GetInt(decompilerWorkersConfigKey)},
		Strip:     createStrip,
	}

	var (
		dataset *m.DecompiledDataset
		err     error
	)

	if createBuild == "" {
		dataset, err = curator.CreateDecompiledDataset(cmd.Context(), repo, bins, cfg)
	} else {
		manageCfg := domain.ManageConfig{
			CleanupCommand:       cleanupCommand(),
			BuildErrorHandling:   domain.ErrorPolicy(viper.GetString(buildHandlingConfigKey)),
			CleanupErrorHandling: domain.ErrorPolicy(viper.GetString(cleanupHandlingConfigKey)),
			RunFrom:              domain.RunFrom(viper.GetString(runFromConfigKey)),
			ExtraPaths:           parsePaths(createExtraPaths),
		}
		dataset, err = curator.CompileDataset(cmd.Context(), repo, bins, adapter.ShellCommand(createBuild), manageCfg, cfg, mode)
	}

	if err != nil {
		return err
	}

	if err := datasetStore.SaveDecompiled(saveAs, dataset); err != nil {
		return err
	}

	slog.Info("dataset saved", "path", saveAs, "records", dataset.Len())
	cmd.Printf("Saved %d function(s) to %s\n", dataset.Len(), saveAs)

	return nil
}

func cleanupCommand() adapter.Command {
	if createCleanup == "" {
		return adapter.Command{}
	}

	return adapter.ShellCommand(createCleanup)
}

func selectDecompiler() (domain.Decompiler, error) {
	if name := viper.GetString(decompilerConfigKey); name != "" {
		return decompilers.Get(name)
	}

	return decompilers.Default()
}

// selectLanguages narrows the registry to the --languages selection while
// keeping the registration order.
func selectLanguages() (*domain.ExtractorRegistry, error) {
	if len(createLanguages) == 0 {
		return extractors, nil
	}

	selected := make([]domain.Extractor, 0, len(createLanguages))
	for _, language := range createLanguages {
		extractor, err := extractors.Get(language)
		if err != nil {
			return nil, err
		}
		selected = append(selected, extractor)
	}

	return domain.NewExtractorRegistry(selected...)
}
