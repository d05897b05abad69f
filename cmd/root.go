// Package cmd provides the root command and CLI setup for codesift.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codesift.dev/pkg/codesift/internal/adapter"
	"codesift.dev/pkg/codesift/internal/controller"
	"codesift.dev/pkg/codesift/internal/domain"
	m "codesift.dev/pkg/codesift/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var checkpointStore adapter.CheckpointStore
var datasetStore adapter.DatasetStore
var commandRunner adapter.CommandRunnerAdapter
var fetcher adapter.FetchAdapter
var ghidra *adapter.GhidraDecompiler
var extractors *domain.ExtractorRegistry
var decompilers *domain.DecompilerRegistry
var ui controller.UI

// plainFlag forces line-oriented output even on a terminal.
var plainFlag bool

// verboseFlag raises the log level to Debug.
var verboseFlag bool

// logFileFlag overrides the log file location.
var logFileFlag string

func init() {
	// Initialize shared dependencies.
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	checkpointStore = adapter.NewFileCheckpointStore("")
	datasetStore = adapter.NewFileDatasetStore(fsAdapter)
	commandRunner = adapter.NewLocalCommandRunnerAdapter()
	fetcher = adapter.NewRemoteFetchAdapter()
	ghidra = adapter.NewGhidraDecompiler(fsAdapter, commandRunner)

	extractorRegistry, err := domain.NewExtractorRegistry(
		adapter.NewCExtractor(fsAdapter),
		adapter.NewGoExtractor(fsAdapter),
		adapter.NewJavaScriptExtractor(fsAdapter),
		adapter.NewRustExtractor(fsAdapter),
	)
	cobra.CheckErr(err)
	extractors = extractorRegistry

	decompilerRegistry, err := domain.NewDecompilerRegistry(ghidra)
	cobra.CheckErr(err)
	decompilers = decompilerRegistry

	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
}

const datasetFormatsHelp = `Supported dataset formats (selected by the output file extension):
  - .json / .jsonl     records keyed by uid / one record per line
  - .csv / .tsv        tabular export
  - .yaml / .yml       records keyed by uid
  - .md / .markdown    human-readable table`

const rootLongDescription = `Codesift curates machine-learning datasets of functions. It extracts every
function definition from a repository's source tree and can additionally
build the repository, decompile the produced binaries and pair each
decompiled function with the source functions sharing its name.

` + datasetFormatsHelp

const createLongDescription = `Create a function dataset from a local repository.

With only the REPO and DATASET arguments the dataset holds the extracted
source functions. Passing binaries (or --build) produces a decompiled
dataset instead: every function recovered from the binaries is paired
with the source functions sharing its name.

` + datasetFormatsHelp

const inspectLongDescription = `Print per-language and per-file function counts of a saved dataset.

` + datasetFormatsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codesift",
		Short: "Function dataset curation tool",
		Long:  rootLongDescription,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))

			ui = controller.NewUI(cmd.Root(), controller.IsTTY(os.Stdout) && !plainFlag)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&plainFlag, plainFlagName, false, "plain line output instead of the live progress display")

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", defaultLogVerbose, "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, defaultLogFilename, "file the run log is written to")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(logFileFlagName), logFilenameKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

// newCurator assembles the dataset workflow around the chosen extractor
// registry and decompiler. Interactive prompts and the stripper read from
// the invoking command.
func newCurator(cmd *cobra.Command, registry *domain.ExtractorRegistry, decompiler domain.Decompiler) *domain.Curator {
	extraction := domain.NewExtraction(fsAdapter, checkpointStore, registry)
	decompilation := domain.NewDecompilation(fsAdapter, decompiler)
	manager := domain.NewManager(commandRunner, controller.NewTerminalPrompter(cmd))
	stripper := adapter.NewStripper(cmd.Context())

	return domain.NewCurator(fsAdapter, datasetStore, extraction, decompilation, manager, stripper, ui)
}
