package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	m "codesift.dev/pkg/codesift/internal/model"
)

// EnvGhidraHeadless names the environment variable that points at
// Ghidra's analyzeHeadless launcher.
const EnvGhidraHeadless = "GHIDRA_HEADLESS"

// SetGhidraPath points EnvGhidraHeadless at the analyzeHeadless command
// for the rest of the process.
func SetGhidraPath(path m.Path) error {
	return os.Setenv(EnvGhidraHeadless, string(path))
}

const (
	ghidraProjectName = "codesift"
	ghidraScriptName  = "codesift_decompile.py"
	ghidraOutputName  = "functions.json"
)

// ghidraDecompileScript is the post-script handed to analyzeHeadless. It
// runs under Ghidra's Jython interpreter, decompiles every recognized
// function and dumps the records as a JSON array to the path given as its
// only script argument.
const ghidraDecompileScript = `# Decompile every function and dump the records as JSON.
# Runs as a Ghidra post-script; the output path is the only argument.
import json

from ghidra.app.decompiler import DecompInterface
from ghidra.util.task import ConsoleTaskMonitor


def disassemble(listing, function):
    lines = []
    instructions = listing.getInstructions(function.getBody(), True)
    while instructions.hasNext():
        lines.append(str(instructions.next()))
    return '\n'.join(lines)


def main():
    output_path = getScriptArgs()[0]
    analyzeAll(currentProgram)
    decompiler = DecompInterface()
    decompiler.openProgram(currentProgram)
    monitor = ConsoleTaskMonitor()
    listing = currentProgram.getListing()
    architecture = currentProgram.getLanguageID().getIdAsString()
    records = []
    for function in currentProgram.getFunctionManager().getFunctions(True):
        if function.isThunk():
            continue
        results = decompiler.decompileFunction(function, 0, monitor)
        if not results.decompileCompleted():
            continue
        records.append({
            'name': function.getName(),
            'definition': results.getDecompiledFunction().getC(),
            'assembly': disassemble(listing, function),
            'architecture': architecture,
        })
    decompiler.dispose()
    with open(output_path, 'w') as output_file:
        json.dump(records, output_file)


main()
`

// ghidraRecord is one entry of the post-script's JSON output.
type ghidraRecord struct {
	Name         string `json:"name"`
	Definition   string `json:"definition"`
	Assembly     string `json:"assembly"`
	Architecture string `json:"architecture"`
}

// GhidraDecompiler drives Ghidra's analyzeHeadless command. Each call
// imports the binary into a throwaway project and harvests the decompiled
// functions through the bundled post-script.
type GhidraDecompiler struct {
	fs     SourceFSAdapter
	runner CommandRunnerAdapter
	script m.Path
}

// NewGhidraDecompiler creates a Ghidra-backed decompiler.
func NewGhidraDecompiler(fs SourceFSAdapter, runner CommandRunnerAdapter) *GhidraDecompiler {
	return &GhidraDecompiler{fs: fs, runner: runner}
}

// UseScript replaces the bundled post-script with the one at path. The
// replacement must take the output path as its only script argument and
// write the same JSON shape.
func (g *GhidraDecompiler) UseScript(path m.Path) {
	g.script = path
}

// Name returns the registry tag.
func (g *GhidraDecompiler) Name() string {
	return "Ghidra"
}

// Decompile imports path into a temporary Ghidra project and returns every
// function the decompiler recovered from it.
func (g *GhidraDecompiler) Decompile(ctx context.Context, path m.Path) ([]m.DecompiledFunction, error) {
	headless := os.Getenv(EnvGhidraHeadless)
	if headless == "" {
		return nil, fmt.Errorf("%s is not set to Ghidra's analyzeHeadless command", EnvGhidraHeadless)
	}

	projectDir, err := g.fs.CreateTempDir("codesift-ghidra-")
	if err != nil {
		return nil, fmt.Errorf("create ghidra project dir: %w", err)
	}

	defer func() { _ = g.fs.RemoveAll(projectDir) }()

	scriptDir := string(projectDir)
	scriptName := ghidraScriptName

	if g.script != "" {
		scriptDir = filepath.Dir(string(g.script))
		scriptName = filepath.Base(string(g.script))
	} else {
		scriptPath := g.fs.JoinPath(scriptDir, scriptName)
		if err := g.fs.WriteFile(scriptPath, []byte(ghidraDecompileScript), 0o600); err != nil {
			return nil, fmt.Errorf("write ghidra post script: %w", err)
		}
	}

	outputPath := g.fs.JoinPath(string(projectDir), ghidraOutputName)
	command := ArgvCommand(headless, string(projectDir), ghidraProjectName,
		"-import", string(path),
		"-scriptPath", scriptDir,
		"-noanalysis",
		"-postScript", scriptName, string(outputPath))

	output, err := g.runner.Run(ctx, "", command)
	if err != nil {
		return nil, fmt.Errorf("ghidra failed: %w (output: %s)", err, output)
	}

	raw, err := g.fs.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read ghidra output: %w", err)
	}

	var records []ghidraRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("ghidra post script produced invalid JSON: %w", err)
	}

	functions := make([]m.DecompiledFunction, 0, len(records))
	for _, record := range records {
		functions = append(functions, m.NewDecompiledFunction(path, record.Definition, record.Name, record.Assembly, record.Architecture))
	}

	return functions, nil
}
