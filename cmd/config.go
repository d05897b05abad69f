package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "codesift"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	plainFlagName   = "plain"
	verboseFlagName = "verbose"
	logFileFlagName = "log-file"

	checkpointFlagName         = "checkpoint"
	generationModeFlagName     = "generation-mode"
	decompilerFlagName         = "decompiler"
	buildHandlingFlagName      = "build-error-handling"
	cleanupHandlingFlagName    = "cleanup-error-handling"
	runFromFlagName            = "run-from"
	extractorWorkersFlagName   = "max-extractor-workers"
	decompilerWorkersFlagName  = "max-decompiler-workers"
	checkpointConfigKey        = "create.checkpoint"
	generationModeConfigKey    = "create.generation_mode"
	decompilerConfigKey        = "create.decompiler"
	buildHandlingConfigKey     = "create.build_error_handling"
	cleanupHandlingConfigKey   = "create.cleanup_error_handling"
	runFromConfigKey           = "create.run_from"
	extractorWorkersConfigKey  = "create.max_extractor_workers"
	decompilerWorkersConfigKey = "create.max_decompiler_workers"

	defaultCheckpoint      = 10
	defaultGenerationMode  = "temp"
	defaultDecompiler      = ""
	defaultBuildHandling   = "interactive"
	defaultCleanupHandling = "ignore"
	defaultRunFrom         = "cwd"
	defaultWorkers         = 0

	envPrefix = "CODESIFT"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".codesift.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(checkpointConfigKey, defaultCheckpoint)
	viper.SetDefault(generationModeConfigKey, defaultGenerationMode)
	viper.SetDefault(decompilerConfigKey, defaultDecompiler)
	viper.SetDefault(buildHandlingConfigKey, defaultBuildHandling)
	viper.SetDefault(cleanupHandlingConfigKey, defaultCleanupHandling)
	viper.SetDefault(runFromConfigKey, defaultRunFrom)
	viper.SetDefault(extractorWorkersConfigKey, defaultWorkers)
	viper.SetDefault(decompilerWorkersConfigKey, defaultWorkers)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
