package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "rads"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	parallelFlagName     = "parallel"
	failFastFlagName     = "fail-fast"
	includeTestsFlagName = "include-tests"
	timeoutFlagName      = "timeout"
	useBuildFlagName     = "use-build"
	runBuildFlagName     = "build"
	noCacheFlagName      = "no-cache"
	cacheDirFlagName     = "cache-dir"
	charsetFlagName      = "charset"
	prefixFlagName       = "prefix"
	outputFormatFlagName = "output-format"
	tuiFlagName          = "tui"
	reportFlagName       = "report"
	uploadFlagName       = "upload"
	historyURLFlagName   = "history-url"
	verboseFlagName      = "verbose"

	parallelConfigKey     = "scan.parallel"
	failFastConfigKey     = "scan.fail_fast"
	includeTestsConfigKey = "scan.include_tests"
	timeoutConfigKey      = "scan.timeout"
	useBuildConfigKey     = "scan.use_build"
	runBuildConfigKey     = "scan.run_build"
	spillDirConfigKey     = "scan.spill_dir"
	noCacheConfigKey      = "cache.disabled"
	cacheDirConfigKey     = "cache.dir"
	cacheTTLConfigKey     = "cache.ttl"
	charsetConfigKey      = "output.charset"
	prefixConfigKey       = "output.prefix"
	outputFormatConfigKey = "output.format"
	tuiConfigKey          = "output.tui"
	reportConfigKey       = "report.path"
	uploadConfigKey       = "upload.enabled"
	uploadEndpointKey     = "upload.endpoint"
	uploadBucketKey       = "upload.bucket"
	uploadPrefixKey       = "upload.prefix"
	uploadAccessKeyKey    = "upload.access_key"
	uploadSecretKeyKey    = "upload.secret_key"
	uploadUseSSLKey       = "upload.use_ssl"
	historyURLConfigKey   = "history.url"

	defaultParallel     = 0
	defaultTimeout      = 0
	defaultCacheDir     = ".rads-cache"
	defaultCacheTTL     = int64((7 * 24 * time.Hour) / time.Second)
	defaultCharset      = "utf8"
	defaultPrefix       = "indent"
	defaultOutputFormat = "text"

	envPrefix = "RADS"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".rads.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

// envFiles are loaded before the configuration is read. Variables already set in
// the environment win.
var envFiles = []string{".env.local", ".env"}

var globalLogger *slog.Logger

func init() {
	loadEnvFiles(envFiles...)

	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func setDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)

	viper.SetDefault(parallelConfigKey, defaultParallel)
	viper.SetDefault(failFastConfigKey, false)
	viper.SetDefault(includeTestsConfigKey, false)
	viper.SetDefault(timeoutConfigKey, defaultTimeout)
	viper.SetDefault(useBuildConfigKey, false)
	viper.SetDefault(runBuildConfigKey, false)
	viper.SetDefault(spillDirConfigKey, "")

	viper.SetDefault(noCacheConfigKey, false)
	viper.SetDefault(cacheDirConfigKey, defaultCacheDir)
	viper.SetDefault(cacheTTLConfigKey, defaultCacheTTL)

	viper.SetDefault(charsetConfigKey, defaultCharset)
	viper.SetDefault(prefixConfigKey, defaultPrefix)
	viper.SetDefault(outputFormatConfigKey, defaultOutputFormat)
	viper.SetDefault(tuiConfigKey, false)

	viper.SetDefault(reportConfigKey, "")
	viper.SetDefault(uploadConfigKey, false)
	viper.SetDefault(uploadEndpointKey, "")
	viper.SetDefault(uploadBucketKey, "")
	viper.SetDefault(uploadPrefixKey, "")
	viper.SetDefault(uploadAccessKeyKey, "")
	viper.SetDefault(uploadSecretKeyKey, "")
	viper.SetDefault(uploadUseSSLKey, true)
	viper.SetDefault(historyURLConfigKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, false)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

// loadEnvFiles loads the given dotenv files in order, skipping missing ones.
// godotenv.Load never overrides variables that are already set, so earlier
// files take precedence over later ones.
func loadEnvFiles(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			continue
		}
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
// By default it logs at the configured level; if verbose is true it logs at Debug.
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
