// Package cmd provides the root command and CLI setup for rads.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rads.dev/pkg/rads/internal/adapter"
	"rads.dev/pkg/rads/internal/controller"
	"rads.dev/pkg/rads/internal/domain"
	m "rads.dev/pkg/rads/internal/model"
)

// workflowFactory builds the workflow of one command run. Tests replace it.
var workflowFactory = newWorkflow

var configValidator = validator.New()

const rootLongDescription = `rads audits the unsafe Rust used by a crate and all of its dependencies.

It resolves the dependency graph with cargo metadata, scans every reachable
package for unsafe functions, expressions, impls, traits and methods, and
prints the dependency tree annotated with the counts. Packages whose entry
points declare #![forbid(unsafe_code)] are marked as such.`

const scanLongDescription = `Scan the dependency graph of a cargo package.

Counts are reported as used/total: "used" only counts files the build
compiles (see --use-build), "total" counts every scanned file.`

const forbidLongDescription = `Check only whether each package forbids unsafe code.

Only the entry point of every target is parsed, which is much faster than a
full scan. No unsafe usage is counted.`

const filesLongDescription = `Scan individual Rust files or directories outside of any dependency graph.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func init() {
	rootCmd.AddCommand(newScanCmd(), newForbidCmd(), newFilesCmd(), newInitCmd(), newVersionCmd())
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rads",
		Short:        "Rust unsafe-usage auditor",
		Long:         rootLongDescription,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger("", viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.BoolP(verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level and print every scanned file")
	bindFlagToConfig(flags.Lookup(verboseFlagName), logVerboseKey)

	flags.IntP(parallelFlagName, "j", viper.GetInt(parallelConfigKey), "number of files scanned concurrently (0 = GOMAXPROCS)")
	bindFlagToConfig(flags.Lookup(parallelFlagName), parallelConfigKey)

	flags.Bool(failFastFlagName, viper.GetBool(failFastConfigKey), "abort on the first file that fails to parse")
	bindFlagToConfig(flags.Lookup(failFastFlagName), failFastConfigKey)

	flags.Bool(includeTestsFlagName, viper.GetBool(includeTestsConfigKey), "count unsafe code in #[test] functions and #[cfg(test)] modules")
	bindFlagToConfig(flags.Lookup(includeTestsFlagName), includeTestsConfigKey)

	flags.Duration(timeoutFlagName, viper.GetDuration(timeoutConfigKey), "abort the run after the given duration (0 = no limit)")
	bindFlagToConfig(flags.Lookup(timeoutFlagName), timeoutConfigKey)

	flags.Bool(noCacheFlagName, viper.GetBool(noCacheConfigKey), "disable the scan cache")
	bindFlagToConfig(flags.Lookup(noCacheFlagName), noCacheConfigKey)

	flags.String(cacheDirFlagName, viper.GetString(cacheDirConfigKey), "directory of the scan cache")
	bindFlagToConfig(flags.Lookup(cacheDirFlagName), cacheDirConfigKey)

	flags.String(charsetFlagName, viper.GetString(charsetConfigKey), "tree characters: utf8 or ascii")
	bindFlagToConfig(flags.Lookup(charsetFlagName), charsetConfigKey)

	flags.String(prefixFlagName, viper.GetString(prefixConfigKey), "line prefix: indent, depth or none")
	bindFlagToConfig(flags.Lookup(prefixFlagName), prefixConfigKey)

	flags.String(outputFormatFlagName, viper.GetString(outputFormatConfigKey), "output format: text, json or yaml")
	bindFlagToConfig(flags.Lookup(outputFormatFlagName), outputFormatConfigKey)

	flags.Bool(tuiFlagName, viper.GetBool(tuiConfigKey), "show an interactive progress view on terminals")
	bindFlagToConfig(flags.Lookup(tuiFlagName), tuiConfigKey)

	flags.String(reportFlagName, viper.GetString(reportConfigKey), "save the report to a .json or .yaml file")
	bindFlagToConfig(flags.Lookup(reportFlagName), reportConfigKey)

	flags.Bool(uploadFlagName, viper.GetBool(uploadConfigKey), "upload the report to the configured object store")
	bindFlagToConfig(flags.Lookup(uploadFlagName), uploadConfigKey)

	flags.String(historyURLFlagName, viper.GetString(historyURLConfigKey), "PostgreSQL URL recording every run")
	bindFlagToConfig(flags.Lookup(historyURLFlagName), historyURLConfigKey)

	flags.Bool(useBuildFlagName, viper.GetBool(useBuildConfigKey), "separate used from unused files with the build's dep-info files")
	bindFlagToConfig(flags.Lookup(useBuildFlagName), useBuildConfigKey)

	flags.Bool(runBuildFlagName, viper.GetBool(runBuildConfigKey), "run cargo check before reading dep-info files (implies --use-build)")
	bindFlagToConfig(flags.Lookup(runBuildFlagName), runBuildConfigKey)
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
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

// runContext applies the configured timeout to the command context.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if timeout := viper.GetDuration(timeoutConfigKey); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}

	return context.WithCancel(ctx)
}

func renderOptions(cmd *cobra.Command) (controller.RenderOptions, error) {
	charset, err := controller.ParseCharset(viper.GetString(charsetConfigKey))
	if err != nil {
		return controller.RenderOptions{}, err
	}

	prefix, err := controller.ParsePrefix(viper.GetString(prefixConfigKey))
	if err != nil {
		return controller.RenderOptions{}, err
	}

	format, err := controller.ParseOutputFormat(viper.GetString(outputFormatConfigKey))
	if err != nil {
		return controller.RenderOptions{}, err
	}

	return controller.RenderOptions{
		Charset: charset,
		Prefix:  prefix,
		Format:  format,
		Color:   controller.IsTerminal(cmd.OutOrStdout()),
	}, nil
}

func newUI(cmd *cobra.Command, opts controller.RenderOptions) controller.UI {
	if viper.GetBool(tuiConfigKey) && opts.Format == controller.OutputText && controller.IsTerminal(cmd.OutOrStdout()) {
		return controller.NewTUI(cmd.OutOrStdout(), opts)
	}

	return controller.NewSimpleUI(cmd, opts, controller.WithVerbose(viper.GetBool(logVerboseKey)))
}

// newWorkflow wires adapters, UI and stores from the current configuration.
// The returned cleanup releases the cache and the history connection.
func newWorkflow(cmd *cobra.Command) (domain.Workflow, func(), error) {
	opts, err := renderOptions(cmd)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	wfOpts := []domain.WorkflowOption{
		domain.WithReportStore(adapter.NewFileReportStore()),
		domain.WithSpillDir(viper.GetString(spillDirConfigKey)),
	}

	if viper.GetBool(useBuildConfigKey) || viper.GetBool(runBuildConfigKey) {
		wfOpts = append(wfOpts, domain.WithBuildInterceptor(adapter.NewDepInfoAdapter()))
	}

	if !viper.GetBool(noCacheConfigKey) {
		cache, err := adapter.NewBadgerScanCache(adapter.CacheConfig{
			Dir:    viper.GetString(cacheDirConfigKey),
			TTL:    time.Duration(viper.GetInt64(cacheTTLConfigKey)) * time.Second,
			Logger: slog.Default(),
		})
		if err != nil {
			// Runs without a cache parse every file.
			slog.Warn("Scan cache unavailable", "dir", viper.GetString(cacheDirConfigKey), "error", err)
		} else {
			closers = append(closers, func() { _ = cache.Close() })
			wfOpts = append(wfOpts, domain.WithScanCache(cache))
		}
	}

	if viper.GetBool(uploadConfigKey) {
		store, err := newObjectStore()
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		wfOpts = append(wfOpts, domain.WithObjectStore(store))
	}

	if url := viper.GetString(historyURLConfigKey); url != "" {
		history, err := adapter.OpenHistoryStore(cmd.Context(), url)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		closers = append(closers, history.Close)

		if err := history.EnsureSchema(cmd.Context()); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("prepare history store: %w", err)
		}

		wfOpts = append(wfOpts, domain.WithHistoryStore(history))
	}

	wf := domain.NewWorkflow(
		adapter.NewLocalSourceFSAdapter(),
		adapter.NewLocalMetadataAdapter(),
		newUI(cmd, opts),
		domain.NewScanner(adapter.NewLocalRustFileAdapter(), domain.WithIncludeTests(viper.GetBool(includeTestsConfigKey))),
		domain.NewWalker(),
		wfOpts...,
	)

	return wf, cleanup, nil
}

func newObjectStore() (adapter.ObjectStore, error) {
	cfg := adapter.ObjectStoreConfig{
		Endpoint:  viper.GetString(uploadEndpointKey),
		AccessKey: viper.GetString(uploadAccessKeyKey),
		SecretKey: viper.GetString(uploadSecretKeyKey),
		Bucket:    viper.GetString(uploadBucketKey),
		Prefix:    viper.GetString(uploadPrefixKey),
		UseSSL:    viper.GetBool(uploadUseSSLKey),
	}

	if err := configValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid upload configuration: %w", err)
	}

	return adapter.NewMinioObjectStore(cfg)
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}
