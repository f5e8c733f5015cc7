package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rads.dev/pkg/rads/internal/adapter"
	"rads.dev/pkg/rads/internal/domain"
	m "rads.dev/pkg/rads/internal/model"
)

// graphFlags selects the dependency graph and how it is walked. Each command
// owns its own set, they are not persisted in the configuration.
type graphFlags struct {
	manifestPath      string
	metadataFile      string
	pkg               string
	features          []string
	allFeatures       bool
	noDefaultFeatures bool
	target            string
	allTargets        bool
	offline           bool

	invert    bool
	all       bool
	depth     int
	buildDeps bool
	devDeps   bool
	allDeps   bool
}

func (f *graphFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringVar(&f.manifestPath, "manifest-path", "", "path to Cargo.toml")
	flags.StringVar(&f.metadataFile, "metadata-file", "", "read `cargo metadata` JSON from a file instead of running cargo")
	flags.StringVarP(&f.pkg, "package", "p", "", "workspace member to audit")
	flags.StringSliceVarP(&f.features, "features", "F", nil, "space or comma separated list of features to activate")
	flags.BoolVar(&f.allFeatures, "all-features", false, "activate all available features")
	flags.BoolVar(&f.noDefaultFeatures, "no-default-features", false, "do not activate the default feature")
	flags.StringVar(&f.target, "target", "", "only include dependencies of the given target triple (default: the rustc host)")
	flags.BoolVar(&f.allTargets, "all-targets", false, "include dependencies of every platform")
	flags.BoolVar(&f.offline, "offline", false, "run cargo without accessing the network")

	flags.BoolVarP(&f.invert, "invert", "i", false, "invert the tree direction")
	flags.BoolVarP(&f.all, "all", "a", false, "expand every occurrence of a package instead of marking repeats with (*)")
	flags.IntVar(&f.depth, "depth", 0, "maximum display depth of the tree (0 = unlimited)")
	flags.BoolVar(&f.buildDeps, "build-deps", false, "also follow build dependencies")
	flags.BoolVar(&f.devDeps, "dev-deps", false, "also follow dev dependencies")
	flags.BoolVar(&f.allDeps, "all-deps", false, "follow every dependency kind")
}

func (f *graphFlags) kinds() m.KindSet {
	if f.allDeps {
		return m.KindSetAll
	}

	kinds := m.KindSetNormal
	if f.buildDeps {
		kinds |= m.KindSetBuild
	}

	if f.devDeps {
		kinds |= m.KindSetDev
	}

	return kinds
}

// scanArgs merges the graph flags with the configured scan settings.
func (f *graphFlags) scanArgs() domain.ScanArgs {
	runBuild := viper.GetBool(runBuildConfigKey)

	return domain.ScanArgs{
		Resolve: adapter.ResolveArgs{
			ManifestPath:      m.Path(f.manifestPath),
			MetadataFile:      m.Path(f.metadataFile),
			Package:           f.pkg,
			Features:          f.features,
			AllFeatures:       f.allFeatures,
			NoDefaultFeatures: f.noDefaultFeatures,
			FilterPlatform:    f.target,
			AllTargets:        f.allTargets,
			Offline:           f.offline,
		},
		Walk: domain.WalkOptions{
			Invert:   f.invert,
			Kinds:    f.kinds(),
			All:      f.all,
			MaxDepth: f.depth,
		},
		Workers:      viper.GetInt(parallelConfigKey),
		FailFast:     viper.GetBool(failFastConfigKey),
		IncludeTests: viper.GetBool(includeTestsConfigKey),
		UseBuild:     viper.GetBool(useBuildConfigKey) || runBuild,
		RunBuild:     runBuild,
		ReportPath:   m.Path(viper.GetString(reportConfigKey)),
	}
}

func newScanCmd() *cobra.Command {
	var flags graphFlags

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a crate and its dependencies for unsafe code",
		Long:  scanLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := runContext(cmd)
			defer cancel()

			wf, cleanup, err := workflowFactory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = wf.Scan(ctx, flags.scanArgs())

			return err
		},
	}

	flags.register(cmd)

	return cmd
}
