package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rads.dev/pkg/rads/internal/domain"
)

func newFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files <path>...",
		Short: "Scan individual Rust files or directories",
		Long:  filesLongDescription,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := runContext(cmd)
			defer cancel()

			wf, cleanup, err := workflowFactory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = wf.ScanFiles(ctx, domain.FilesArgs{
				Paths:        parsePaths(args),
				Workers:      viper.GetInt(parallelConfigKey),
				FailFast:     viper.GetBool(failFastConfigKey),
				IncludeTests: viper.GetBool(includeTestsConfigKey),
			})

			return err
		},
	}
}
