package cmd

import (
	"github.com/spf13/cobra"
)

func newForbidCmd() *cobra.Command {
	var flags graphFlags

	cmd := &cobra.Command{
		Use:   "forbid",
		Short: "Report which packages forbid unsafe code",
		Long:  forbidLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := runContext(cmd)
			defer cancel()

			wf, cleanup, err := workflowFactory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = wf.Forbid(ctx, flags.scanArgs())

			return err
		},
	}

	flags.register(cmd)

	return cmd
}
