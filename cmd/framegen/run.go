package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runFramegen opens the devices config.Load(path) describes and runs
// the pipeline until the window closes or a fatal error occurs. It
// returns the process exit code spec.md §6 defines: 0 for a normal
// exit, 1 for an initialization failure; any other non-zero code is a
// run-time failure after initialization succeeded, not standardized
// by spec.md beyond "non-zero".
var runFramegen func(ctx context.Context, path string) (int, error)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the frame-generation pipeline until the window closes",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := runFramegen(context.Background(), cfgFile)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		if code != 0 {
			os.Exit(code)
		}
		return nil
	},
}
