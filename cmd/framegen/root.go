package main

import "github.com/spf13/cobra"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "framegen",
	Short: "GPU frame-generation pipeline",
	Long:  "framegen captures the desktop, interpolates intermediate frames with optical flow, and presents the result in a window.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "framegen.ini", "path to the configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}
