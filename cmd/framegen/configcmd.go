package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/osfg-go/framegen/config"
	"github.com/osfg-go/framegen/hotkey"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the configuration file",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configuration file and report whether it is valid",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading %s: %w", cfgFile, err)
		}
		if err := s.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", cfgFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Load the configuration file and print its effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading %s: %w", cfgFile, err)
		}
		printSettings(cmd, s)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

func printSettings(cmd *cobra.Command, s *config.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "[FrameGen]\n")
	fmt.Fprintf(out, "  Mode            = %s\n", s.FrameGen.Mode)
	fmt.Fprintf(out, "  Enabled         = %v\n", s.FrameGen.Enabled)
	fmt.Fprintf(out, "  TargetFramerate = %g\n", s.FrameGen.TargetFramerate)

	fmt.Fprintf(out, "[Capture]\n")
	fmt.Fprintf(out, "  Method  = %s\n", s.Capture.Method)
	fmt.Fprintf(out, "  Monitor = %d\n", s.Capture.Monitor)
	fmt.Fprintf(out, "  Cursor  = %v\n", s.Capture.Cursor)

	fmt.Fprintf(out, "[GPU]\n")
	fmt.Fprintf(out, "  Mode      = %s\n", s.GPU.Mode)
	fmt.Fprintf(out, "  Primary   = %d\n", s.GPU.Primary)
	fmt.Fprintf(out, "  Secondary = %d\n", s.GPU.Secondary)

	fmt.Fprintf(out, "[OpticalFlow]\n")
	fmt.Fprintf(out, "  BlockSize            = %d\n", s.OpticalFlow.BlockSize)
	fmt.Fprintf(out, "  SearchRadius         = %d\n", s.OpticalFlow.SearchRadius)
	fmt.Fprintf(out, "  SceneChangeThreshold = %g\n", s.OpticalFlow.SceneChangeThreshold)

	fmt.Fprintf(out, "[Presentation]\n")
	fmt.Fprintf(out, "  VSync      = %v\n", s.Presentation.VSync)
	fmt.Fprintf(out, "  Borderless = %v\n", s.Presentation.Borderless)
	fmt.Fprintf(out, "  Width      = %d\n", s.Presentation.Width)
	fmt.Fprintf(out, "  Height     = %d\n", s.Presentation.Height)

	fmt.Fprintf(out, "[Overlay]\n")
	fmt.Fprintf(out, "  Show      = %v\n", s.Overlay.Show)
	fmt.Fprintf(out, "  FPS       = %v\n", s.Overlay.FPS)
	fmt.Fprintf(out, "  FrameTime = %v\n", s.Overlay.FrameTime)
	fmt.Fprintf(out, "  GPUUsage  = %v\n", s.Overlay.GPUUsage)
	fmt.Fprintf(out, "  Position  = %d\n", s.Overlay.Position)
	fmt.Fprintf(out, "  Scale     = %g\n", s.Overlay.Scale)

	fmt.Fprintf(out, "[Hotkeys]\n")
	fmt.Fprintf(out, "  ToggleFrameGen = %s\n", hotkey.FormatBinding(s.Hotkeys.ToggleFrameGen, s.Hotkeys.RequireAlt))
	fmt.Fprintf(out, "  ToggleOverlay  = %s\n", hotkey.FormatBinding(s.Hotkeys.ToggleOverlay, s.Hotkeys.RequireAlt))
	fmt.Fprintf(out, "  CycleMode      = %s\n", hotkey.FormatBinding(s.Hotkeys.CycleMode, s.Hotkeys.RequireAlt))

	fmt.Fprintf(out, "[Advanced]\n")
	fmt.Fprintf(out, "  FrameBufferCount = %d\n", s.Advanced.FrameBufferCount)
	fmt.Fprintf(out, "  PeerToPeer       = %v\n", s.Advanced.PeerToPeer)
	fmt.Fprintf(out, "  Debug            = %v\n", s.Advanced.Debug)
	fmt.Fprintf(out, "  LogFile          = %s\n", s.Advanced.LogFile)
}
