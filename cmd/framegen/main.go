// Command framegen is the demo harness for the frame-generation
// pipeline: it loads a configuration file, opens the capture and
// compute devices it describes, and runs the orchestrator loop until
// the window closes or a fatal error occurs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
