//go:build !windows

package main

import (
	"context"
	"errors"
)

func init() {
	runFramegen = runFramegenDummy
}

func runFramegenDummy(ctx context.Context, path string) (int, error) {
	return 1, errors.New("framegen: no platform implementation on this OS")
}
