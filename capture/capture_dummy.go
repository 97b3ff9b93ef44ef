//go:build !windows

package capture

import "errors"

func init() {
	newCapturer = newCapturerDummy
}

func newCapturerDummy(Config) (Capturer, error) {
	return nil, errors.New("capture: no desktop duplication implementation on this platform")
}
