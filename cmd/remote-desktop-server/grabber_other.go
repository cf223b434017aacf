//go:build !windows

package main

import "github.com/breeze-rmm/remote-desktop/internal/capture"

func newScreenGrabber() capture.ScreenGrabber {
	return capture.NewStubGrabber()
}
