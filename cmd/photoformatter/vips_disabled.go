//go:build !vips

package main

import (
	photoformatter "github.com/borelg/10x15cm-Photo-Formatter"
	"github.com/borelg/10x15cm-Photo-Formatter/config"
)

// Without the vips build tag HEIC/HEIF files are reported as skipped and
// JPEG output uses baseline scans from the pure-Go encoder.
func registerVips(_ *photoformatter.Formatter, _ config.Config) func() {
	return func() {}
}
