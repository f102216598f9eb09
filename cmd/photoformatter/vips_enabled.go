//go:build vips

package main

import (
	photoformatter "github.com/borelg/10x15cm-Photo-Formatter"
	"github.com/borelg/10x15cm-Photo-Formatter/adapters/vips"
	"github.com/borelg/10x15cm-Photo-Formatter/config"
)

// registerVips wires the libvips backend: HEIC/HEIF decoding plus progressive
// JPEG output. Returns the shutdown function for process exit.
func registerVips(f *photoformatter.Formatter, cfg config.Config) func() {
	backend := vips.NewBackend(vips.BackendConfig{
		DefaultQuality: cfg.Quality,
		MaxWorkers:     cfg.WorkerCount,
	})
	vips.Register(f.Registry(), backend)
	return backend.Shutdown
}
