// Package cmd implements the fihardener command-line driver: argument
// parsing, the parse/transform/emit pipeline, and output handling.
package cmd

import (
	"os"

	"github.com/llir/llvm/asm"
	"github.com/pkg/errors"

	"github.com/Prajwal-kp-18/llvm-fihardening/config"
	"github.com/Prajwal-kp-18/llvm-fihardening/harden"
	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// Hardener is an instance of the hardening tool: one input module hardened
// into one output module.
type Hardener struct {
	// The absolute path to the input IR file.
	inputPath string

	// The absolute path to the hardened output file.
	outputPath string

	// The hardening configuration assembled from defaults, an optional
	// profile, and command-line arguments.
	cfg *config.Config
}

// Harden runs the full pipeline: parse the input module, transform it, and
// emit the hardened IR.  It returns whether hardening succeeded.
func (h *Hardener) Harden() bool {
	mod, err := asm.ParseFile(h.inputPath)
	if err != nil {
		report.ReportFatal("failed to parse %s: %s", h.inputPath, err)
		return false
	}

	pass := harden.New(h.cfg)
	pass.Run(mod)

	if !report.ShouldProceed() {
		return false
	}

	if err := h.emit(mod.String()); err != nil {
		report.ReportError("%s", err)
		return false
	}

	report.ReportFinished(h.outputPath)
	return true
}

// emit writes the hardened module text to the output path.
func (h *Hardener) emit(text string) error {
	if err := os.WriteFile(h.outputPath, []byte(text), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", h.outputPath)
	}
	return nil
}
