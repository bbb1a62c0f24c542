package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// tomlProfileFile represents a hardening profile file as it is encoded in
// TOML.
type tomlProfileFile struct {
	Hardening *tomlProfile `toml:"hardening"`
}

// tomlProfile represents the hardening options as they are encoded in TOML.
// All fields are pointers so that keys absent from the file leave the
// corresponding defaults untouched.
type tomlProfile struct {
	Branches       *bool `toml:"branches"`
	Memory         *bool `toml:"memory"`
	Arithmetic     *bool `toml:"arithmetic"`
	CFI            *bool `toml:"cfi"`
	DataRedundancy *bool `toml:"data-redundancy"`
	MemorySafety   *bool `toml:"memory-safety"`
	Stack          *bool `toml:"stack"`
	Exceptions     *bool `toml:"exceptions"`
	HardwareIO     *bool `toml:"hardware-io"`
	Logging        *bool `toml:"logging"`
	Timing         *bool `toml:"timing"`
	Level          *int  `toml:"level"`
	ShowStats      *bool `toml:"show-stats"`
	VerifyAfter    *bool `toml:"verify-after-transform"`
}

// LoadProfile loads a TOML hardening profile and overlays it onto the given
// configuration.  Keys absent from the file keep their current values.
func LoadProfile(path string, cfg *Config) error {
	buff, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read profile file")
	}

	tpf := &tomlProfileFile{}
	if err := toml.Unmarshal(buff, tpf); err != nil {
		return errors.Wrap(err, "failed to parse profile file")
	}

	if tpf.Hardening == nil {
		return errors.Errorf("profile file %s is missing a [hardening] table", path)
	}

	tp := tpf.Hardening
	overlayBool(&cfg.Branches, tp.Branches)
	overlayBool(&cfg.Memory, tp.Memory)
	overlayBool(&cfg.Arithmetic, tp.Arithmetic)
	overlayBool(&cfg.CFI, tp.CFI)
	overlayBool(&cfg.DataRedundancy, tp.DataRedundancy)
	overlayBool(&cfg.MemorySafety, tp.MemorySafety)
	overlayBool(&cfg.Stack, tp.Stack)
	overlayBool(&cfg.Exceptions, tp.Exceptions)
	overlayBool(&cfg.HardwareIO, tp.HardwareIO)
	overlayBool(&cfg.Logging, tp.Logging)
	overlayBool(&cfg.Timing, tp.Timing)
	overlayBool(&cfg.ShowStats, tp.ShowStats)
	overlayBool(&cfg.VerifyAfter, tp.VerifyAfter)

	if tp.Level != nil {
		cfg.Level = *tp.Level
	}

	return cfg.Validate()
}

func overlayBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
