package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Prajwal-kp-18/llvm-fihardening/config"
	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// The current version identifier of the hardening tool.
const versionID = "fihardener v0.1.0"

const usage = `Usage: fihardener [flags|options] <path to LLVM IR file>

Flags:
------
-h, --help         Displays usage information (ie. this text).
-v, --version      Displays the current tool version.
-s, --stats        Prints transformation statistics after hardening.
--no-verify        Skips the structural verification run after each function
                   is transformed.

--arithmetic       Enables arithmetic duplicate-verification (off by default).
--exceptions       Enables exception path logging (off by default).
--hardware-io      Enables volatile load validation (off by default).
--timing           Enables timing noise insertion (off by default).
--no-branches      Disables branch condition hardening.
--no-memory        Disables load/store hardening.
--no-cfi           Disables indirect call checking.
--no-redundancy    Disables critical variable shadowing.
--no-bounds        Disables address bounds checking.
--no-stack         Disables return address protection.
--no-logging       Disables fault logging instrumentation.

Options:
--------
-o,  --outpath    Sets the path of the hardened output file.  Defaults to the
                  input path with a .hardened.ll extension.
-p,  --profile    Loads a TOML hardening profile before applying the remaining
                  arguments; later arguments override the profile.
-l,  --level      Sets the hardening level.  Valid values are 0 through 3
                  (default 3).  Higher levels trade code size for coverage.
-ll, --loglevel   Sets the tool's log-level.  Valid values are:
                    - "verbose" for outputting all messages (default)
                    - "warn" for outputting errors and warnings
                    - "error" for outputting errors only
                    - "silent" for no output
`

// Prints the usage message and exits the program with the given exit code.
func printUsage(exitCode int) {
	fmt.Print(usage, "\n")
	os.Exit(exitCode)
}

// argParser is a command-line argument parser.
type argParser struct {
	// The arguments being parsed.
	args []string

	// The argument parser's position within those arguments.
	ndx int
}

// Set containing all the argument names that correspond to options.
var options = map[string]struct{}{
	"o":         {},
	"p":         {},
	"l":         {},
	"ll":        {},
	"-outpath":  {},
	"-profile":  {},
	"-level":    {},
	"-loglevel": {},
}

// argumentError displays an argument error and exits the program.
func argumentError(message string, args ...interface{}) {
	fmt.Print("argument error: ", fmt.Sprintf(message, args...), "\n\n")
	printUsage(1)
}

// nextArg parses the next command-line argument if one exists.  The first
// value is the name of the argument.  If this argument is positional, this
// value is empty.  The second value is the value of the argument.  If this
// value is empty, the argument is a flag.  The final value indicates whether
// or not there was an argument to parse.
func (ap *argParser) nextArg() (string, string, bool) {
	if ap.ndx < len(ap.args) {
		arg := ap.args[ap.ndx]
		ap.ndx++

		if strings.HasPrefix(arg, "-") { // flag or option
			name := arg[1:]

			if _, ok := options[name]; ok { // option
				// Make sure the option value exists.
				if ap.ndx < len(ap.args) && !strings.HasPrefix(ap.args[ap.ndx], "-") {
					value := ap.args[ap.ndx]
					ap.ndx++
					return name, value, true
				}

				argumentError("option %s requires an argument", strings.TrimLeft(name, "-"))
			} else { // flag
				return name, "", true
			}
		} else { // positional
			return "", arg, true
		}
	}

	// No arguments to parse.
	return "", "", false
}

// useArg attempts to use a single command-line argument to initialize the
// hardener.  If the argument is invalid, the program will exit.
func useArg(h *Hardener, name, value string) {
	switch name {
	case "h", "-help":
		printUsage(0)
	case "v", "-version":
		fmt.Println(versionID)
		os.Exit(0)
	case "s", "-stats":
		h.cfg.ShowStats = true
	case "-no-verify":
		h.cfg.VerifyAfter = false
	case "-arithmetic":
		h.cfg.Arithmetic = true
	case "-exceptions":
		h.cfg.Exceptions = true
	case "-hardware-io":
		h.cfg.HardwareIO = true
	case "-timing":
		h.cfg.Timing = true
	case "-no-branches":
		h.cfg.Branches = false
	case "-no-memory":
		h.cfg.Memory = false
	case "-no-cfi":
		h.cfg.CFI = false
	case "-no-redundancy":
		h.cfg.DataRedundancy = false
	case "-no-bounds":
		h.cfg.MemorySafety = false
	case "-no-stack":
		h.cfg.Stack = false
	case "-no-logging":
		h.cfg.Logging = false
	case "l", "-level":
		level, err := strconv.Atoi(value)
		if err != nil {
			argumentError("invalid hardening level: %s", value)
		}

		h.cfg.Level = level
	case "ll", "-loglevel":
		{
			var logLevel int
			switch value {
			case "silent":
				logLevel = report.LogLevelSilent
			case "error":
				logLevel = report.LogLevelError
			case "warn":
				logLevel = report.LogLevelWarn
			case "verbose":
				logLevel = report.LogLevelVerbose
			default:
				argumentError("invalid log level")
			}

			report.InitReporter(logLevel)
		}
	case "o", "-outpath":
		{
			absPath, err := filepath.Abs(value)
			if err != nil {
				argumentError("invalid output path: %s", value)
			}

			h.outputPath = absPath
		}
	case "p", "-profile":
		if err := config.LoadProfile(value, h.cfg); err != nil {
			argumentError("cannot load profile: %s", err)
		}
	case "":
		if h.inputPath == "" {
			absPath, err := filepath.Abs(value)
			if err != nil {
				argumentError("invalid input path: %s", value)
			}

			h.inputPath = absPath
		} else {
			argumentError("input path specified multiple times")
		}
	default:
		argumentError("unknown flag: %s", name)
	}
}

// NewHardenerFromArgs creates a new hardener instance based on the given
// command line arguments if the arguments are valid.
func NewHardenerFromArgs() *Hardener {
	h := &Hardener{cfg: config.Default()}

	ap := argParser{args: os.Args[1:], ndx: 0}

	// Parse all command line arguments.
	for {
		if name, value, ok := ap.nextArg(); ok {
			useArg(h, name, value)
		} else {
			break
		}
	}

	// Check to make sure an input path was specified.
	if h.inputPath == "" {
		argumentError("an input path must be specified")
	}

	if err := h.cfg.Validate(); err != nil {
		argumentError("%s", err)
	}

	// Set default values for any optional unspecified flags.
	if h.outputPath == "" {
		ext := filepath.Ext(h.inputPath)
		h.outputPath = strings.TrimSuffix(h.inputPath, ext) + ".hardened.ll"
	}

	return h
}
