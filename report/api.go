package report

import (
	"fmt"
	"os"
)

// NOTE: All report functions will only display if the appropriate log level
// is set.  Most report functions simply fail silently below their log level.

// ReportTransform reports a single applied transformation.  These messages
// are purely informational and only display at the verbose log level.
func ReportTransform(msg string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel >= LogLevelVerbose {
		displayTransformNote(fmt.Sprintf(msg, args...))
	}
}

// ReportHeader reports a phase or module banner at the verbose log level.
func ReportHeader(msg string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel >= LogLevelVerbose {
		displayHeader(fmt.Sprintf(msg, args...))
	}
}

// ReportWarning reports a non-fatal warning.
func ReportWarning(msg string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.warningCount++

	if rep.logLevel >= LogLevelWarn {
		displayWarning(fmt.Sprintf(msg, args...))
	}
}

// ReportError reports a non-fatal error: the current phase finishes, but the
// program exits unsuccessfully once it does.
func ReportError(msg string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.errorCount++

	if rep.logLevel >= LogLevelError {
		displayError(fmt.Sprintf(msg, args...))
	}
}

// ReportFatal reports a fatal error and exits the program.  It automatically
// formats error messages as necessary.
func ReportFatal(msg string, args ...interface{}) {
	rep.m.Lock()
	rep.errorCount++
	rep.m.Unlock()

	displayFatalError(fmt.Sprintf(msg, args...))

	os.Exit(1)
}

// ReportStats displays a preformatted statistics block.  Statistics are
// considered user-requested output and display at every log level except
// silent.
func ReportStats(block string) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel > LogLevelSilent {
		fmt.Print(block)
	}
}

// ReportFinished reports the concluding message for a hardening run.
func ReportFinished(outputPath string) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel == LogLevelVerbose {
		displayFinished(rep.errorCount, rep.warningCount, outputPath)
	}
}
