package report

import "sync"

// reporter is responsible for relaying transformation messages, warnings, and
// errors to the user.  It respects the set log level and is synchronized: its
// methods can be safely called from multiple goroutines.
type reporter struct {
	// The mutex used to synchronize report calls.
	m *sync.Mutex

	// The selected log level.  This must be one of the enumerated log levels
	// below.
	logLevel int

	// The number of errors reported so far.
	errorCount int

	// The number of warnings reported so far.
	warningCount int
}

// Enumeration of the different possible log levels.
const (
	LogLevelSilent  = iota // Displays no output.
	LogLevelError          // Displays only errors to the user.
	LogLevelWarn           // Displays only warnings and errors to the user.
	LogLevelVerbose        // Displays all messages to the user (default).
)

// rep is the global reporter instance.
var rep = &reporter{
	m:        &sync.Mutex{},
	logLevel: LogLevelVerbose,
}

// InitReporter initializes the global reporter to the given log level.
func InitReporter(logLevel int) {
	rep = &reporter{
		m:        &sync.Mutex{},
		logLevel: logLevel,
	}
}

// ShouldProceed indicates whether or not any errors have been reported that
// should cause the current phase to stop.
func ShouldProceed() bool {
	rep.m.Lock()
	defer rep.m.Unlock()

	return rep.errorCount == 0
}

// ErrorCount returns the number of errors reported so far.
func ErrorCount() int {
	rep.m.Lock()
	defer rep.m.Unlock()

	return rep.errorCount
}
