package pgmq

// Logger wraps the basic Printf logging method. It is compatible with the
// standard log.Logger and installed via WithLogger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// LevelLogger supports leveled logging. zap's SugaredLogger satisfies it
// directly; install via WithLevelLogger.
type LevelLogger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// NoopLogger discards all log output. It is the default when no logger is
// configured.
type NoopLogger struct{}

func (NoopLogger) Infof(format string, args ...interface{})  {}
func (NoopLogger) Errorf(format string, args ...interface{}) {}
func (NoopLogger) Warnf(format string, args ...interface{})  {}
func (NoopLogger) Debugf(format string, args ...interface{}) {}
func (NoopLogger) Printf(format string, v ...interface{})    {}

type levelLogAdapter struct {
	logger Logger
}

func (l *levelLogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Printf("INFO: "+format, args...)
}

func (l *levelLogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Printf("ERROR: "+format, args...)
}

func (l *levelLogAdapter) Warnf(format string, args ...interface{}) {
	l.logger.Printf("WARN: "+format, args...)
}

func (l *levelLogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Printf("DEBUG: "+format, args...)
}
