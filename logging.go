package opts

import "time"

// ConfigurationLogEvent describes one declaration recorded during the
// configuration phase, or the reason it was rejected.
type ConfigurationLogEvent struct {
	Scope   string
	Element string
	Option  string
	Key     any
	Value   any
	Source  string
	Err     error
}

// ConfigurationLogger receives configuration events.
type ConfigurationLogger interface {
	LogConfiguration(ConfigurationLogEvent)
}

// ConfigurationLoggerFunc adapts a function to ConfigurationLogger.
type ConfigurationLoggerFunc func(ConfigurationLogEvent)

func (f ConfigurationLoggerFunc) LogConfiguration(event ConfigurationLogEvent) {
	if f != nil {
		f(event)
	}
}

// EvaluatorLogEvent describes one rule evaluation. Result is nil when Err
// is set.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Scope    string
	Duration time.Duration
	Result   any
	Err      error
}

// EvaluatorLogger receives rule evaluations.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

// WithEvaluatorLogger reports the service's rule evaluations to logger.
func WithEvaluatorLogger(logger EvaluatorLogger) ServiceOption {
	return func(cfg *serviceConfig) {
		if logger == nil {
			logger = discardLogger{}
		}
		cfg.logger = logger
	}
}

// discardLogger drops every event.
type discardLogger struct{}

func (discardLogger) LogConfiguration(ConfigurationLogEvent) {}

func (discardLogger) LogEvaluation(EvaluatorLogEvent) {}
