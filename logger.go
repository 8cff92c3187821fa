package algfetch

// Fields carries structured context for one log line.
type Fields map[string]any

// Logger receives the engine's diagnostics: construction races, legacy
// fallbacks, resolution cache trouble and provider set changes. Adapters
// for zap, logrus and slog live under log/.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger drops everything. A Library without Options.Logger uses it.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
