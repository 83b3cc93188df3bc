package app

import "log/slog"

// LoggingNavigator stands in for a browser router when the host runs
// headless; navigation requests are only logged.
type LoggingNavigator struct {
	Logger *slog.Logger
}

func NewLoggingNavigator(logger *slog.Logger) *LoggingNavigator {
	return &LoggingNavigator{Logger: logger}
}

func (n *LoggingNavigator) Push(path string) {
	n.Logger.Info("navigate", "mode", "push", "path", path)
}

func (n *LoggingNavigator) Replace(path string) {
	n.Logger.Info("navigate", "mode", "replace", "path", path)
}
