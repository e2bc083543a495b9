package logger

import "sync"

// Component loggers installed by the binary. Packages that log on their own,
// such as the llm adapter, look theirs up by name.
var (
	componentsMu sync.RWMutex
	components   = map[string]*Logger{}
)

// Register makes l the logger returned by Get(name).
func Register(name string, l *Logger) {
	componentsMu.Lock()
	components[name] = l
	componentsMu.Unlock()
}

// Get returns the logger registered under name, or the global logger with
// name as its component.
func Get(name string) *Logger {
	componentsMu.RLock()
	l := components[name]
	componentsMu.RUnlock()
	if l != nil {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}
