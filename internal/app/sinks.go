package app

import (
	"fmt"
	"os"
	"path/filepath"

	"spellcast/server/logging"
	loggingSinks "spellcast/server/logging/sinks"
)

// buildSinks opens the sinks enabled in cfg. The json sink appends to its
// file, creating parent directories as needed.
func buildSinks(cfg logging.Config) ([]logging.NamedSink, error) {
	var named []logging.NamedSink
	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsole(os.Stdout)})
		case "memory":
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewMemory()})
		case "json":
			if cfg.JSON.FilePath == "" {
				return nil, fmt.Errorf("json sink requires a file path")
			}
			if err := os.MkdirAll(filepath.Dir(cfg.JSON.FilePath), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
			f, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open json log: %w", err)
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(f, cfg.JSON.FlushInterval)})
		default:
			return nil, fmt.Errorf("unknown log sink %q", name)
		}
	}
	return named, nil
}
