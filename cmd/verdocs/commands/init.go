package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/verdocs/internal/config"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
)

// RunInit writes an example configuration file.
func RunInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", logfields.Path(configPath), "force", force)
	return config.Init(configPath, force)
}
