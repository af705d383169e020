package cli

import (
	"os"
	"strings"

	"github.com/rollup/plugins-sub001/internal/app"
	"github.com/rollup/plugins-sub001/internal/config"
	"github.com/rollup/plugins-sub001/internal/report"
)

const configEnv = config.EnvPrefix + "_CONFIG"

type globalFlags struct {
	root    string
	config  string
	verbose bool
}

// configFile returns the config path from the flag or the environment.
func (f *globalFlags) configFile() string {
	if value := strings.TrimSpace(f.config); value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(configEnv))
}

func (f *globalFlags) request(mode app.Mode, entries []string, formatFlag string) (app.Request, error) {
	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return app.Request{}, err
	}
	req := app.DefaultRequest()
	req.Mode = mode
	req.Format = format
	req.ConfigPath = f.configFile()
	if root := strings.TrimSpace(f.root); root != "" {
		req.Root = root
	}
	for _, entry := range entries {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			req.Entries = append(req.Entries, trimmed)
		}
	}
	return req, nil
}
