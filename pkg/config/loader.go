package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/kkyr/fig"
	flag "github.com/spf13/pflag"
)

const (
	EnvPrefix = "WIRECALL"
	FileName  = "config.yaml"
)

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom directory of the configuration file.
// Reads and puts environment variables with the prefix WIRECALL_.
// Params from the config should be in uppercase separated with _.
// Without any config file only the defaults and the environment are used.
func LoadConfig(config any, path string) (string, error) {
	dirs := []string{path}
	if path == "" {
		dirs = []string{".", "configs", "../../configs"}
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, ".wirecall"))
		}
	}
	err := fig.Load(config, fig.File(FileName), fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
	if err == nil {
		return findFile(dirs), nil
	}
	if !errors.Is(err, fig.ErrFileNotFound) {
		return "", err
	}
	return "", LoadConfigEnv(config)
}

func LoadConfigEnv(config any) error {
	return fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
}

func findFile(dirs []string) string {
	for _, dir := range dirs {
		p := filepath.Join(dir, FileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// PeekPath extracts the --conf value from the args
// before the rest of the flags are bound to a loaded config.
func PeekPath(args []string) string {
	fs := flag.NewFlagSet("peek", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	fs.SetOutput(nopWriter{})
	path := fs.String(PathFlag, "", "")
	_ = fs.Parse(args)
	return *path
}

const PathFlag = "conf"

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
