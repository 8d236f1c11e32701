package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/kkyr/fig"
)

const (
	EnvPrefix = "MEDIABRIDGE"
	FileName  = "config.yaml"
)

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom path to the configuration file,
// an empty path means a search in the default dirs.
// Reads and puts environment variables with the prefix MEDIABRIDGE_.
// Params from the config should be in uppercase separated with _.
// When no file is found (and no custom path is given),
// only the defaults and the environment are used.
// Returns the path of the loaded file if any.
func LoadConfig(config any, path string) (string, error) {
	file, err := find(path)
	if err != nil {
		return "", err
	}
	if file == "" {
		return "", fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	err = fig.Load(config,
		fig.File(filepath.Base(file)),
		fig.Dirs(filepath.Dir(file)),
		fig.UseEnv(EnvPrefix),
	)
	return file, err
}

// Load reads the bridge configuration and validates it.
func Load(path string) (*Bridge, string, error) {
	var conf Bridge
	file, err := LoadConfig(&conf, path)
	if err != nil {
		return nil, "", err
	}
	if err := conf.Validate(); err != nil {
		return nil, "", err
	}
	return &conf, file, nil
}

// Default returns the configuration built only from defaults.
func Default() Bridge {
	var conf Bridge
	_ = fig.Load(&conf, fig.IgnoreFile())
	return conf
}

func find(path string) (string, error) {
	if path != "" {
		if fi, err := os.Stat(path); err != nil {
			return "", err
		} else if fi.IsDir() {
			path = filepath.Join(path, FileName)
			if _, err := os.Stat(path); err != nil {
				return "", err
			}
		}
		return path, nil
	}
	dirs := []string{".", "configs"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".mediabridge"))
	}
	for _, dir := range dirs {
		p := filepath.Join(dir, FileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}
