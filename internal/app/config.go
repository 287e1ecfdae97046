package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlexxIT/go2a2dp/pkg/shell"
	"github.com/AlexxIT/go2a2dp/pkg/yaml"
)

var ConfigPath string
var ConfigReadOnly bool

var (
	ErrConfigDisabled = errors.New("config file disabled")
	ErrConfigReadOnly = errors.New("config is read-only")
)

// LoadConfig applies every config source in order, later sources win
func LoadConfig(v any) {
	for _, data := range configs {
		if err := yaml.Unmarshal(data, v); err != nil {
			Logger.Warn().Err(err).Msg("[app] read config")
		}
	}
}

// PatchConfig - set value at the path of keys in the config file,
// nil value removes the key
func PatchConfig(path []string, value any) error {
	if ConfigPath == "" {
		return ErrConfigDisabled
	}
	if ConfigReadOnly {
		return ErrConfigReadOnly
	}
	if len(path) == 0 {
		return errors.New("config: empty path")
	}

	// empty config is OK
	b, _ := os.ReadFile(ConfigPath)

	b, err := yaml.Patch(b, path[len(path)-1], value, path[:len(path)-1]...)
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath, b, 0644)
}

type flagConfig []string

func (c *flagConfig) String() string {
	return strings.Join(*c, " ")
}

func (c *flagConfig) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var configs [][]byte

func initConfig(confs flagConfig) {
	if confs == nil {
		confs = []string{"go2a2dp.yaml"}
	}

	for _, conf := range confs {
		if len(conf) == 0 {
			continue
		}
		if conf[0] == '{' {
			// config as raw YAML or JSON
			configs = append(configs, []byte(conf))
		} else if data := parseConfString(conf); data != nil {
			configs = append(configs, data)
		} else {
			// config as file
			if ConfigPath == "" {
				ConfigPath = conf
			}

			if data, _ = os.ReadFile(conf); data == nil {
				continue
			}

			data = []byte(shell.ReplaceEnvVars(string(data)))
			configs = append(configs, data)
		}
	}

	if ConfigPath != "" {
		if !filepath.IsAbs(ConfigPath) {
			if cwd, err := os.Getwd(); err == nil {
				ConfigPath = filepath.Join(cwd, ConfigPath)
			}
		}
		Info["config_path"] = ConfigPath
	}
}

func parseConfString(s string) []byte {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return nil
	}

	items := strings.Split(s[:i], ".")
	if len(items) < 2 {
		return nil
	}

	// `a2dp.suspend_policy=lenient` => `{a2dp: {suspend_policy: lenient}}`
	var pre string
	var suf = s[i+1:]
	for _, item := range items {
		pre += "{" + item + ": "
		suf += "}"
	}

	return []byte(pre + suf)
}
