package options

import (
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Load reads a YAML, JSON or TOML file into g. Keys that are not widget
// options are ignored.
func Load(path string, g *Global) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read widget config: %w", err)
	}
	g.Set(fromViper(v))
	return v, nil
}

// Watch loads path and keeps g in sync with later edits to the file.
func Watch(path string, g *Global) error {
	v, err := Load(path, g)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		g.Set(fromViper(v))
		slog.Info("widget config reloaded", "path", e.Name)
	})
	v.WatchConfig()
	return nil
}

func fromViper(v *viper.Viper) map[string]any {
	unknown := lo.Reject(v.AllKeys(), func(k string, _ int) bool { return IsKnown(k) })
	if len(unknown) > 0 {
		slog.Warn("widget config: ignoring unknown keys", "keys", unknown)
	}

	values := make(map[string]any, len(Names))
	for _, name := range Names {
		if v.IsSet(name) {
			values[name] = v.Get(name)
		}
	}
	return values
}
