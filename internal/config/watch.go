package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch loads configuration like LoadFromPath (or Load when path is empty)
// and calls onChange with the reloaded config every time the file changes.
// onChange receives a non-nil error when the new file does not decode.
// Nothing is watched when no config file exists.
func Watch(path string, onChange func(*Config, error)) (*Config, error) {
	v, cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if path == "" {
			if err := mergeProjectConfig(v); err != nil {
				onChange(nil, err)
				return
			}
		}
		next, err := decode(v)
		onChange(next, err)
	})
	v.WatchConfig()
	return cfg, nil
}

// mergeProjectConfig layers .switchyard.yaml over v when one exists.
func mergeProjectConfig(v *viper.Viper) error {
	projectConfig := findProjectConfig()
	if projectConfig == "" {
		return nil
	}
	projectViper := viper.New()
	projectViper.SetConfigFile(projectConfig)
	if err := projectViper.ReadInConfig(); err != nil {
		return nil
	}
	if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
		return fmt.Errorf("merging project config: %w", err)
	}
	return nil
}
