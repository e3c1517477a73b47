package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads the config file whenever it is written and hands the
// validated result to onChange. Edits that fail validation go to onError and
// the previous configuration stays in effect. Watch returns false, and does
// nothing, when no config file is in use.
func Watch(onChange func(*Config), onError func(error)) bool {
	if viper.ConfigFileUsed() == "" {
		return false
	}
	viper.OnConfigChange(changeHandler(onChange, onError))
	viper.WatchConfig()
	return true
}

func changeHandler(onChange func(*Config), onError func(error)) func(fsnotify.Event) {
	return func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	}
}
