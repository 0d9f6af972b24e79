package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DemoConfig is the on-disk shape for this demo binary. It only covers the
// knobs the sequencing core itself recognizes (spec.md §6); authentication
// and transport details are intentionally out of scope here, same as they
// are for the core.
type DemoConfig struct {
	UserID int64 `yaml:"user_id"`

	UpdateQueueLimit *int          `yaml:"update_queue_limit"`
	CommonDeadline   time.Duration `yaml:"common_deadline"`
	ChannelDeadline  time.Duration `yaml:"channel_deadline"`
	CatchUp          bool          `yaml:"catch_up"`
}

func loadConfig(path string) (DemoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DemoConfig{}, err
	}
	var cfg DemoConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DemoConfig{}, err
	}
	return cfg, nil
}
