package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rednet.ai/internal/sim/grid"
)

type Tuning struct {
	TickRateHz int  `yaml:"tick_rate_hz"`
	Debug      bool `yaml:"rednet_debug"`
	Channels   int  `yaml:"channels"`
	ChunkSize  int  `yaml:"chunk_size"`

	// SweepWarnConduits logs a line when one re-partition pass walks this many
	// conduits. Zero disables it.
	SweepWarnConduits int `yaml:"sweep_warn_conduits"`

	Log      LogConfig      `yaml:"log"`
	Index    IndexConfig    `yaml:"index"`
	Observer ObserverConfig `yaml:"observer"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type LogConfig struct {
	EventsDir string `yaml:"events_dir"`
}

type IndexConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	Disabled   bool   `yaml:"disabled"`
}

type ObserverConfig struct {
	MaxClients int `yaml:"max_clients"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:        20,
		Channels:          grid.Channels,
		ChunkSize:         grid.ChunkSize,
		SweepWarnConduits: 4096,
		Log:               LogConfig{EventsDir: "data/events"},
		Index:             IndexConfig{SQLitePath: "data/index.sqlite"},
		Observer:          ObserverConfig{MaxClients: 16},
		Tracing:           TracingConfig{SampleRatio: 1},
	}
}

// Load reads path on top of Defaults, so omitted keys keep their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.Channels != grid.Channels {
		return fmt.Errorf("channels must be %d, got %d", grid.Channels, t.Channels)
	}
	if t.ChunkSize != grid.ChunkSize {
		return fmt.Errorf("chunk_size must be %d, got %d", grid.ChunkSize, t.ChunkSize)
	}
	if t.SweepWarnConduits < 0 {
		return fmt.Errorf("sweep_warn_conduits must be >= 0")
	}
	if t.Observer.MaxClients < 0 {
		return fmt.Errorf("observer.max_clients must be >= 0")
	}
	if t.Tracing.SampleRatio < 0 || t.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio out of range: %v", t.Tracing.SampleRatio)
	}
	return nil
}
