package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `toml:"server" yaml:"server"`
	Client     ClientConfig     `toml:"client" yaml:"client"`
	Simulation SimulationConfig `toml:"simulation" yaml:"simulation"`
	Network    NetworkConfig    `toml:"network" yaml:"network"`
	Movement   MovementConfig   `toml:"movement" yaml:"movement"`
	Camera     CameraConfig     `toml:"camera" yaml:"camera"`
	Script     ScriptConfig     `toml:"script" yaml:"script"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Name    string `toml:"name" yaml:"name"`
	Version string `toml:"version" yaml:"version"` // handshake string, must match exactly
	Motd    string `toml:"motd" yaml:"motd"`
}

type ClientConfig struct {
	QuitOnDisconnect bool `toml:"quit_on_disconnect" yaml:"quit_on_disconnect"`
}

type SimulationConfig struct {
	Timestep time.Duration `toml:"timestep" yaml:"timestep"`
	SimRate  time.Duration `toml:"sim_rate" yaml:"sim_rate"` // cap on accumulated time
	Parallel bool          `toml:"parallel" yaml:"parallel"`
}

type NetworkConfig struct {
	Address          string        `toml:"address" yaml:"address"`
	InQueueSize      int           `toml:"in_queue_size" yaml:"in_queue_size"`
	OutQueueSize     int           `toml:"out_queue_size" yaml:"out_queue_size"`
	ReadBuffer       int           `toml:"read_buffer" yaml:"read_buffer"`
	MaxBufferedBytes int           `toml:"max_buffered_bytes" yaml:"max_buffered_bytes"`
	WriteTimeout     time.Duration `toml:"write_timeout" yaml:"write_timeout"`
	DialTimeout      time.Duration `toml:"dial_timeout" yaml:"dial_timeout"`
	FramesPerSecond  int           `toml:"frames_per_second" yaml:"frames_per_second"` // 0 = unlimited
	FrameBurst       int           `toml:"frame_burst" yaml:"frame_burst"`
}

type MovementConfig struct {
	TravelTime time.Duration `toml:"travel_time" yaml:"travel_time"`
}

type CameraConfig struct {
	WindowWidth  int        `toml:"window_width" yaml:"window_width"`
	WindowHeight int        `toml:"window_height" yaml:"window_height"`
	Fov          float32    `toml:"fov" yaml:"fov"` // radians
	Eye          [3]float32 `toml:"eye" yaml:"eye"`
	Target       [3]float32 `toml:"target" yaml:"target"`
}

type ScriptConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
	File   string `toml:"file" yaml:"file"`     // empty = stderr
}

// Load reads a TOML or YAML file (chosen by extension) over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Simulation.Timestep <= 0 {
		return fmt.Errorf("simulation.timestep must be positive, got %s", c.Simulation.Timestep)
	}
	if c.Simulation.SimRate < c.Simulation.Timestep {
		return fmt.Errorf("simulation.sim_rate %s is below timestep %s", c.Simulation.SimRate, c.Simulation.Timestep)
	}
	if c.Server.Version == "" {
		return fmt.Errorf("server.version must not be empty")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "box",
			Version: "0.1.0",
			Motd:    "drink your ovaltine",
		},
		Client: ClientConfig{
			QuitOnDisconnect: true,
		},
		Simulation: SimulationConfig{
			Timestep: 2 * time.Millisecond,
			SimRate:  33 * time.Millisecond,
		},
		Network: NetworkConfig{
			Address:          "127.0.0.1:8844",
			InQueueSize:      128,
			OutQueueSize:     256,
			ReadBuffer:       4096,
			MaxBufferedBytes: 2 << 20,
			WriteTimeout:     10 * time.Second,
			DialTimeout:      5 * time.Second,
			FramesPerSecond:  0,
			FrameBurst:       64,
		},
		Movement: MovementConfig{
			TravelTime: time.Second,
		},
		Camera: CameraConfig{
			WindowWidth:  1280,
			WindowHeight: 720,
			Fov:          0.7853982, // pi/4
			Eye:          [3]float32{0, 0, 10},
			Target:       [3]float32{0, 0, 0},
		},
		Script: ScriptConfig{
			Enabled: false,
			Path:    "scripts/autopilot.lua",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
