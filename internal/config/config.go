// Package config loads the mudra configuration file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Camera configures frame capture.
type Camera struct {
	DeviceID        int     `json:"device_id" validate:"gte=0"`
	Width           int     `json:"width" validate:"gte=0"`
	Height          int     `json:"height" validate:"gte=0"`
	IdleFPS         int     `json:"idle_fps" validate:"min=1,ltefield=ActiveFPS"`
	ActiveFPS       int     `json:"active_fps" validate:"min=1,max=120"`
	MotionThreshold float64 `json:"motion_threshold" validate:"gte=0,lte=1"`
}

// Detector configures the landmark model.
type Detector struct {
	MaxHands        int     `json:"max_hands" validate:"min=1,max=2"`
	MinConfidence   float64 `json:"min_confidence" validate:"gte=0,lte=1"`
	MinTrackingConf float64 `json:"min_tracking_confidence" validate:"gte=0,lte=1"`
}

// Tracker mirrors gesture.TrackerConfig with file-friendly durations.
type Tracker struct {
	Capacity          int      `json:"capacity" validate:"min=2,max=120"`
	SwipeDistance     float64  `json:"swipe_distance" validate:"gt=0"`
	DepthDistance     float64  `json:"depth_distance" validate:"gt=0"`
	DominanceRatio    float64  `json:"dominance_ratio" validate:"gte=1"`
	ReversalTolerance float64  `json:"reversal_tolerance" validate:"gte=0,lt=1"`
	MaxWindow         Duration `json:"max_window" validate:"gt=0"`
}

// Debounce mirrors gesture.DebounceConfig.
type Debounce struct {
	Persistence      int      `json:"persistence" validate:"min=1"`
	FlickerTolerance int      `json:"flicker_tolerance" validate:"min=0"`
	Cooldown         Duration `json:"cooldown" validate:"gte=0"`
}

// Recognition groups the engine thresholds.
type Recognition struct {
	HandLossTimeout Duration                 `json:"hand_loss_timeout" validate:"gt=0"`
	Classifier      gesture.ClassifierConfig `json:"classifier"`
	Tracker         Tracker                  `json:"tracker"`
	Combiner        gesture.CombinerConfig   `json:"combiner"`
	Debounce        Debounce                 `json:"debounce"`
}

// Actions configures dispatch and execution.
type Actions struct {
	DefaultCooldown Duration `json:"default_cooldown" validate:"gte=0"`
	Timeout         Duration `json:"timeout" validate:"gt=0"`
	MaxPerSecond    float64  `json:"max_per_second" validate:"gte=0"`
	Burst           int      `json:"burst" validate:"gte=0"`
	// DryRun logs actions instead of performing them.
	DryRun    bool   `json:"dry_run"`
	PluginDir string `json:"plugin_dir"`
}

// BindingSeed is a binding written in the configuration file. Seeds populate
// the binding store the first time it is opened.
type BindingSeed struct {
	Label      string            `json:"label" validate:"required"`
	ActionID   string            `json:"action_id" validate:"required"`
	Kind       string            `json:"kind" validate:"oneof=key pointer system shell script"`
	Name       string            `json:"name"`
	Plugin     string            `json:"plugin,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	CooldownMS *int              `json:"cooldown_ms,omitempty" validate:"omitempty,gte=0"`
	Disabled   bool              `json:"disabled,omitempty"`
}

// Redis configures the optional gesture event bus.
type Redis struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr" validate:"required_if=Enabled true"`
	Password string `json:"password"`
	DB       int    `json:"db" validate:"gte=0"`
	Channel  string `json:"channel" validate:"required_if=Enabled true"`
}

// Server configures the local HTTP API.
type Server struct {
	Addr      string  `json:"addr" validate:"required"`
	RateLimit float64 `json:"rate_limit" validate:"gt=0"`
	RateBurst int     `json:"rate_burst" validate:"min=1"`
}

// Config is the complete application configuration.
type Config struct {
	DataDir     string             `json:"data_dir" validate:"required"`
	LogLevel    string             `json:"log_level" validate:"oneof=trace debug info warn warning error"`
	Tray        bool               `json:"tray"`
	Server      Server             `json:"server"`
	Camera      Camera             `json:"camera"`
	Detector    Detector           `json:"detector"`
	Calibration calibration.Config `json:"calibration"`
	Recognition Recognition        `json:"recognition"`
	Actions     Actions            `json:"actions"`
	Bindings    []BindingSeed      `json:"bindings" validate:"dive"`
	Redis       Redis              `json:"redis"`
}

// DefaultDataDir returns ~/.mudra, or .mudra when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// Default returns the built-in configuration.
func Default() *Config {
	ec := engine.DefaultConfig()
	ac := action.DefaultConfig()
	dataDir := DefaultDataDir()

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		Server: Server{
			Addr:      "127.0.0.1:8080",
			RateLimit: 20,
			RateBurst: 40,
		},
		Camera: Camera{
			IdleFPS:         5,
			ActiveFPS:       15,
			MotionThreshold: 0.02,
		},
		Detector: Detector{
			MaxHands:        2,
			MinConfidence:   ec.MinConfidence,
			MinTrackingConf: 0.5,
		},
		Calibration: calibration.DefaultConfig(),
		Recognition: Recognition{
			HandLossTimeout: Duration(ec.HandLossTimeout),
			Classifier:      ec.Classifier,
			Tracker: Tracker{
				Capacity:          ec.Tracker.Capacity,
				SwipeDistance:     ec.Tracker.SwipeDistance,
				DepthDistance:     ec.Tracker.DepthDistance,
				DominanceRatio:    ec.Tracker.DominanceRatio,
				ReversalTolerance: ec.Tracker.ReversalTolerance,
				MaxWindow:         Duration(ec.Tracker.MaxWindow),
			},
			Combiner: ec.Combiner,
			Debounce: Debounce{
				Persistence:      ec.Debounce.Persistence,
				FlickerTolerance: ec.Debounce.FlickerTolerance,
				Cooldown:         Duration(ec.Debounce.Cooldown),
			},
		},
		Actions: Actions{
			DefaultCooldown: Duration(ac.DefaultCooldown),
			Timeout:         Duration(ac.Timeout),
			MaxPerSecond:    ac.MaxPerSecond,
			Burst:           ac.Burst,
			PluginDir:       filepath.Join(dataDir, "plugins"),
		},
		Bindings: DefaultBindings(),
		Redis: Redis{
			Addr:    "localhost:6379",
			Channel: "mudra:gestures",
		},
	}
}

// DefaultBindings returns the out-of-the-box gesture bindings.
func DefaultBindings() []BindingSeed {
	return []BindingSeed{
		{Label: string(gesture.OneFinger), ActionID: "play-pause-space", Kind: string(action.KindKey), Name: "keystroke", Params: map[string]string{"key": "space"}},
		{Label: string(gesture.OpenHand), ActionID: "switch-window", Kind: string(action.KindKey), Name: "shortcut", Params: map[string]string{"key": "alt+tab"}},
		{Label: string(gesture.Fist), ActionID: "left-click", Kind: string(action.KindPointer), Name: "click", Params: map[string]string{"button": "left"}},
		{Label: string(gesture.SwipeLeft), ActionID: "previous", Kind: string(action.KindKey), Name: "keystroke", Params: map[string]string{"key": "left"}},
		{Label: string(gesture.SwipeRight), ActionID: "next", Kind: string(action.KindKey), Name: "keystroke", Params: map[string]string{"key": "right"}},
		{Label: string(gesture.Heart), ActionID: "media-play-pause", Kind: string(action.KindSystem), Name: "media-play-pause"},
	}
}

// Load reads the configuration file at path over the defaults, applies
// MUDRA_* environment overrides and validates the result. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			// bindings in the file replace the defaults wholesale
			cfg.Bindings = nil
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			if cfg.Bindings == nil {
				cfg.Bindings = DefaultBindings()
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MUDRA_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MUDRA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MUDRA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MUDRA_PLUGIN_DIR"); v != "" {
		c.Actions.PluginDir = v
	}
	if v := os.Getenv("MUDRA_CAMERA"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MUDRA_CAMERA: %w", err)
		}
		c.Camera.DeviceID = id
	}
	if v := os.Getenv("MUDRA_DRY_RUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MUDRA_DRY_RUN: %w", err)
		}
		c.Actions.DryRun = b
	}
	if v := os.Getenv("MUDRA_REDIS_ADDR"); v != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = v
	}
	if v := os.Getenv("MUDRA_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	return nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, b := range c.Bindings {
		if l, ok := gesture.ParseLabel(b.Label); !ok || !l.Bindable() {
			return fmt.Errorf("invalid config: binding %s: label %q cannot be bound", b.ActionID, b.Label)
		}
	}
	return nil
}

// Engine returns the recognition configuration.
func (c *Config) Engine() engine.Config {
	r := c.Recognition
	return engine.Config{
		MinConfidence:   c.Detector.MinConfidence,
		HandLossTimeout: r.HandLossTimeout.Std(),
		Classifier:      r.Classifier,
		Tracker: gesture.TrackerConfig{
			Capacity:          r.Tracker.Capacity,
			SwipeDistance:     r.Tracker.SwipeDistance,
			DepthDistance:     r.Tracker.DepthDistance,
			DominanceRatio:    r.Tracker.DominanceRatio,
			ReversalTolerance: r.Tracker.ReversalTolerance,
			MaxWindow:         r.Tracker.MaxWindow.Std(),
		},
		Combiner: r.Combiner,
		Debounce: gesture.DebounceConfig{
			Persistence:      r.Debounce.Persistence,
			FlickerTolerance: r.Debounce.FlickerTolerance,
			Cooldown:         r.Debounce.Cooldown.Std(),
		},
	}
}

// Action returns the dispatch configuration.
func (c *Config) Action() action.Config {
	return action.Config{
		DefaultCooldown: c.Actions.DefaultCooldown.Std(),
		Timeout:         c.Actions.Timeout.Std(),
		MaxPerSecond:    c.Actions.MaxPerSecond,
		Burst:           c.Actions.Burst,
	}
}

// Seeds converts the configured bindings into action bindings.
func (c *Config) Seeds() []action.Binding {
	out := make([]action.Binding, 0, len(c.Bindings))
	for _, b := range c.Bindings {
		out = append(out, b.Binding())
	}
	return out
}

// Binding converts a seed into an action binding.
func (b BindingSeed) Binding() action.Binding {
	d := action.Descriptor{
		ID:      b.ActionID,
		Kind:    action.Kind(b.Kind),
		Name:    b.Name,
		Plugin:  b.Plugin,
		Params:  b.Params,
		Enabled: !b.Disabled,
	}
	if b.CooldownMS != nil {
		cd := time.Duration(*b.CooldownMS) * time.Millisecond
		d.Cooldown = &cd
	}
	return action.Binding{Label: gesture.Label(b.Label), Action: d}
}

// DatabasePath returns the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

// LogDir returns the log directory inside the data directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}
