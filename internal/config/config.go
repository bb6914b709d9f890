package config

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type SourceType string

const (
	SourceLocal  SourceType = "Local"
	SourceWebcam SourceType = "Web-Camera"

	DefaultConfigPath      string = "config.json"
	DefaultDetectorAddress string = "localhost:8080"
	DefaultMaxResults      int    = 10
)

var SourcesList = [...]string{
	string(SourceLocal),
	string(SourceWebcam),
}

type LocalConfig struct {
	Path string `json:"path"`
}

type WebcamConfig struct {
	DeviceID string `json:"device_id"`
}

// DetectorConfig selects and tunes the detection backend.
type DetectorConfig struct {
	Backend    string `json:"backend"`
	Address    string `json:"address"`
	MaxResults int    `json:"max_results"`
	// Timeout bounds one detector call, e.g. "2s".
	Timeout       Duration `json:"timeout"`
	UploadMaxSide int      `json:"upload_max_side"`
	ModelPath     string   `json:"model_path"`
}

type WebConfig struct {
	Addr string `json:"addr"`
}

type Config struct {
	mu sync.RWMutex

	// path is the file the config was read from. stored holds that file's
	// contents and loaded the effective values right after overrides.
	path   string
	stored *Config
	loaded *Config

	ActiveSource SourceType `json:"active_source"`
	TargetFPS    uint       `json:"target_fps"`
	ScaledWidth  int        `json:"scaled_width"`
	ScaledHeight int        `json:"scaled_height"`
	LogLevel     string     `json:"log_level"`

	Local    LocalConfig    `json:"local"`
	Webcam   WebcamConfig   `json:"webcam"`
	Detector DetectorConfig `json:"detector"`
	Web      WebConfig      `json:"web"`
}

// Duration is a time.Duration that reads and writes as "1.5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.Wrap(err, "duration")
		}
		*d = Duration(time.Duration(n) * time.Millisecond)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrap(err, "duration")
	}
	*d = Duration(v)
	return nil
}

func (c *Config) GetFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TargetFPS
}

func (c *Config) SetFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TargetFPS = fps
}

func (c *Config) GetWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledWidth
}

func (c *Config) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledWidth = width
}

func (c *Config) GetHeight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledHeight
}

func (c *Config) SetHeight(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledHeight = height
}

func (c *Config) GetSource() SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ActiveSource
}

func (c *Config) SetSource(s SourceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveSource = s
}

func (c *Config) GetDeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Webcam.DeviceID
}

func (c *Config) SetDeviceID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Webcam.DeviceID = id
}

func (c *Config) GetLocalPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Local.Path
}

func (c *Config) SetLocalPath(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Local.Path = p
}

func (c *Config) GetMaxResults() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Detector.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return c.Detector.MaxResults
}

func (c *Config) SetMaxResults(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detector.MaxResults = n
}

// DetectorSettings returns a copy of the detector section.
func (c *Config) DetectorSettings() DetectorConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detector
}

// Snapshot returns an unlocked copy suitable for encoding or comparison.
func (c *Config) Snapshot() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Config{
		ActiveSource: c.ActiveSource,
		TargetFPS:    c.TargetFPS,
		ScaledWidth:  c.ScaledWidth,
		ScaledHeight: c.ScaledHeight,
		LogLevel:     c.LogLevel,
		Local:        c.Local,
		Webcam:       c.Webcam,
		Detector:     c.Detector,
		Web:          c.Web,
	}
}

func (c *Config) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "open config")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.Snapshot()); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return nil
}

// Persist writes the settings edited at runtime back to the file the config
// was loaded from. Every other field is written as it was read, so values
// that came from the environment or flags never reach the file.
func (c *Config) Persist() error {
	c.mu.RLock()
	path, stored, loaded := c.path, c.stored, c.loaded
	c.mu.RUnlock()

	if path == "" {
		path = DefaultConfigPath
	}
	cur := c.Snapshot()
	if stored == nil || loaded == nil {
		return cur.Save(path)
	}

	out := stored.Snapshot()
	keepEdited(&out.ActiveSource, loaded.ActiveSource, cur.ActiveSource)
	keepEdited(&out.TargetFPS, loaded.TargetFPS, cur.TargetFPS)
	keepEdited(&out.ScaledWidth, loaded.ScaledWidth, cur.ScaledWidth)
	keepEdited(&out.ScaledHeight, loaded.ScaledHeight, cur.ScaledHeight)
	keepEdited(&out.Local, loaded.Local, cur.Local)
	keepEdited(&out.Webcam, loaded.Webcam, cur.Webcam)
	keepEdited(&out.Detector.MaxResults, loaded.Detector.MaxResults, cur.Detector.MaxResults)
	return out.Save(path)
}

func keepEdited[T comparable](dst *T, loaded, current T) {
	if current != loaded {
		*dst = current
	}
}

// LoadConfigFile reads path over the defaults and applies environment
// overrides. A missing file is not an error.
func LoadConfigFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	f, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, errors.Wrap(err, "open config")
	default:
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return cfg, errors.Wrapf(err, "decode %s", path)
		}
	}

	cfg.path = path
	cfg.stored = cfg.Snapshot()
	cfg.ApplyEnv()
	cfg.loaded = cfg.Snapshot()
	return cfg, nil
}

// ApplyEnv overrides fields from LIVEVIEW_* environment variables.
func (c *Config) ApplyEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Detector.Backend = getEnv("LIVEVIEW_DETECTOR", c.Detector.Backend)
	c.Detector.Address = getEnv("LIVEVIEW_DETECTOR_ADDR", c.Detector.Address)
	c.Detector.ModelPath = getEnv("LIVEVIEW_MODEL_PATH", c.Detector.ModelPath)
	c.Web.Addr = getEnv("LIVEVIEW_WEB_ADDR", c.Web.Addr)
	c.LogLevel = getEnv("LIVEVIEW_LOG_LEVEL", c.LogLevel)
	c.Webcam.DeviceID = getEnv("LIVEVIEW_CAMERA", c.Webcam.DeviceID)

	if v := os.Getenv("LIVEVIEW_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Detector.MaxResults = n
		}
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func NewDefaultConfig() *Config {
	return &Config{
		ActiveSource: SourceWebcam,
		TargetFPS:    30,
		ScaledWidth:  640,
		ScaledHeight: 480,
		LogLevel:     "info",
		Webcam:       WebcamConfig{},
		Detector: DetectorConfig{
			Backend:       "websocket",
			Address:       DefaultDetectorAddress,
			MaxResults:    DefaultMaxResults,
			Timeout:       Duration(5 * time.Second),
			UploadMaxSide: 640,
			ModelPath:     "models/yolov8n.onnx",
		},
	}
}
