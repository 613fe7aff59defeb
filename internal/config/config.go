package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Configuration errors. Callers use errors.Is to tell a bootstrap failure
// (missing credentials) from a malformed file.
var (
	ErrMissingBroker  = errors.New("config: mqtt broker host is required")
	ErrInvalidSetting = errors.New("config: invalid setting")
)

// DeviceConfig identifies the appliance on the message bus.
type DeviceConfig struct {
	Name string `yaml:"name"`
}

// MQTTConfig - broker connection and publish pacing.
type MQTTConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	TLS          bool          `yaml:"tls"`
	ClientID     string        `yaml:"client_id"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	QoS          int           `yaml:"qos"`
	KeepAlive    time.Duration `yaml:"keep_alive"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxReconnect time.Duration `yaml:"max_reconnect_interval"`
	PublishRate  float64       `yaml:"publish_rate"`
	PublishBurst int           `yaml:"publish_burst"`
}

// PinConfig - one GPIO output line.
type PinConfig struct {
	Offset    int  `yaml:"offset"`
	ActiveLow bool `yaml:"active_low"`
}

// GPIOConfig - relay and LED lines. The wiring is active-low on the
// reference board.
type GPIOConfig struct {
	Chip      string    `yaml:"chip"`
	RelayMain PinConfig `yaml:"relay_main"`
	RelayDC   PinConfig `yaml:"relay_dc"`
	LED       PinConfig `yaml:"led"`
}

// TimingConfig - fixed at boot, never changed while running.
type TimingConfig struct {
	Settle      time.Duration `yaml:"settle"`
	BlinkBase   time.Duration `yaml:"blink_base"`
	ReportEvery uint32        `yaml:"report_every"`
}

// LinkConfig - which interface counts as the uplink.
type LinkConfig struct {
	Interface    string        `yaml:"interface"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// FirmwareConfig - running image and hand-over to the updater.
type FirmwareConfig struct {
	Image         string   `yaml:"image"` // app or fota
	FlagFile      string   `yaml:"flag_file"`
	RebootCommand []string `yaml:"reboot_command"`
}

// VDDConfig - supply voltage source. The file holds an integer that is
// divided by Divisor to get millivolts.
type VDDConfig struct {
	Path    string `yaml:"path"`
	Divisor int    `yaml:"divisor"`
}

// ServerConfig - local read-only status server.
type ServerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ScheduleEntry - a cron spec and the relay command it sends.
type ScheduleEntry struct {
	Spec    string `yaml:"spec"`
	Command string `yaml:"command"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Config - root structure.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Timing    TimingConfig    `yaml:"timing"`
	Link      LinkConfig      `yaml:"link"`
	Firmware  FirmwareConfig  `yaml:"firmware"`
	VDD       VDDConfig       `yaml:"vdd"`
	Server    ServerConfig    `yaml:"server"`
	Schedules []ScheduleEntry `yaml:"schedules"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Environment overrides, applied after the file is read.
const (
	EnvMQTTHost     = "AMPSUPPLY_MQTT_HOST"
	EnvMQTTPassword = "AMPSUPPLY_MQTT_PASSWORD"
)

// Default returns a configuration with every default applied. It is what the
// agent falls back to when it cannot read its own configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads the YAML file, applies environment overrides and defaults, and
// validates the result. A missing file is not an error by itself, but the
// broker host must then come from the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode yaml '%s': %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg.applyEnv()
	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvMQTTHost); v != "" {
		c.MQTT.Host = v
	}
	if v := os.Getenv(EnvMQTTPassword); v != "" {
		c.MQTT.Password = v
	}
}

func (c *Config) sanitize() {
	c.Device.Name = strings.TrimSpace(c.Device.Name)
	c.MQTT.Host = strings.TrimSpace(c.MQTT.Host)
	c.MQTT.ClientID = strings.TrimSpace(c.MQTT.ClientID)
	c.Firmware.Image = strings.ToLower(strings.TrimSpace(c.Firmware.Image))
	c.Link.Interface = strings.TrimSpace(c.Link.Interface)
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	for i := range c.Schedules {
		c.Schedules[i].Spec = strings.TrimSpace(c.Schedules[i].Spec)
		c.Schedules[i].Command = strings.ToLower(strings.TrimSpace(c.Schedules[i].Command))
	}
}

func (c *Config) setDefaults() {
	if c.Device.Name == "" {
		c.Device.Name = "amp:supply"
	}

	// MQTT
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "ampsupply-" + uuid.NewString()[:8]
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = 10 * time.Second
	}
	if c.MQTT.RetryDelay == 0 {
		c.MQTT.RetryDelay = 5 * time.Second
	}
	if c.MQTT.MaxReconnect == 0 {
		c.MQTT.MaxReconnect = time.Minute
	}
	if c.MQTT.PublishRate <= 0 {
		c.MQTT.PublishRate = 20
	}
	if c.MQTT.PublishBurst <= 0 {
		c.MQTT.PublishBurst = 10
	}

	// GPIO: relay main on line 2, DC ground on line 0, LED on line 3, all
	// active-low. Pins are defaulted as a set when none is configured.
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = "gpiochip0"
	}
	if c.GPIO.RelayMain == (PinConfig{}) && c.GPIO.RelayDC == (PinConfig{}) && c.GPIO.LED == (PinConfig{}) {
		c.GPIO.RelayMain = PinConfig{Offset: 2, ActiveLow: true}
		c.GPIO.RelayDC = PinConfig{Offset: 0, ActiveLow: true}
		c.GPIO.LED = PinConfig{Offset: 3, ActiveLow: true}
	}

	// Timing
	if c.Timing.Settle == 0 {
		c.Timing.Settle = 600 * time.Millisecond
	}
	if c.Timing.BlinkBase == 0 {
		c.Timing.BlinkBase = 200 * time.Millisecond
	}
	if c.Timing.ReportEvery == 0 {
		c.Timing.ReportEvery = 20
	}

	// Link
	if c.Link.Interface == "" {
		c.Link.Interface = "wlan0"
	}
	if c.Link.PollInterval == 0 {
		c.Link.PollInterval = 2 * time.Second
	}

	// Firmware
	if c.Firmware.Image == "" {
		c.Firmware.Image = "app"
	}
	if c.Firmware.FlagFile == "" {
		c.Firmware.FlagFile = "/var/lib/ampsupply/boot-to-updater"
	}
	if len(c.Firmware.RebootCommand) == 0 {
		c.Firmware.RebootCommand = []string{"systemctl", "reboot"}
	}

	// VDD: power_supply sysfs reports microvolts.
	if c.VDD.Divisor <= 0 {
		c.VDD.Divisor = 1000
	}

	// Server
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}

	// Logging
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

func (c *Config) validate() error {
	if c.MQTT.Host == "" {
		return ErrMissingBroker
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2, got %d", ErrInvalidSetting, c.MQTT.QoS)
	}
	if c.Firmware.Image != "app" && c.Firmware.Image != "fota" {
		return fmt.Errorf("%w: firmware.image must be app or fota, got %q", ErrInvalidSetting, c.Firmware.Image)
	}
	g := c.GPIO
	if g.RelayMain.Offset == g.RelayDC.Offset || g.RelayMain.Offset == g.LED.Offset || g.RelayDC.Offset == g.LED.Offset {
		return fmt.Errorf("%w: gpio lines must use distinct offsets (relay_main %d, relay_dc %d, led %d)",
			ErrInvalidSetting, g.RelayMain.Offset, g.RelayDC.Offset, g.LED.Offset)
	}
	if c.Timing.Settle < 0 || c.Timing.BlinkBase < 0 {
		return fmt.Errorf("%w: timing durations must be positive", ErrInvalidSetting)
	}
	for _, s := range c.Schedules {
		switch s.Command {
		case "on", "off", "toggle":
		default:
			return fmt.Errorf("%w: schedule %q has unknown command %q", ErrInvalidSetting, s.Spec, s.Command)
		}
	}
	return nil
}

// BrokerURL returns the paho broker address for the configured host.
func (m MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if m.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.Host, m.Port)
}
