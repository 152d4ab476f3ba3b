package modern

import (
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/CK6170/Manocal-go/models"
	serialpkg "github.com/CK6170/Manocal-go/serial"
)

const (
	DefaultPort         = "/dev/ttyUSB0"
	DefaultBaudRate     = 115200
	DefaultReadTimeout  = 500 * time.Millisecond
	DefaultRetries      = 5
	DefaultRetryDelay   = 2 * time.Second
	DefaultOutputDir    = "/data"
	DefaultFilePrefix   = "calibration_data_"
	DefaultSteps        = 10
	DefaultMeasurements = 5
	DefaultInterval     = 20 * time.Second

	EnvPrefix = "MANOCAL"
)

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", DefaultPort)
	v.SetDefault("serial.baudrate", DefaultBaudRate)
	v.SetDefault("serial.readtimeout", DefaultReadTimeout)
	v.SetDefault("serial.retries", DefaultRetries)
	v.SetDefault("serial.retrydelay", DefaultRetryDelay)
	v.SetDefault("serial.flush", false)
	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("output.prefix", DefaultFilePrefix)
	v.SetDefault("session.steps", DefaultSteps)
	v.SetDefault("session.measurements", DefaultMeasurements)
	v.SetDefault("session.interval", DefaultInterval)
	v.SetDefault("monitor.addr", "")
	v.SetDefault("debug", false)
}

// LoadParameters reads the configuration from defaults, the optional file at
// path, MANOCAL_* environment variables and any flags bound to the given keys.
func LoadParameters(path string, flags map[string]*pflag.Flag) (*models.PARAMETERS, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, f := range flags {
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to bind flag %s", f.Name)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to read config %s", path)
		}
	}

	var p models.PARAMETERS
	if err := v.Unmarshal(&p); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the loaded parameters for values the session cannot run with.
func Validate(p *models.PARAMETERS) error {
	if p.SERIAL == nil {
		return fmt.Errorf("missing SERIAL section")
	}
	if p.OUTPUT == nil {
		return fmt.Errorf("missing OUTPUT section")
	}
	if p.SESSION == nil {
		return fmt.Errorf("missing SESSION section")
	}
	if p.MONITOR == nil {
		p.MONITOR = &models.MONITOR{}
	}
	if p.SERIAL.BAUDRATE <= 0 {
		return fmt.Errorf("SERIAL.BAUDRATE must be > 0")
	}
	if p.SERIAL.RETRIES <= 0 {
		return fmt.Errorf("SERIAL.RETRIES must be > 0")
	}
	if p.SERIAL.RETRYDELAY < 0 || p.SESSION.INTERVAL < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if p.SESSION.STEPS <= 0 {
		return fmt.Errorf("SESSION.STEPS must be > 0")
	}
	if p.SESSION.MEASUREMENTS <= 0 {
		return fmt.Errorf("SESSION.MEASUREMENTS must be > 0")
	}
	if strings.TrimSpace(p.OUTPUT.DIR) == "" {
		return fmt.Errorf("OUTPUT.DIR must not be empty")
	}
	return nil
}

// EnsureSerialPort auto-detects the serial port when none is configured.
func EnsureSerialPort(p *models.PARAMETERS) (changed bool, err error) {
	if p == nil || p.SERIAL == nil {
		return false, fmt.Errorf("missing SERIAL section")
	}
	if strings.TrimSpace(p.SERIAL.PORT) != "" {
		return false, nil
	}
	port := serialpkg.AutoDetectPort(p.SERIAL)
	if port == "" {
		return false, fmt.Errorf("could not auto-detect serial port")
	}
	p.SERIAL.PORT = port
	return true, nil
}

// SessionSettings extracts the controller settings from the loaded parameters.
func SessionSettings(p *models.PARAMETERS) Settings {
	return Settings{
		Retries:             p.SERIAL.RETRIES,
		RetryDelay:          p.SERIAL.RETRYDELAY,
		MaxSteps:            p.SESSION.STEPS,
		MeasurementsPerStep: p.SESSION.MEASUREMENTS,
		Interval:            p.SESSION.INTERVAL,
		FlushBeforeSample:   p.SERIAL.FLUSH,
	}
}
