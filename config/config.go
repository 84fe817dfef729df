// Package config loads the settings for a calibration session from a YAML file with HANDEYE_*
// environment overrides, and converts them into each component's configuration.
package config

import (
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/kelvinchow23/robot-system-tools/calibration"
	"github.com/kelvinchow23/robot-system-tools/calibration/collector"
	"github.com/kelvinchow23/robot-system-tools/calibration/handeye"
	"github.com/kelvinchow23/robot-system-tools/calibration/posesampler"
	"github.com/kelvinchow23/robot-system-tools/calibration/transformer"
	"github.com/kelvinchow23/robot-system-tools/logging"
	"github.com/kelvinchow23/robot-system-tools/utils"
)

// EnvPrefix is prepended to environment overrides, so sampler.count is read from HANDEYE_SAMPLER_COUNT.
const EnvPrefix = "HANDEYE"

// Config holds every setting for one calibration session.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Sampler     SamplerConfig     `mapstructure:"sampler"`
	Collector   CollectorConfig   `mapstructure:"collector"`
	Solver      SolverConfig      `mapstructure:"solver"`
	Transformer TransformerConfig `mapstructure:"transformer"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SamplerConfig describes the pose sampling region. Lengths are in metres and angles in degrees.
type SamplerConfig struct {
	Target     []float64 `mapstructure:"target"`
	Up         []float64 `mapstructure:"up"`
	Radius     float64   `mapstructure:"radius"`
	MaxTiltDeg float64   `mapstructure:"max_tilt_deg"`
	MaxRollDeg float64   `mapstructure:"max_roll_deg"`
	JitterDeg  float64   `mapstructure:"jitter_deg"`
	Seed       uint64    `mapstructure:"seed"`
	Count      int       `mapstructure:"count"`
}

// CollectorConfig controls the motion and detection loop.
type CollectorConfig struct {
	QualityThreshold float64       `mapstructure:"quality_threshold"`
	TargetSamples    int           `mapstructure:"target_samples"`
	MotionSettle     time.Duration `mapstructure:"motion_settle"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	RetryMultiplier  float64       `mapstructure:"retry_multiplier"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	RawDataPath      string        `mapstructure:"raw_data_path"`
}

// SolverConfig selects the hand-eye method and its quality limits.
type SolverConfig struct {
	Method             string  `mapstructure:"method"`
	MaxConditionNumber float64 `mapstructure:"max_condition_number"`
	MaxRotationRMSDeg  float64 `mapstructure:"max_rotation_rms_deg"`
	MaxTranslationRMS  float64 `mapstructure:"max_translation_rms"`
	OutputPath         string  `mapstructure:"output_path"`
}

// TransformerConfig controls how a saved calibration is applied at runtime.
type TransformerConfig struct {
	CalibrationPath string        `mapstructure:"calibration_path"`
	Strict          bool          `mapstructure:"strict"`
	MaxAge          time.Duration `mapstructure:"max_age"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("sampler.target", []float64{0.5, 0, 0})
	v.SetDefault("sampler.up", []float64{0, 0, 1})
	v.SetDefault("sampler.radius", 0.3)
	v.SetDefault("sampler.max_tilt_deg", 35.0)
	v.SetDefault("sampler.max_roll_deg", 30.0)
	v.SetDefault("sampler.jitter_deg", 3.0)
	v.SetDefault("sampler.seed", 1)
	v.SetDefault("sampler.count", 15)

	retry := collector.DefaultRetryPolicy()
	v.SetDefault("collector.quality_threshold", 0.5)
	v.SetDefault("collector.target_samples", 0)
	v.SetDefault("collector.motion_settle", "1s")
	v.SetDefault("collector.retry_attempts", retry.MaxAttempts)
	v.SetDefault("collector.retry_delay", retry.SettleDelay.String())
	v.SetDefault("collector.retry_multiplier", retry.Multiplier)
	v.SetDefault("collector.retry_max_delay", retry.MaxDelay.String())
	v.SetDefault("collector.raw_data_path", "")

	solver := handeye.DefaultConfig()
	v.SetDefault("solver.method", solver.Method)
	v.SetDefault("solver.max_condition_number", solver.MaxConditionNumber)
	v.SetDefault("solver.max_rotation_rms_deg", solver.Thresholds.RotationRMSDeg)
	v.SetDefault("solver.max_translation_rms", solver.Thresholds.TranslationRMS)
	v.SetDefault("solver.output_path", "handeye_calibration.yaml")

	v.SetDefault("transformer.calibration_path", "handeye_calibration.yaml")
	v.SetDefault("transformer.strict", false)
	v.SetDefault("transformer.max_age", "0s")
}

// Default returns the built in settings, ignoring the environment.
func Default() *Config {
	cfg, err := load("", false)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads path, if not empty, over the defaults and then applies environment overrides.
func Load(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, withEnv bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %q", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	if _, lerr := logging.LevelFromString(cfg.Log.Level); lerr != nil {
		err = multierr.Append(err, errors.Wrapf(lerr, "%s.log", path))
	}
	if _, serr := cfg.Sampler.Params(); serr != nil {
		err = multierr.Append(err, errors.Wrapf(serr, "%s.sampler", path))
	}
	collectorCfg := cfg.Collector.Config()
	err = multierr.Append(err, collectorCfg.Validate(path+".collector"))
	solverCfg := cfg.Solver.Config()
	err = multierr.Append(err, solverCfg.Validate(path+".solver"))
	if cfg.Transformer.MaxAge < 0 {
		err = multierr.Append(err, errors.Errorf("%s.transformer: max age cannot be negative", path))
	}
	return err
}

// LogLevel returns the parsed log level.
func (cfg *Config) LogLevel() logging.Level {
	level, err := logging.LevelFromString(cfg.Log.Level)
	if err != nil {
		return logging.INFO
	}
	return level
}

// NewLogger returns a stdout logger at the configured level.
func (cfg *Config) NewLogger(name string) logging.Logger {
	logger := logging.NewLogger(name)
	logger.SetLevel(cfg.LogLevel())
	return logger
}

func toVector(name string, values []float64) (r3.Vector, error) {
	if len(values) != 3 {
		return r3.Vector{}, errors.Errorf("%s must have 3 components, got %d", name, len(values))
	}
	return r3.Vector{X: values[0], Y: values[1], Z: values[2]}, nil
}

// Params converts the sampler settings to posesampler params.
func (sc *SamplerConfig) Params() (posesampler.Params, error) {
	target, err := toVector("target", sc.Target)
	if err != nil {
		return posesampler.Params{}, err
	}
	up, err := toVector("up", sc.Up)
	if err != nil {
		return posesampler.Params{}, err
	}
	params := posesampler.Params{
		Target:  target,
		Radius:  sc.Radius,
		Up:      up,
		MaxTilt: utils.DegToRad(sc.MaxTiltDeg),
		MaxRoll: utils.DegToRad(sc.MaxRollDeg),
		Jitter:  utils.DegToRad(sc.JitterDeg),
		Seed:    sc.Seed,
		Count:   sc.Count,
	}
	return params, params.Validate()
}

// Config converts the collector settings.
func (cc *CollectorConfig) Config() collector.Config {
	return collector.Config{
		QualityThreshold: cc.QualityThreshold,
		TargetSamples:    cc.TargetSamples,
		MotionSettle:     cc.MotionSettle,
		Retry: collector.RetryPolicy{
			MaxAttempts: cc.RetryAttempts,
			SettleDelay: cc.RetryDelay,
			Multiplier:  cc.RetryMultiplier,
			MaxDelay:    cc.RetryMaxDelay,
		},
		RawDataPath: cc.RawDataPath,
	}
}

// Config converts the solver settings.
func (sc *SolverConfig) Config() handeye.Config {
	return handeye.Config{
		Method:             sc.Method,
		MaxConditionNumber: sc.MaxConditionNumber,
		Thresholds: handeye.Thresholds{
			RotationRMSDeg: sc.MaxRotationRMSDeg,
			TranslationRMS: sc.MaxTranslationRMS,
		},
	}
}

// SaveResult writes a solved calibration to OutputPath.
func (sc *SolverConfig) SaveResult(result *calibration.Result) error {
	if sc.OutputPath == "" {
		return errors.New("solver output path is not set")
	}
	return calibration.SaveResult(sc.OutputPath, result)
}

// Options converts the transformer settings.
func (tc *TransformerConfig) Options(clk clock.Clock, logger logging.Logger) []transformer.Option {
	opts := []transformer.Option{transformer.WithMaxAge(tc.MaxAge), transformer.WithLogger(logger)}
	if clk != nil {
		opts = append(opts, transformer.WithClock(clk))
	}
	if tc.Strict {
		opts = append(opts, transformer.WithStrict())
	}
	return opts
}

// Load reads the calibration at CalibrationPath into a Transformer.
func (tc *TransformerConfig) Load(clk clock.Clock, logger logging.Logger) (*transformer.Transformer, error) {
	if tc.CalibrationPath == "" {
		return nil, errors.New("transformer calibration path is not set")
	}
	return transformer.Load(tc.CalibrationPath, tc.Options(clk, logger)...)
}
