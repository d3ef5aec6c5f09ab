// Package config loads autosearch settings from defaults, a YAML file, a .env
// file and AUTOSEARCH_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Nehilsa2/autosearch/browse"
	"github.com/Nehilsa2/autosearch/browser"
	"github.com/Nehilsa2/autosearch/cycle"
	"github.com/Nehilsa2/autosearch/humanize"
	"github.com/Nehilsa2/autosearch/logging"
	"github.com/Nehilsa2/autosearch/persistence"
	"github.com/Nehilsa2/autosearch/words"
)

const (
	AppName   = "autosearch"
	EnvPrefix = "AUTOSEARCH"
)

// Config is the full set of recognized options
type Config struct {
	SearchEngineURL    string        `mapstructure:"searchEngineURL"`
	WordSourceEndpoint string        `mapstructure:"wordSourceEndpoint"`
	WordFetchTimeout   time.Duration `mapstructure:"wordFetchTimeout"`
	WordBatchSize      int           `mapstructure:"wordBatchSize"`

	Typing humanize.TypingConfig `mapstructure:",squash"`
	Browse browse.Config         `mapstructure:",squash"`

	WakeDelayRange          humanize.Range `mapstructure:"wakeDelayRange"`
	ResultsSettleDelayRange humanize.Range `mapstructure:"resultsSettleDelayRange"`
	PreSubmitDelayRange     humanize.Range `mapstructure:"preSubmitDelayRange"`
	NextSearchDelayRange    humanize.Range `mapstructure:"nextSearchDelayRange"`
	LongBreakDelayRange     humanize.Range `mapstructure:"longBreakDelayRange"`
	DwellTimeRange          humanize.Range `mapstructure:"dwellTimeRange"`
	LongBreakProbability    float64        `mapstructure:"longBreakProbability"`
	PostSearchEnabled       bool           `mapstructure:"postSearchEnabled"`
	DailySearchLimit        int            `mapstructure:"dailySearchLimit"`

	// RetryDelay is how long the runner waits before reloading after a wake-up that did nothing
	RetryDelay time.Duration `mapstructure:"retryDelay"`

	Storage StorageConfig   `mapstructure:"storage"`
	Browser browser.Options `mapstructure:"browser"`
	Logger  logging.Config  `mapstructure:"logger"`
}

type StorageConfig struct {
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// DefaultStoragePath is the database location under the XDG data directory
func DefaultStoragePath() string {
	return filepath.Join(xdg.DataHome, AppName, persistence.DefaultDBName)
}

// SetDefaults registers a default for every option
func SetDefaults(v *viper.Viper) {
	timing := cycle.DefaultConfig()

	v.SetDefault("searchEngineURL", timing.HomeURL)
	v.SetDefault("wordSourceEndpoint", words.DefaultEndpoint)
	v.SetDefault("wordFetchTimeout", words.DefaultTimeout)
	v.SetDefault("wordBatchSize", timing.WordBatchSize)

	// -- Typing --
	typing := humanize.DefaultTypingConfig()
	setRange(v, "keystrokeDelayRange", typing.KeystrokeDelay)
	setRange(v, "thinkPauseRange", typing.ThinkPause)
	v.SetDefault("thinkPauseProbability", typing.ThinkPauseProbability)

	// -- Cycle timing --
	setRange(v, "wakeDelayRange", timing.WakeDelay)
	setRange(v, "resultsSettleDelayRange", timing.ResultsSettleDelay)
	setRange(v, "preSubmitDelayRange", timing.PreSubmitDelay)
	setRange(v, "nextSearchDelayRange", timing.NextSearchDelay)
	setRange(v, "longBreakDelayRange", timing.LongBreakDelay)
	setRange(v, "dwellTimeRange", timing.DwellTime)
	v.SetDefault("longBreakProbability", timing.LongBreakProbability)
	v.SetDefault("postSearchEnabled", timing.PostSearchEnabled)
	v.SetDefault("dailySearchLimit", timing.DailySearchLimit)
	v.SetDefault("retryDelay", 2*time.Minute)

	// -- Results page behavior --
	b := browse.DefaultConfig()
	setIntRange(v, "scrollStepsRange", b.ScrollSteps)
	setIntRange(v, "scrollDistanceRange", b.ScrollDistance)
	setRange(v, "scrollSettleRange", b.ScrollSettle)
	v.SetDefault("scrollBackProbability", b.ScrollBackProbability)
	setIntRange(v, "scrollBackDistanceRange", b.ScrollBackDistance)
	setRange(v, "scrollBackSettleRange", b.ScrollBackSettle)
	v.SetDefault("bottomVisitProbability", b.BottomVisitProbability)
	setRange(v, "bottomDwellRange", b.BottomDwell)
	setRange(v, "topSettleRange", b.TopSettle)
	v.SetDefault("resultClickProbability", b.ResultClickProbability)

	// -- Storage --
	v.SetDefault("storage.path", DefaultStoragePath())
	v.SetDefault("storage.namespace", persistence.DefaultNamespace)

	// -- Browser --
	opts := browser.DefaultOptions()
	v.SetDefault("browser.controlURL", "")
	v.SetDefault("browser.headless", opts.Headless)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.userDataDir", filepath.Join(xdg.DataHome, AppName, "profile"))
	v.SetDefault("browser.searchInputSelector", opts.SearchInputSelector)
	v.SetDefault("browser.resultLinkSelector", opts.ResultLinkSelector)
	v.SetDefault("browser.navigationTimeout", opts.NavigationTimeout)

	// -- Logger --
	lc := logging.DefaultConfig()
	v.SetDefault("logger.level", lc.Level)
	v.SetDefault("logger.format", lc.Format)
	v.SetDefault("logger.file", lc.LogFile)
	v.SetDefault("logger.maxSize", lc.MaxSize)
	v.SetDefault("logger.maxBackups", lc.MaxBackups)
	v.SetDefault("logger.maxAge", lc.MaxAge)
	v.SetDefault("logger.compress", lc.Compress)
	v.SetDefault("logger.addSource", lc.AddSource)
}

func setRange(v *viper.Viper, key string, r humanize.Range) {
	v.SetDefault(key+".min", r.Min)
	v.SetDefault(key+".max", r.Max)
}

func setIntRange(v *viper.Viper, key string, r humanize.IntRange) {
	v.SetDefault(key+".min", r.Min)
	v.SetDefault(key+".max", r.Max)
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := FromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Load reads envFile (".env" when empty, optional in that case), then
// configFile (autosearch.yaml in the working or XDG config directory when
// empty), then the environment.
func Load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return FromViper(v)
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// FromViper decodes and validates the options held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports an option whose value cannot work
func (c *Config) Validate() error {
	if err := validateSearchEngineURL(c.SearchEngineURL); err != nil {
		return err
	}
	if err := validateHTTPURL("wordSourceEndpoint", c.WordSourceEndpoint); err != nil {
		return err
	}
	if c.WordBatchSize <= 0 {
		return fmt.Errorf("%w: wordBatchSize %d", ErrInvalidBatchSize, c.WordBatchSize)
	}
	if c.DailySearchLimit < 0 {
		return fmt.Errorf("%w: dailySearchLimit %d", ErrInvalidLimit, c.DailySearchLimit)
	}

	for name, d := range map[string]time.Duration{
		"wordFetchTimeout":          c.WordFetchTimeout,
		"retryDelay":                c.RetryDelay,
		"browser.navigationTimeout": c.Browser.NavigationTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s %s", ErrInvalidTimeout, name, d)
		}
	}

	for name, r := range map[string]humanize.Range{
		"keystrokeDelayRange":     c.Typing.KeystrokeDelay,
		"thinkPauseRange":         c.Typing.ThinkPause,
		"wakeDelayRange":          c.WakeDelayRange,
		"resultsSettleDelayRange": c.ResultsSettleDelayRange,
		"preSubmitDelayRange":     c.PreSubmitDelayRange,
		"nextSearchDelayRange":    c.NextSearchDelayRange,
		"longBreakDelayRange":     c.LongBreakDelayRange,
		"dwellTimeRange":          c.DwellTimeRange,
		"scrollSettleRange":       c.Browse.ScrollSettle,
		"scrollBackSettleRange":   c.Browse.ScrollBackSettle,
		"bottomDwellRange":        c.Browse.BottomDwell,
		"topSettleRange":          c.Browse.TopSettle,
	} {
		if !r.Valid() {
			return fmt.Errorf("%w: %s %s", ErrInvalidRange, name, r)
		}
	}

	for name, r := range map[string]humanize.IntRange{
		"scrollStepsRange":        c.Browse.ScrollSteps,
		"scrollDistanceRange":     c.Browse.ScrollDistance,
		"scrollBackDistanceRange": c.Browse.ScrollBackDistance,
	} {
		if !r.Valid() {
			return fmt.Errorf("%w: %s [%d, %d]", ErrInvalidRange, name, r.Min, r.Max)
		}
	}

	for name, p := range map[string]float64{
		"thinkPauseProbability":  c.Typing.ThinkPauseProbability,
		"longBreakProbability":   c.LongBreakProbability,
		"scrollBackProbability":  c.Browse.ScrollBackProbability,
		"bottomVisitProbability": c.Browse.BottomVisitProbability,
		"resultClickProbability": c.Browse.ResultClickProbability,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s %v", ErrInvalidProbability, name, p)
		}
	}

	for name, s := range map[string]string{
		"storage.path":                c.Storage.Path,
		"browser.searchInputSelector": c.Browser.SearchInputSelector,
		"browser.resultLinkSelector":  c.Browser.ResultLinkSelector,
	} {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s", ErrMissingValue, name)
		}
	}
	return nil
}

// validateSearchEngineURL requires the root page of an http(s) host, which is
// where the search box lives
func validateSearchEngineURL(raw string) error {
	if err := validateHTTPURL("searchEngineURL", raw); err != nil {
		return err
	}
	u, _ := url.Parse(raw)
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return fmt.Errorf("%w: searchEngineURL %q must be a root URL without a query", ErrInvalidURL, raw)
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s %q", ErrInvalidURL, name, raw)
	}
	return nil
}

// CycleConfig is the controller's share of the options
func (c *Config) CycleConfig() cycle.Config {
	return cycle.Config{
		HomeURL:              c.SearchEngineURL,
		WordBatchSize:        c.WordBatchSize,
		WakeDelay:            c.WakeDelayRange,
		ResultsSettleDelay:   c.ResultsSettleDelayRange,
		PreSubmitDelay:       c.PreSubmitDelayRange,
		NextSearchDelay:      c.NextSearchDelayRange,
		LongBreakDelay:       c.LongBreakDelayRange,
		DwellTime:            c.DwellTimeRange,
		LongBreakProbability: c.LongBreakProbability,
		PostSearchEnabled:    c.PostSearchEnabled,
		DailySearchLimit:     c.DailySearchLimit,
	}
}
