package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/landslide-cli/internal/feature"
	"github.com/sells-group/landslide-cli/internal/geo"
	"github.com/sells-group/landslide-cli/internal/model"
	"github.com/sells-group/landslide-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
	Catalog  CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Region   geo.BBox        `yaml:"region" mapstructure:"region"`
	Sampling SamplingConfig  `yaml:"sampling" mapstructure:"sampling"`
	Layers   []LayerConfig   `yaml:"layers" mapstructure:"layers"`
	Features []FeatureConfig `yaml:"features" mapstructure:"features"`
	Output   OutputConfig    `yaml:"output" mapstructure:"output"`
	Join     JoinConfig      `yaml:"join" mapstructure:"join"`
	Fetch    FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CatalogConfig points at the landslide inventory.
type CatalogConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	URL      string `yaml:"url" mapstructure:"url"`
	Country  string `yaml:"country" mapstructure:"country"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// SamplingConfig configures pseudo-absence sampling.
type SamplingConfig struct {
	MinDistance     float64 `yaml:"min_distance" mapstructure:"min_distance"`
	Target          int     `yaml:"target" mapstructure:"target"`
	Seed            uint64  `yaml:"seed" mapstructure:"seed"`
	BatchMultiplier int     `yaml:"batch_multiplier" mapstructure:"batch_multiplier"`
	MaxBatches      int     `yaml:"max_batches" mapstructure:"max_batches"`
	Oracle          string  `yaml:"oracle" mapstructure:"oracle"`
}

// Oracle implementations.
const (
	OracleIndexed = "indexed"
	OracleLinear  = "linear"
)

// LayerConfig names a raster file.
type LayerConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	Path string `yaml:"path" mapstructure:"path"`
	Band int    `yaml:"band" mapstructure:"band"`
}

// FeatureConfig binds a dataset column to a layer.
type FeatureConfig struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Layer     string `yaml:"layer" mapstructure:"layer"`
	Transform string `yaml:"transform" mapstructure:"transform"`
}

// OutputConfig configures the dataset files.
type OutputConfig struct {
	CSV       string `yaml:"csv" mapstructure:"csv"`
	Shapefile string `yaml:"shapefile" mapstructure:"shapefile"`
}

// JoinConfig configures the raster join.
type JoinConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// FetchConfig configures catalog downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerHost float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

func defaultLayers() []map[string]any {
	return []map[string]any{
		{"name": "dem", "path": "data/dem.tif", "band": 1},
		{"name": "slope", "path": "data/slope.tif", "band": 1},
		{"name": "aspect", "path": "data/aspect.tif", "band": 1},
		{"name": "profile_curvature", "path": "data/profile_curvature.tif", "band": 1},
		{"name": "plan_curvature", "path": "data/plan_curvature.tif", "band": 1},
		{"name": "flow_accumulation", "path": "data/flow_accumulation.tif", "band": 1},
	}
}

func defaultFeatures() []map[string]any {
	return []map[string]any{
		{"name": "elevation", "layer": "dem", "transform": "none"},
		{"name": "elevation_norm", "layer": "dem", "transform": "normalize_max"},
		{"name": "slope", "layer": "slope", "transform": "none"},
		{"name": "aspect", "layer": "aspect", "transform": "none"},
		{"name": "profile_curvature", "layer": "profile_curvature", "transform": "none"},
		{"name": "plan_curvature", "layer": "plan_curvature", "transform": "none"},
		{"name": "log_flow_accumulation", "layer": "flow_accumulation", "transform": "log10"},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LANDSLIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.database_url", "landslide.db")
	v.SetDefault("store.pool.max_conns", 4)
	v.SetDefault("store.pool.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("catalog.path", "data/global_landslide_catalog.csv")
	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.country", "Nepal")
	v.SetDefault("catalog.encoding", "")
	v.SetDefault("region.min_lng", geo.NepalBBox.MinLng)
	v.SetDefault("region.min_lat", geo.NepalBBox.MinLat)
	v.SetDefault("region.max_lng", geo.NepalBBox.MaxLng)
	v.SetDefault("region.max_lat", geo.NepalBBox.MaxLat)
	v.SetDefault("sampling.min_distance", 5000.0)
	v.SetDefault("sampling.target", 0)
	v.SetDefault("sampling.seed", 10)
	v.SetDefault("sampling.batch_multiplier", 10)
	v.SetDefault("sampling.max_batches", 20)
	v.SetDefault("sampling.oracle", OracleIndexed)
	v.SetDefault("layers", defaultLayers())
	v.SetDefault("features", defaultFeatures())
	v.SetDefault("output.csv", "out/landslide_dataset.csv")
	v.SetDefault("output.shapefile", "")
	v.SetDefault("join.concurrency", 8)
	v.SetDefault("fetch.user_agent", "landslide-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_host", 2.0)
	v.SetDefault("fetch.burst", 2)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a build depends on.
func (c *Config) Validate() error {
	if err := c.Region.Validate(); err != nil {
		return eris.Wrap(err, "config: region")
	}
	if !(c.Sampling.MinDistance > 0) {
		return eris.Errorf("config: sampling.min_distance must be positive, got %g", c.Sampling.MinDistance)
	}
	if c.Sampling.Target < 0 {
		return eris.Errorf("config: sampling.target must not be negative, got %d", c.Sampling.Target)
	}
	if c.Sampling.BatchMultiplier < 0 || c.Sampling.MaxBatches < 0 {
		return eris.New("config: sampling batch settings must not be negative")
	}
	switch c.Sampling.Oracle {
	case "", OracleIndexed, OracleLinear:
	default:
		return eris.Errorf("config: unknown sampling.oracle %q", c.Sampling.Oracle)
	}
	if c.Output.CSV == "" {
		return eris.New("config: output.csv is required")
	}
	if c.Join.Concurrency < 0 {
		return eris.Errorf("config: join.concurrency must not be negative, got %d", c.Join.Concurrency)
	}

	layers := make(map[string]bool, len(c.Layers))
	for _, l := range c.Layers {
		if l.Name == "" || l.Path == "" {
			return eris.Errorf("config: layer %q needs a name and a path", l.Name)
		}
		if layers[l.Name] {
			return eris.Errorf("config: duplicate layer %q", l.Name)
		}
		layers[l.Name] = true
	}

	if len(c.Features) == 0 {
		return eris.New("config: no features configured")
	}
	seen := make(map[string]bool, len(c.Features))
	for _, f := range c.Features {
		if !model.Feature(f.Name).Known() {
			return eris.Errorf("config: unknown feature %q", f.Name)
		}
		if seen[f.Name] {
			return eris.Errorf("config: duplicate feature %q", f.Name)
		}
		seen[f.Name] = true
		if !layers[f.Layer] {
			return eris.Errorf("config: feature %q uses undefined layer %q", f.Name, f.Layer)
		}
		if _, err := feature.ParseTransform(f.Transform); err != nil {
			return eris.Wrapf(err, "config: feature %q", f.Name)
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
