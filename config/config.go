package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		ExternalAPI struct {
			Port      string `mapstructure:"port"`
			CertFile  string `mapstructure:"certFile"`
			KeyFile   string `mapstructure:"keyFile"`
			EnableTLS bool   `mapstructure:"enableTLS"`
		} `mapstructure:"externalAPI"`
		Prometheus struct {
			Port      string `mapstructure:"port"`
			CertFile  string `mapstructure:"certFile"`
			KeyFile   string `mapstructure:"keyFile"`
			EnableTLS bool   `mapstructure:"enableTLS"`
		}
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	}
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Planner PlannerConfig `mapstructure:"planner"`
}

// PlannerConfig carries the optimizer policy knobs. The values in config.yml
// are defaults observed to work well, not load-bearing constants.
type PlannerConfig struct {
	// Objective weighting between walking distance and narrative coherence.
	DistanceWeight  float64 `mapstructure:"distanceWeight"`
	CoherenceWeight float64 `mapstructure:"coherenceWeight"`

	// Distances above this many km contribute a zero distance score.
	MaxConsideredDistanceKm float64 `mapstructure:"maxConsideredDistanceKm"`

	// Pairwise distance assumed when one or both POIs lack coordinates.
	DefaultDistanceKm float64 `mapstructure:"defaultDistanceKm"`
	WalkingSpeedKmh   float64 `mapstructure:"walkingSpeedKmh"`

	// Coherence at or above this threshold yields a precedence constraint.
	PrecedenceThreshold float64 `mapstructure:"precedenceThreshold"`

	PerDayBudgetMinutes int    `mapstructure:"perDayBudgetMinutes"`
	DayStartMinutes     int    `mapstructure:"dayStartMinutes"`
	SolverBudget        time.Duration `mapstructure:"solverBudget"`
	RelativeGap         float64 `mapstructure:"relativeGap"`
	TwoOptMaxPasses     int     `mapstructure:"twoOptMaxPasses"`

	// Largest day size still eligible for the local-swap re-optimization tier.
	LocalSwapMaxDaySize int `mapstructure:"localSwapMaxDaySize"`

	DistanceCacheTTL time.Duration `mapstructure:"distanceCacheTTL"`
}

// Defaults returns the planner knobs used when no configuration is loaded,
// e.g. in library use or tests.
func Defaults() PlannerConfig {
	return PlannerConfig{
		DistanceWeight:          0.6,
		CoherenceWeight:         0.4,
		MaxConsideredDistanceKm: 5.0,
		DefaultDistanceKm:       1.0,
		WalkingSpeedKmh:         4.5,
		PrecedenceThreshold:     0.7,
		PerDayBudgetMinutes:     480,
		DayStartMinutes:         9 * 60,
		SolverBudget:            10 * time.Second,
		RelativeGap:             0.05,
		TwoOptMaxPasses:         8,
		LocalSwapMaxDaySize:     5,
		DistanceCacheTTL:        24 * time.Hour,
	}
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	applyPlannerDefaults(&config.Planner)
	return config, nil
}

// applyPlannerDefaults fills zero-valued planner knobs so a partial
// planner: block in config.yml still yields a usable configuration.
func applyPlannerDefaults(pc *PlannerConfig) {
	def := Defaults()
	if pc.DistanceWeight == 0 && pc.CoherenceWeight == 0 {
		pc.DistanceWeight = def.DistanceWeight
		pc.CoherenceWeight = def.CoherenceWeight
	}
	if pc.MaxConsideredDistanceKm == 0 {
		pc.MaxConsideredDistanceKm = def.MaxConsideredDistanceKm
	}
	if pc.DefaultDistanceKm == 0 {
		pc.DefaultDistanceKm = def.DefaultDistanceKm
	}
	if pc.WalkingSpeedKmh == 0 {
		pc.WalkingSpeedKmh = def.WalkingSpeedKmh
	}
	if pc.PrecedenceThreshold == 0 {
		pc.PrecedenceThreshold = def.PrecedenceThreshold
	}
	if pc.PerDayBudgetMinutes == 0 {
		pc.PerDayBudgetMinutes = def.PerDayBudgetMinutes
	}
	if pc.DayStartMinutes == 0 {
		pc.DayStartMinutes = def.DayStartMinutes
	}
	if pc.SolverBudget == 0 {
		pc.SolverBudget = def.SolverBudget
	}
	if pc.RelativeGap == 0 {
		pc.RelativeGap = def.RelativeGap
	}
	if pc.TwoOptMaxPasses == 0 {
		pc.TwoOptMaxPasses = def.TwoOptMaxPasses
	}
	if pc.LocalSwapMaxDaySize == 0 {
		pc.LocalSwapMaxDaySize = def.LocalSwapMaxDaySize
	}
	if pc.DistanceCacheTTL == 0 {
		pc.DistanceCacheTTL = def.DistanceCacheTTL
	}
}
