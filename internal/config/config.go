package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/onsite-hq/onsite/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr = ":3000"

	PolicyStrict = "strict"
	PolicySoft   = "soft"
)

type MySQLConfig struct {
	Dsn             string   `mapstructure:"dsn"`
	ReplicaDsns     []string `mapstructure:"replicaDsns"`
	TablePrefix     string   `mapstructure:"tablePrefix"`
	MaxIdleConns    int      `mapstructure:"maxIdleConns"`
	MaxOpenConns    int      `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int      `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int      `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

// AttendanceConfig controls check-in admission. Policy "strict" rejects
// check-ins outside every active fence; "soft" admits them but flags the
// session and still feeds the fraud heuristics.
type AttendanceConfig struct {
	Policy string `mapstructure:"policy"`
}

type VerificationConfig struct {
	DefaultTimeout       time.Duration `mapstructure:"defaultTimeout"`
	SweepInterval        time.Duration `mapstructure:"sweepInterval"`
	MatchThreshold       float64       `mapstructure:"matchThreshold"`
	SupersedePending     bool          `mapstructure:"supersedePending"`
	RequireActiveSession bool          `mapstructure:"requireActiveSession"`
}

type ScorerConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"apiKey"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type NotifyConfig struct {
	Backend    string     `mapstructure:"backend"` // "log" or "smtp"
	AlertEmail string     `mapstructure:"alertEmail"`
	SMTP       SMTPConfig `mapstructure:"smtp"`
}

type Config struct {
	Debug        bool               `mapstructure:"debug"`
	ListenAddr   string             `mapstructure:"listenAddr"`
	JWTSecret    string             `mapstructure:"jwtSecret"`
	AllowOrigins []string           `mapstructure:"allowOrigins"`
	MySQL        MySQLConfig        `mapstructure:"mysql"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Attendance   AttendanceConfig   `mapstructure:"attendance"`
	Verification VerificationConfig `mapstructure:"verification"`
	Scorer       ScorerConfig       `mapstructure:"scorer"`
	Notify       NotifyConfig       `mapstructure:"notify"`
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwtSecret is required")
	}
	switch c.Attendance.Policy {
	case "":
		c.Attendance.Policy = PolicyStrict
	case PolicyStrict, PolicySoft:
	default:
		return fmt.Errorf("unknown attendance policy %q", c.Attendance.Policy)
	}
	if c.Verification.DefaultTimeout == 0 {
		c.Verification.DefaultTimeout = params.DefaultVerificationTimeout
	}
	if c.Verification.SweepInterval == 0 {
		c.Verification.SweepInterval = params.SweepInterval
	}
	if c.Verification.MatchThreshold == 0 {
		c.Verification.MatchThreshold = params.MatchThreshold
	}
	if c.Scorer.Timeout == 0 {
		c.Scorer.Timeout = params.ScorerTimeout
	}
	if c.Notify.Backend == "" {
		c.Notify.Backend = "log"
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
