package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/vancomm/minesweeper/internal/logging"
	"github.com/vancomm/minesweeper/internal/mines"
)

const EnvPrefix = "MINES"

type Session struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type Config struct {
	Mode           string
	Addr           string
	Log            logging.Options
	Board          mines.Params
	MaxCells       int
	Session        Session
	AllowedOrigins []string
	JWT            *JWT
	Cookies        *Cookies
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "development")
	v.SetDefault("addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("board.default", "8:8:10")
	v.SetDefault("board.max_cells", 10000)
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("token.secret", "")
	v.SetDefault("token.lifetime", 24*time.Hour)
	v.SetDefault("cookies.domain", "")
	v.SetDefault("cookies.secure", false)
	v.SetDefault("cookies.samesite", "lax")
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load reads the configuration from defaults, the optional file at path and
// MINES_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Mode: v.GetString("mode"),
		Addr: v.GetString("addr"),
		Log: logging.Options{
			Level:      v.GetString("log.level"),
			File:       v.GetString("log.file"),
			MaxSize:    v.GetInt("log.max_size"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAge:     v.GetInt("log.max_age"),
		},
		MaxCells: v.GetInt("board.max_cells"),
		Session: Session{
			TTL:           v.GetDuration("session.ttl"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
		},
		AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
	}
	if c.Mode != "development" && c.Mode != "production" {
		return nil, fmt.Errorf("unknown mode %q", c.Mode)
	}
	c.Log.JSON = c.Production()

	if c.MaxCells <= 0 || c.MaxCells > mines.MaxCells {
		return nil, fmt.Errorf("board.max_cells must be in 1..%d", mines.MaxCells)
	}

	board, err := mines.ParseParams(v.GetString("board.default"))
	if err != nil {
		return nil, fmt.Errorf("invalid board.default: %w", err)
	}
	if board.Cells() > c.MaxCells {
		return nil, fmt.Errorf("board.default %s exceeds board.max_cells %d", board, c.MaxCells)
	}
	c.Board = board

	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return nil, errors.New("session.ttl and session.sweep_interval must be positive")
	}

	secret := []byte(v.GetString("token.secret"))
	if len(secret) == 0 {
		/* sessions live in memory, so a per-process secret outlives them */
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("unable to generate token secret: %w", err)
		}
	}
	c.JWT = NewJWT(secret, v.GetDuration("token.lifetime"))

	sameSite, err := parseSameSite(v.GetString("cookies.samesite"))
	if err != nil {
		return nil, err
	}
	c.Cookies = &Cookies{
		Domain:   v.GetString("cookies.domain"),
		Secure:   v.GetBool("cookies.secure"),
		SameSite: sameSite,
		jwt:      c.JWT,
	}

	return c, nil
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToUpper(s) {
	case "DEFAULT":
		return http.SameSiteDefaultMode, nil
	case "LAX":
		return http.SameSiteLaxMode, nil
	case "STRICT":
		return http.SameSiteStrictMode, nil
	case "NONE":
		return http.SameSiteNoneMode, nil
	}
	return 0, fmt.Errorf("invalid cookies.samesite %q", s)
}

func (c Config) Production() bool {
	return c.Mode == "production"
}

func (c Config) Development() bool {
	return c.Mode != "production"
}

func (c Config) Fields() logrus.Fields {
	return logrus.Fields{
		"mode":                   c.Mode,
		"addr":                   c.Addr,
		"log_level":              c.Log.Level,
		"log_file":               c.Log.File,
		"board_default":          c.Board.String(),
		"board_max_cells":        c.MaxCells,
		"session_ttl":            c.Session.TTL.String(),
		"session_sweep_interval": c.Session.SweepInterval.String(),
		"token_lifetime":         c.JWT.tokenLifetime.String(),
		"cookies_domain":         c.Cookies.Domain,
		"cookies_secure":         c.Cookies.Secure,
		"cors_allowed_origins":   c.AllowedOrigins,
	}
}
