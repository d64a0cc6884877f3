package config

import (
	"fmt"
	"net/http"
	"time"
)

type Config struct {
	SiteTitle string `mapstructure:"siteTitle"`
	BaseURL   string `mapstructure:"baseURL"`

	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	// NotFoundStatus is returned for paths no route matches: 404 or 200.
	NotFoundStatus int  `mapstructure:"notFoundStatus"`
	Watch          bool `mapstructure:"watch"`

	ContentDir string `mapstructure:"contentDir"`
	StaticDir  string `mapstructure:"staticDir"`
	LayoutsDir string `mapstructure:"layoutsDir"`
	OutputDir  string `mapstructure:"outputDir"`

	HighlightStyle string `mapstructure:"highlightStyle"`
	HardWraps      bool   `mapstructure:"hardWraps"`

	LogLevel  string `mapstructure:"logLevel"`
	LogFormat string `mapstructure:"logFormat"`
}

// Defaults are the values used when neither the config file nor the
// environment set a key.
var Defaults = map[string]any{
	"siteTitle":       "My Blog",
	"baseURL":         "",
	"port":            8080,
	"readTimeout":     10 * time.Second,
	"writeTimeout":    30 * time.Second,
	"shutdownTimeout": 5 * time.Second,
	"notFoundStatus":  http.StatusNotFound,
	"watch":           true,
	"contentDir":      "content",
	"staticDir":       "static",
	"layoutsDir":      "layouts",
	"outputDir":       "public",
	"highlightStyle":  "github",
	"hardWraps":       true,
	"logLevel":        "info",
	"logFormat":       "text",
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.NotFoundStatus != http.StatusNotFound && c.NotFoundStatus != http.StatusOK {
		return fmt.Errorf("notFoundStatus must be 200 or 404, got %d", c.NotFoundStatus)
	}
	if c.ContentDir == "" {
		return fmt.Errorf("contentDir must be set")
	}
	return nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
