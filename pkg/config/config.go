package config

import (
	"os"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Site       SiteConfig       `toml:"site"`
	Collection CollectionConfig `toml:"collection"`
	Archive    ArchiveConfig    `toml:"archive"`
	Logging    LoggingConfig    `toml:"logging"`
}

type SiteConfig struct {
	APIURL      string `toml:"api_url"`
	BaseURL     string `toml:"base_url"`
	UserAgent   string `toml:"user_agent"`
	CheckRobots bool   `toml:"check_robots"`
}

type CollectionConfig struct {
	// Prefix is the title prefix all articles of the collection share.
	Prefix string `toml:"prefix"`
	// PagePattern matches constituent page titles and page-marker names.
	// Group 1 is the volume number, group 2 the page index.
	PagePattern string `toml:"page_pattern"`
	// Namespaces watched in the recent-changes feed (articles plus
	// constituent pages).
	Namespaces string `toml:"namespaces"`
}

type ArchiveConfig struct {
	Label       string `toml:"label"`
	LicenseName string `toml:"license_name"`
	LicenseURL  string `toml:"license_url"`
	Source      string `toml:"source"`
	URI         string `toml:"uri"`
	CSSLinks    string `toml:"css_links"`
	IncludeDir  string `toml:"include_dir"`
	MinBinSize  int    `toml:"min_bin_size"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration for the 1911 Encyclopædia Britannica
// on en.wikisource.org, the collection this tool was built for.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			APIURL:      "https://en.wikisource.org/w/api.php",
			BaseURL:     "https://en.wikisource.org",
			UserAgent:   "wikislob/0.1.0 (github.com/wikislob/wikislob)",
			CheckRobots: true,
		},
		Collection: CollectionConfig{
			Prefix:      "1911 Encyclopædia Britannica",
			PagePattern: `^Page:EB1911 - Volume (\d+)\.djvu/(\d+)`,
			Namespaces:  "0|104",
		},
		Archive: ArchiveConfig{
			Label:       "1911 Encyclopædia Britannica",
			LicenseName: "Creative Commons Attribution-Share Alike 3.0",
			LicenseURL:  "https://creativecommons.org/licenses/by-sa/3.0/",
			Source:      "https://en.wikisource.org/wiki/1911_Encyclop%C3%A6dia_Britannica",
			URI:         "https://en.wikisource.org/wiki/1911_Encyclop%C3%A6dia_Britannica",
			CSSLinks: `<link rel="stylesheet" href="~/css/site.styles.css" type="text/css">` +
				`<link rel="stylesheet" href="~/css/ext.gadget.css" type="text/css">` +
				`<link rel="stylesheet" href="~/css/custom.css" type="text/css">`,
			IncludeDir: "include",
			MinBinSize: 512 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	err = toml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *CollectionConfig) PageRe() (*regexp.Regexp, error) {
	return regexp.Compile(c.PagePattern)
}
