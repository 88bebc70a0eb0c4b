// SPDX-License-Identifier: Apache-2.0

// Package config loads cmd/syncd's standalone configuration: LDAP connection
// defaults, upstream provider credentials, the per-call timeout, and the
// optional Postgres DSN backing internal/repository/pgrepo. Grounded on
// stratastor-rodent's config/config.go for the viper load/default/env-overlay
// pattern; the Reconciler and Scheduler never import this package directly,
// only the values cmd/syncd extracts from it (spec section 6: "provided by
// the surrounding HTTP application, not by the engine").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LDAP holds the default downstream directory connection, used when no
// per-SyncConfig LDAPConfig row is available (memrepo/demo mode).
type LDAP struct {
	ServerURI    string `mapstructure:"server_uri"`
	BindDN       string `mapstructure:"bind_dn"`
	BindPassword string `mapstructure:"bind_password"`
	BaseDN       string `mapstructure:"base_dn"`
	UseSSL       bool   `mapstructure:"use_ssl"`
}

// ProviderCredentials holds the API credentials for one upstream provider.
// Not every field is used by every provider: WeCom uses CorpID/Secret,
// Feishu and DingTalk use AppID/Secret under the same struct shape.
type ProviderCredentials struct {
	CorpID string `mapstructure:"corp_id"`
	AppID  string `mapstructure:"app_id"`
	Secret string `mapstructure:"secret"`
}

// Providers collects credentials for each upstream provider kind the
// binary may be configured to talk to.
type Providers struct {
	WeCom    ProviderCredentials `mapstructure:"wecom"`
	Feishu   ProviderCredentials `mapstructure:"feishu"`
	DingTalk ProviderCredentials `mapstructure:"dingtalk"`
}

// Database holds the optional Postgres connection used by pgrepo. When DSN
// is empty, cmd/syncd falls back to the in-memory repository.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Config is the root of cmd/syncd's configuration file.
type Config struct {
	LDAP      LDAP      `mapstructure:"ldap"`
	Providers Providers `mapstructure:"providers"`
	Database  Database  `mapstructure:"database"`

	// CallTimeout bounds each LDAP/HTTP operation. Defaults to 30s.
	CallTimeout string `mapstructure:"call_timeout"`
}

// ResolvePath applies the same explicit-path > $SYNCD_CONFIG > ./syncd.yaml
// precedence Load uses, returning an absolute path. NewWatcher needs this
// same resolution to watch the file Load actually reads.
func ResolvePath(configFilePath string) string {
	path := configFilePath
	if path == "" {
		path = os.Getenv("SYNCD_CONFIG")
	}
	if path == "" {
		path = "./syncd.yaml"
	}
	absPath, err := filepath.Abs(path)
	if err == nil {
		path = absPath
	}
	return path
}

// Load reads configFilePath (or, if empty, $SYNCD_CONFIG, or finally
// ./syncd.yaml) through viper, applies defaults, and overlays SYNCD_*
// environment variables, following the teacher pack's config precedence:
// explicit path > environment variable > default path.
func Load(configFilePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("ldap.use_ssl", true)
	v.SetDefault("call_timeout", "30s")
	v.SetDefault("database.dsn", "")

	path := ResolvePath(configFilePath)
	v.SetConfigFile(path)

	v.AutomaticEnv()
	v.SetEnvPrefix("SYNCD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
		// No config file is fine: defaults + environment may be enough for
		// demo/test runs against memrepo.
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// CredentialsFor returns the configured credentials for kind, or an error if
// kind is not one of the known provider names.
func (c *Config) CredentialsFor(kind string) (ProviderCredentials, error) {
	switch kind {
	case "wecom":
		return c.Providers.WeCom, nil
	case "feishu":
		return c.Providers.Feishu, nil
	case "dingtalk":
		return c.Providers.DingTalk, nil
	default:
		return ProviderCredentials{}, fmt.Errorf("no credentials configured for provider %q", kind)
	}
}
