package config

import (
	"strings"

	"github.com/spf13/viper"
)

// ViperView adapts a *viper.Viper to the View interface, mirroring the
// teacher's use of viper for configuration but exposing only the
// lookup surface the engine needs — loading (file discovery, format
// parsing, env binding) happens before this adapter is constructed and
// stays the caller's responsibility.
type ViperView struct {
	v *viper.Viper
}

// NewViperView wraps an already-loaded *viper.Viper.
func NewViperView(v *viper.Viper) *ViperView {
	return &ViperView{v: v}
}

// NewViperViewFromPath loads a config file (any format viper supports)
// from path and returns a View over it, reading environment overrides
// prefixed GOLDEARN_ (e.g. GOLDEARN_RISK_MAX_DAILY_LOSS).
func NewViperViewFromPath(path string) (*ViperView, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GOLDEARN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return &ViperView{v: v}, nil
}

func (c *ViperView) GetString(key string) (string, bool) {
	if !c.v.IsSet(key) {
		return "", false
	}
	return c.v.GetString(key), true
}

func (c *ViperView) GetInt(key string) (int, bool) {
	if !c.v.IsSet(key) {
		return 0, false
	}
	return c.v.GetInt(key), true
}

func (c *ViperView) GetFloat64(key string) (float64, bool) {
	if !c.v.IsSet(key) {
		return 0, false
	}
	return c.v.GetFloat64(key), true
}

func (c *ViperView) GetBool(key string) (bool, bool) {
	if !c.v.IsSet(key) {
		return false, false
	}
	return c.v.GetBool(key), true
}
