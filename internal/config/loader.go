package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/rileyhilliard/gpumon/internal/errors"
)

// EnvPrefix is the prefix for environment overrides, e.g. GPUMON_INTERVAL.
const EnvPrefix = "GPUMON"

// Load reads a cluster file. Missing optional fields get defaults and
// GPUMON_* environment variables override scalar fields.
func Load(path string) (*Cluster, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) || os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Cluster file not found: %s", path),
				"List available clusters with: gpumon list-clusters")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't read cluster file %s", path),
			"Check the file is valid YAML")
	}

	name := clusterNameFromPath(path)
	cfg := DefaultCluster(name)
	cfg.DisplayName = ""

	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid cluster file format",
			"Check the field types in "+path)
	}

	cfg.Name = name
	if strings.TrimSpace(cfg.DisplayName) == "" {
		cfg.DisplayName = name
	}
	cfg.Transport = Transport(strings.ToLower(string(cfg.Transport)))

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultCluster("")
	v.SetDefault("user", "")
	v.SetDefault("interval", def.Interval.String())
	v.SetDefault("timeout", def.Timeout.String())
	v.SetDefault("max_parallel", 0)
	v.SetDefault("transport", string(def.Transport))
	v.SetDefault("thresholds.warn_util", def.Thresholds.WarnUtil)
	v.SetDefault("thresholds.crit_util", def.Thresholds.CritUtil)
	v.SetDefault("thresholds.warn_temp", def.Thresholds.WarnTemp)
	v.SetDefault("thresholds.crit_temp", def.Thresholds.CritTemp)
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// secondsToDurationHook decodes durations from "5s"/"1m30s" strings or from
// bare numbers meaning seconds, which is how the interval was always written.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return ParseDuration(v)
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		}
		return data, nil
	}
}

// ParseDuration accepts Go duration syntax or a plain number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use e.g. 5s, 1m or a number of seconds", s)
	}
	return d, nil
}

func clusterNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
