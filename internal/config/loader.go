package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves one variable. It has the signature of os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// Load reads the configuration from the process environment and validates it.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration through lookup. Every field tagged
// `env:"NAME[,ALT...]"` takes the first non-empty variable, then its
// `default` tag. All unparsable values are reported together.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	var errs []string
	bindStruct(reflect.ValueOf(cfg).Elem(), lookup, &errs)
	if len(errs) > 0 {
		return nil, fmt.Errorf("config load:\n  - %s", strings.Join(errs, "\n  - "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func bindStruct(v reflect.Value, lookup LookupFunc, errs *[]string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)

		// Config sections are plain structs; leaf fields carry the tags.
		if field.Type.Kind() == reflect.Struct {
			bindStruct(fv, lookup, errs)
			continue
		}

		tag := field.Tag.Get("env")
		if tag == "" {
			continue
		}
		names := strings.Split(tag, ",")

		value, from := firstSet(lookup, names)
		if value == "" {
			value, from = field.Tag.Get("default"), names[0]+" default"
		}
		if value == "" {
			continue
		}

		if err := parseInto(fv, value); err != nil {
			*errs = append(*errs, fmt.Sprintf("%s=%q: %v", from, value, err))
		}
	}
}

func firstSet(lookup LookupFunc, names []string) (value, name string) {
	for _, n := range names {
		if v, ok := lookup(n); ok && v != "" {
			return v, n
		}
	}
	return "", ""
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	byteSizeType = reflect.TypeOf(ByteSize(0))
)

func parseInto(field reflect.Value, value string) error {
	switch field.Type() {
	case durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration")
		}
		field.SetInt(int64(d))
		return nil
	case byteSizeType:
		n, err := ParseByteSize(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer")
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean")
		}
		field.SetBool(b)
	case reflect.Slice:
		// Comma-separated lists: API keys and trusted proxy CIDRs.
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// ByteSize is a size in bytes. In the environment it is written as a plain
// number or with a KB, MB, GB (powers of 1000) or KiB, MiB, GiB (powers of
// 1024) suffix, e.g. COMPARE_MAX_UPLOAD_SIZE=50MiB.
type ByteSize int64

var byteUnits = []struct {
	suffix string
	size   int64
}{
	{"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
	{"GB", 1e9}, {"MB", 1e6}, {"KB", 1e3},
	{"B", 1},
}

// ParseByteSize parses a size such as "52428800", "512KB" or "50MiB".
func ParseByteSize(s string) (ByteSize, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	unit := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(upper, u.suffix) {
			upper, unit = strings.TrimSpace(strings.TrimSuffix(upper, u.suffix)), u.size
			break
		}
	}
	n, err := strconv.ParseInt(upper, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return ByteSize(n * unit), nil
}

func (b ByteSize) String() string {
	switch {
	case b >= 1<<30 && b%(1<<30) == 0:
		return strconv.FormatInt(int64(b>>30), 10) + "GiB"
	case b >= 1<<20 && b%(1<<20) == 0:
		return strconv.FormatInt(int64(b>>20), 10) + "MiB"
	case b >= 1<<10 && b%(1<<10) == 0:
		return strconv.FormatInt(int64(b>>10), 10) + "KiB"
	}
	return strconv.FormatInt(int64(b), 10) + "B"
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation (only when history is persisted)
	if c.Database.Enabled() {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}
	if c.Database.Retention < 0 {
		errs = append(errs, "HISTORY_RETENTION must be non-negative")
	}
	if c.Database.Retention > 0 && c.Database.PruneInterval <= 0 {
		errs = append(errs, "HISTORY_PRUNE_INTERVAL must be positive when HISTORY_RETENTION is set")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Compare validation
	if c.Compare.MaxConcurrent <= 0 {
		errs = append(errs, "COMPARE_MAX_CONCURRENT must be positive")
	}
	if c.Compare.MaxWaitTime <= 0 {
		errs = append(errs, "COMPARE_MAX_WAIT_TIME must be positive")
	}
	if c.Compare.PairTimeout <= 0 {
		errs = append(errs, "COMPARE_PAIR_TIMEOUT must be positive")
	}
	if c.Compare.MaxUploadSize <= 0 {
		errs = append(errs, "COMPARE_MAX_UPLOAD_SIZE must be positive")
	}

	// Report validation
	validReportFormats := map[string]bool{"html": true, "json": true, "both": true, "none": true}
	if !validReportFormats[strings.ToLower(c.Report.Format)] {
		errs = append(errs, fmt.Sprintf("REPORT_FORMAT (%q) must be one of: html, json, both, none", c.Report.Format))
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.CompareLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_COMPARE must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	dbURL := "[NONE]"
	if c.Database.Enabled() {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		dbURL, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Compare: {MaxConcurrent: %d, PairTimeout: %s, MaxUploadSize: %s}, ",
		c.Compare.MaxConcurrent, c.Compare.PairTimeout, c.Compare.MaxUploadSize))
	b.WriteString(fmt.Sprintf("Report: {Dir: %q, Format: %q}, ", c.Report.Dir, c.Report.Format))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {APIKeys: %d configured, RequireAPIKey: %v}, ",
		len(c.Security.APIKeys), c.Security.RequireAPIKey))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
