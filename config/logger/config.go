package logger

import (
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	LogLevels     = []string{"trace", "debug", "info", "warning", "error", "fatal"}
	LogFormats    = []string{"human", "logfmt", "json"}
	LogTimestamps = []string{"short", "disable", "full"}
)

// NamespaceNone disables the message prefix of the human format
const NamespaceNone = "none"

// Config configures logging
type Config struct {
	Level     string `yaml:"level"`     // One of LogLevels
	Format    string `yaml:"format"`    // One of LogFormats
	Timestamp string `yaml:"timestamp"` // One of LogTimestamps
	// Namespace is the field the human format shows as a message prefix,
	// "replicator" by default, or NamespaceNone.
	Namespace string `yaml:"namespace"`
}

// DefaultConfig defines the default configuration
var DefaultConfig = Config{
	Level:     "info",
	Format:    "human",
	Timestamp: "short",
	Namespace: DefaultNamespaceField,
}

// FlagConfig receives the flag values. Flags default to empty, so that Merge
// only overrides the config file for flags that were set.
var FlagConfig = Config{}

// StringVarFlagFunc has the signature of flag.StringVar
type StringVarFlagFunc func(*string, string, string, string)

// RegisterFlags registers the log flags with the flag package
func RegisterFlags() {
	RegisterFlagsWith(flag.StringVar)
}

// RegisterFlagsWith registers the log flags with another flag package,
// like the pflag FlagSet used by Cobra.
func RegisterFlagsWith(stringVar StringVarFlagFunc) {
	for _, o := range options(&FlagConfig) {
		usage := fmt.Sprintf("Log %s (default: %s", o.name, o.def)
		if o.allowed != nil {
			usage += "; options: " + strings.Join(o.allowed, ", ")
		}
		stringVar(o.value, "log-"+o.name, "", usage+")")
	}
}

// option describes a single Config field for flags and validation
type option struct {
	name    string
	value   *string
	def     string
	allowed []string // nil allows any value
}

func options(c *Config) []option {
	return []option{
		{"level", &c.Level, DefaultConfig.Level, LogLevels},
		{"format", &c.Format, DefaultConfig.Format, LogFormats},
		{"timestamp", &c.Timestamp, DefaultConfig.Timestamp, LogTimestamps},
		{"namespace", &c.Namespace, DefaultConfig.Namespace, nil},
	}
}

// Check validates a Config instance. Empty timestamp and namespace values
// select the defaults.
func (c Config) Check() error {
	for _, o := range options(&c) {
		v := *o.value
		if o.allowed == nil || (v == "" && o.name != "level" && o.name != "format") {
			continue
		}
		if !slices.Contains(o.allowed, v) {
			return fmt.Errorf("log.%s: must be one of: %s", o.name, strings.Join(o.allowed, ", "))
		}
	}
	return nil
}

// Merge returns c with all non-empty values of o applied
func (c Config) Merge(o Config) Config {
	dst := options(&c)
	for i, src := range options(&o) {
		if *src.value != "" {
			*dst[i].value = *src.value
		}
	}
	return c
}

// Formatter returns the logrus formatter for the configured format
func (c Config) Formatter() logrus.Formatter {
	noTimestamp := c.Timestamp == "disable"
	fullTimestamp := c.Timestamp == "full"

	switch c.Format {
	case "json":
		return &logrus.JSONFormatter{DisableTimestamp: noTimestamp}
	case "logfmt":
		return &logrus.TextFormatter{
			DisableColors:    true, // this sets logfmt
			DisableTimestamp: noTimestamp,
			FullTimestamp:    fullTimestamp,
		}
	}
	text := &logrus.TextFormatter{
		DisableTimestamp: noTimestamp,
		FullTimestamp:    fullTimestamp,
	}
	if c.Namespace == NamespaceNone {
		return text
	}
	return &NamespaceFormatter{Parent: text, Field: c.Namespace}
}

// Configure configures the logrus standard logger
func Configure(c Config) {
	ConfigureLogger(logrus.StandardLogger(), c)
}

// ConfigureLogger sets the formatter and level of a logger. The Config must
// have passed Check.
func ConfigureLogger(l *logrus.Logger, c Config) {
	l.SetFormatter(c.Formatter())
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		l.Warnf("Ignoring invalid log level: %s", c.Level)
		return
	}
	l.SetLevel(level)
}
