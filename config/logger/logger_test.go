package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Check(t *testing.T) {
	assert.NoError(t, DefaultConfig.Check())
	assert.NoError(t, Config{Level: "trace", Format: "json"}.Check())
	assert.Error(t, Config{Level: "loud", Format: "json"}.Check())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Check())
	assert.Error(t, Config{Level: "info", Format: "json", Timestamp: "sometimes"}.Check())
}

func TestConfig_Merge(t *testing.T) {
	c := DefaultConfig.Merge(Config{Level: "debug"})
	assert.Equal(t, Config{Level: "debug", Format: "human", Timestamp: "short", Namespace: "replicator"}, c)

	c = c.Merge(Config{Namespace: "conn", Timestamp: "full"})
	assert.Equal(t, Config{Level: "debug", Format: "human", Timestamp: "full", Namespace: "conn"}, c)
}

func TestConfig_Formatter(t *testing.T) {
	tests := []struct {
		name string
		c    Config
		want logrus.Formatter
	}{
		{"json", Config{Format: "json", Timestamp: "disable"}, &logrus.JSONFormatter{DisableTimestamp: true}},
		{"logfmt", Config{Format: "logfmt", Timestamp: "full"}, &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}},
		{"human", Config{Format: "human"}, &NamespaceFormatter{Parent: &logrus.TextFormatter{}}},
		{"human-conn", Config{Format: "human", Namespace: "conn"},
			&NamespaceFormatter{Parent: &logrus.TextFormatter{}, Field: "conn"}},
		{"human-none", Config{Format: "human", Namespace: NamespaceNone}, &logrus.TextFormatter{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Formatter())
		})
	}
}

func TestRegisterFlagsWith(t *testing.T) {
	usage := make(map[string]string)
	RegisterFlagsWith(func(p *string, name, value, u string) {
		assert.Empty(t, value)
		usage[name] = u
	})
	assert.Len(t, usage, 4)
	assert.Equal(t, "Log level (default: info; options: trace, debug, info, warning, error, fatal)", usage["log-level"])
	assert.Equal(t, "Log namespace (default: replicator)", usage["log-namespace"])
}

func TestNamespaceFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	ConfigureLogger(l, Config{Level: "debug", Format: "human", Timestamp: "disable"})
	f := l.Formatter.(*NamespaceFormatter)
	f.Parent.(*logrus.TextFormatter).DisableColors = true

	l.WithField("replicator", "world").WithField("tick", 3).Info("Tick done")
	out := buf.String()
	assert.Contains(t, out, "[world     ] Tick done")
	assert.Contains(t, out, "tick=3")
	assert.NotContains(t, out, "replicator=")

	buf.Reset()
	l.Debug("plain")
	assert.Contains(t, buf.String(), "msg=plain")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}
