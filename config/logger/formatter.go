// Package logger configures logrus and implements a formatter that prefixes
// log messages with the replicator name.
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultNamespaceField is the field used by NamespaceFormatter if Field is empty
const DefaultNamespaceField = "replicator"

// NamespaceFormatter moves a field into a message prefix for nicer text output.
type NamespaceFormatter struct {
	Parent logrus.Formatter
	Field  string
}

// Format implements logrus.Formatter
func (f *NamespaceFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	field := f.Field
	if field == "" {
		field = DefaultNamespaceField
	}
	ns, exists := entry.Data[field]
	if !exists {
		return f.Parent.Format(entry)
	}

	// Shallow copy, the entry is shared with other hooks
	e := *entry
	e.Data = make(logrus.Fields, len(entry.Data)-1)
	for k, v := range entry.Data {
		if k != field {
			e.Data[k] = v
		}
	}
	e.Message = fmt.Sprintf("[%-10v] %s", ns, entry.Message)
	return f.Parent.Format(&e)
}
