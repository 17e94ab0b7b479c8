package protocol

import (
	"fmt"
	"strings"
	"time"
)

const (
	timeFormat = "20060102-150405.000000000" // but need to s/./-/
	dotIndex   = 15                          // position of the '.'

	// Extension is the file extension of checkpoint blobs
	Extension = "pb.gz"
)

func Timestamp(ts time.Time) string {
	fileTimestamp := strings.Replace(
		ts.UTC().Format(timeFormat),
		".", "-", 1)
	return fileTimestamp
}

// Name returns the blob name of a checkpoint
func Name(replicatorName, instanceID string, ts time.Time) string {
	return fmt.Sprintf("%s__%s__%s.%s",
		replicatorName,
		instanceID,
		Timestamp(ts),
		Extension,
	)
}

func ParseName(name string) (NameInfo, error) {
	var ni, empty NameInfo
	basename, ext, found := strings.Cut(name, ".")
	if !found {
		return empty, fmt.Errorf("invalid name: no dot: %s", name)
	}
	if ext != Extension {
		return empty, fmt.Errorf("unexpected extension: %s", name)
	}
	ni.FullName = name
	ni.Extension = ext
	p := strings.Split(basename, "__")
	if len(p) < 3 {
		return empty, fmt.Errorf("not enough name parts: %s", name)
	}
	ni.ReplicatorName = p[0]
	ni.InstanceID = p[1]
	ni.TimestampString = p[2]
	tss := ni.TimestampString
	if len(tss) != len(timeFormat) || tss[dotIndex] != '-' {
		return empty, fmt.Errorf("invalid timestamp format: %s in %s", tss, name)
	}
	tss = tss[:dotIndex] + "." + tss[dotIndex+1:] // replace second '-' with '.' for parsing
	ts, err := time.Parse(timeFormat, tss)        // returns time in UTC
	if err != nil {
		return empty, fmt.Errorf("timestamp parse error: %s", err)
	}
	ni.Timestamp = ts
	return ni, nil
}

type NameInfo struct {
	FullName        string
	Extension       string // "pb.gz"
	ReplicatorName  string
	InstanceID      string
	TimestampString string
	Timestamp       time.Time
}
