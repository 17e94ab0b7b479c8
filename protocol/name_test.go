package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseName(t *testing.T) {
	ts := time.Date(2022, 1, 2, 3, 4, 5, 12345678, time.UTC)
	tests := []struct {
		testName string
		name     string
		want     NameInfo
		wantErr  bool
	}{
		{
			"roundtrip",
			Name("world", "inst1", ts),
			NameInfo{
				FullName:        "world__inst1__20220102-030405-012345678.pb.gz",
				Extension:       "pb.gz",
				ReplicatorName:  "world",
				InstanceID:      "inst1",
				TimestampString: "20220102-030405-012345678",
				Timestamp:       ts,
			},
			false,
		},
		{
			"extra-fields",
			"world__inst1__20220102-030405-012345678__extra.pb.gz",
			NameInfo{
				FullName:        "world__inst1__20220102-030405-012345678__extra.pb.gz",
				Extension:       "pb.gz",
				ReplicatorName:  "world",
				InstanceID:      "inst1",
				TimestampString: "20220102-030405-012345678",
				Timestamp:       ts,
			},
			false,
		},
		{
			"invalid",
			"invalid",
			NameInfo{},
			true,
		},
		{
			"invalid-ext",
			"world__inst1__20220102-030405-012345678.pb.bz2",
			NameInfo{},
			true,
		},
		{
			"too-few-fields",
			"world__20220102-030405-012345678.pb.gz",
			NameInfo{},
			true,
		},
		{
			"invalid-ts",
			"world__inst1__20220102-030405-012.pb.gz",
			NameInfo{},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.testName, func(t *testing.T) {
			got, err := ParseName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
