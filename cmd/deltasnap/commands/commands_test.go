package commands

import (
	"bytes"
	"testing"

	"github.com/PowerDNS/simpleblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortByTime(t *testing.T) {
	list := simpleblob.BlobList{
		{Name: "world__b__20221108-120000-000000000.pb.gz"},
		{Name: "zzz"},
		{Name: "world__a__20221108-130000-000000000.pb.gz"},
		{Name: "aaa"},
		{Name: "world__c__20221108-110000-000000000.pb.gz"},
	}
	sortByTime(list)
	assert.Equal(t, []string{
		"aaa",
		"zzz",
		"world__c__20221108-110000-000000000.pb.gz",
		"world__b__20221108-120000-000000000.pb.gz",
		"world__a__20221108-130000-000000000.pb.gz",
	}, list.Names())
}

func TestWriteDocs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeDocs(rootCmd, &buf))
	out := buf.String()
	assert.Contains(t, out, "## deltasnap simulate")
	assert.Contains(t, out, "## deltasnap checkpoints dump")
	assert.NotContains(t, out, "### SEE ALSO")
}
