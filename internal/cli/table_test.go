package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, []string{"ID", "SUBJECT"}, [][]string{
		{"t1", "Backend engineer role"},
		{"thread-22", "Hi"},
	})
	require.NoError(t, err)
	require.Equal(t, "ID         SUBJECT\n"+
		"t1         Backend engineer role\n"+
		"thread-22  Hi\n", buf.String())
}

func TestWriteTableHandlesRaggedRows(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, []string{"A"}, [][]string{{"1", "extra"}})
	require.NoError(t, err)
	require.Equal(t, "A  \n1  extra\n", buf.String())
}

func TestWriteTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, nil, nil))
	require.Zero(t, buf.Len())
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "exact", truncate("exact", 5))
	require.Equal(t, "trun...", truncate("truncate me", 7))
	require.Equal(t, "tr", truncate("truncate", 2))
}
