package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootVersionIncludesBuildInfo(t *testing.T) {
	cmd := newRootCmd("1.2.0", "abc1234", "2026-08-30")
	require.Equal(t, "1.2.0 (commit abc1234, built 2026-08-30)", cmd.Version)
}
