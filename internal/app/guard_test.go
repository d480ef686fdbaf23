package app_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/metrik/metrik/internal/app"
	_ "github.com/metrik/metrik/internal/testing/guard"
)

func TestGuardEnablesTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
}
