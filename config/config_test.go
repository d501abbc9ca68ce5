package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthguard/sentinel/config"
)

func TestInitConfigDefaults(t *testing.T) {
	require.NoError(t, config.InitConfig())

	assert.Equal(t, "8080", config.GetString("server.port"))
	assert.Equal(t, 90, config.GetInt("audit.retentionDays"))
	assert.Equal(t, 5, config.GetInt("correlation.threshold"))

	base := config.GetFloat64Map("risk.baseScores")
	assert.Equal(t, 25.0, base["failed_authentication"])
	assert.Equal(t, 85.0, base["sandbox_escape"])

	// source lists default empty but are configurable
	assert.Empty(t, config.GetStringSlice("risk.blacklist"))
	assert.Empty(t, config.GetStringSlice("risk.whitelist"))

	viper.Set("risk.blacklist", []string{"10.0.0.9"})
	viper.Set("risk.whitelist", []string{"scanner-1"})
	t.Cleanup(func() {
		viper.Set("risk.blacklist", []string{})
		viper.Set("risk.whitelist", []string{})
	})
	assert.Equal(t, []string{"10.0.0.9"}, config.GetStringSlice("risk.blacklist"))
	assert.Equal(t, []string{"scanner-1"}, config.GetStringSlice("risk.whitelist"))
}
