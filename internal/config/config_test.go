package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("PORT")
	os.Unsetenv("ALLOWED_ORIGINS")

	cfg := Load()

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
}

func TestLoadReadsEnv(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("ALLOWED_ORIGINS")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowOrigins)
}
