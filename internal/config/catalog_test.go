package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRulesHolder_DefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewCatalogRulesHolder(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalogRules(), holder.Get())
}

func TestCatalogRulesHolder_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  minWishes: 2\n  maxWishes: 7\n"), 0o600))

	holder, err := NewCatalogRulesHolder(Config{CatalogRulesFile: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, CatalogRules{MinWishes: 2, MaxWishes: 7}, holder.Get())
}

func TestCatalogRulesHolder_RejectsInvertedBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  minWishes: 5\n  maxWishes: 2\n"), 0o600))

	_, err := NewCatalogRulesHolder(Config{CatalogRulesFile: path}, nil)
	assert.Error(t, err)
}

func TestLoad_ReadsPaymentSettings(t *testing.T) {
	t.Setenv("PAYSTACK_SECRET_KEY", " sk_test_abc ")
	t.Setenv("PAYSTACK_BASE_URL", "https://gateway.test/")
	t.Setenv("PAYMENT_VERIFY_TIMEOUT", "3s")

	cfg := Load()
	assert.Equal(t, "sk_test_abc", cfg.Payment.SecretKey)
	assert.Equal(t, "https://gateway.test", cfg.Payment.BaseURL)
	assert.Equal(t, "3s", cfg.Payment.VerifyTimeout.String())
	assert.NotContains(t, cfg.String(), "sk_test_abc")
}
