package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRentPolicyDefaultsWhenFileMissing(t *testing.T) {
	holder, err := loadRentPolicy(t.TempDir())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, "INR", policy.Currency)
	assert.Len(t, policy.AgingBuckets, 4)
	assert.Equal(t, "UTC", policy.Location().String())
}

func TestLoadRentPolicyFromFile(t *testing.T) {
	dir := t.TempDir()
	body := `rent:
  currency: USD
  timezone: Asia/Kolkata
  agingBuckets:
    - label: current
      minDays: 0
      maxDays: 15
    - label: late
      minDays: 16
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rent.yml"), []byte(body), 0o600))

	holder, err := loadRentPolicy(dir)
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, "USD", policy.Currency)
	assert.Equal(t, "Asia/Kolkata", policy.Location().String())
	require.Len(t, policy.AgingBuckets, 2)
	assert.Equal(t, "current", policy.AgingBuckets[0].Label)
	require.NotNil(t, policy.AgingBuckets[0].MaxDays)
	assert.Equal(t, 15, *policy.AgingBuckets[0].MaxDays)
	assert.Nil(t, policy.AgingBuckets[1].MaxDays)
}

func TestLoadRentPolicyRejectsInvalidBuckets(t *testing.T) {
	dir := t.TempDir()
	body := `rent:
  currency: USD
  agingBuckets:
    - label: broken
      minDays: 30
      maxDays: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rent.yml"), []byte(body), 0o600))

	_, err := loadRentPolicy(dir)
	require.Error(t, err)
}

func TestValidateRentPolicyDefaults(t *testing.T) {
	require.NoError(t, validateRentPolicy(DefaultRentPolicy()))
}
