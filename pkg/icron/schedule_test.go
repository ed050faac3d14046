package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo_EveryThirtySeconds(t *testing.T) {
	ref := time.Date(2024, 5, 1, 10, 0, 10, 0, time.UTC)

	info, err := GetTriggerInfo("*/30 * * * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC), info.Next)
	assert.Equal(t, 20*time.Second, info.TimeUntilNext)
	assert.False(t, info.Last.IsZero())
	assert.False(t, info.Last.After(ref))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("0 */5 * * * *"))
	assert.NoError(t, Validate("@every 1m"))
	assert.Error(t, Validate("every minute"))
	assert.Error(t, Validate("*/5 * * *"))
}
