package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	for _, name := range []string{"free", "active", "growth", "thrive"} {
		tier, err := ParseTier(name)
		require.NoError(t, err)
		assert.Equal(t, name, tier.String())
	}

	_, err := ParseTier("platinum")
	assert.Error(t, err)

	_, err = ParseTier("Free")
	assert.Error(t, err, "tier names are case sensitive")
}

func TestTierNext(t *testing.T) {
	next, ok := TierFree.Next()
	require.True(t, ok)
	assert.Equal(t, TierActive, next)

	next, ok = TierGrowth.Next()
	require.True(t, ok)
	assert.Equal(t, TierThrive, next)

	_, ok = TierThrive.Next()
	assert.False(t, ok)
	assert.True(t, TierThrive.IsTop())
	assert.False(t, TierFree.IsTop())
}

func validSpecs() map[string]ProfileSpec {
	return map[string]ProfileSpec{
		"free":   {DailyLimit: 10, WindowLimit: 5, WindowSeconds: 60},
		"active": {DailyLimit: 100, WindowLimit: 20, WindowSeconds: 60},
		"growth": {DailyLimit: 500, WindowLimit: 60, WindowSeconds: 60},
		"thrive": {DailyLimit: Unlimited, WindowLimit: Unlimited},
	}
}

func TestBuildProfiles_Valid(t *testing.T) {
	profiles, err := BuildProfiles(validSpecs())
	require.NoError(t, err)

	free := profiles.ForTier(TierFree)
	assert.Equal(t, 10, free.DailyLimit)
	assert.Equal(t, 60*time.Second, free.WindowSize)
	assert.False(t, free.DailyUnlimited())

	thrive := profiles.ForTier(TierThrive)
	assert.True(t, thrive.DailyUnlimited())
	assert.True(t, thrive.WindowUnlimited())
}

func TestBuildProfiles_RejectsUnknownTierName(t *testing.T) {
	specs := validSpecs()
	specs["platinum"] = ProfileSpec{DailyLimit: 1, WindowLimit: 1, WindowSeconds: 60}

	_, err := BuildProfiles(specs)
	assert.ErrorContains(t, err, "platinum")
}

func TestBuildProfiles_RejectsMissingTier(t *testing.T) {
	specs := validSpecs()
	delete(specs, "growth")

	_, err := BuildProfiles(specs)
	assert.ErrorContains(t, err, "growth")
}

func TestBuildProfiles_RejectsNegativeLimits(t *testing.T) {
	specs := validSpecs()
	specs["free"] = ProfileSpec{DailyLimit: -2, WindowLimit: 5, WindowSeconds: 60}
	_, err := BuildProfiles(specs)
	assert.ErrorContains(t, err, "daily_limit")

	specs = validSpecs()
	specs["free"] = ProfileSpec{DailyLimit: 10, WindowLimit: -5, WindowSeconds: 60}
	_, err = BuildProfiles(specs)
	assert.ErrorContains(t, err, "window_limit")
}

func TestBuildProfiles_RequiresWindowSecondsForFiniteWindow(t *testing.T) {
	specs := validSpecs()
	specs["free"] = ProfileSpec{DailyLimit: 10, WindowLimit: 5}

	_, err := BuildProfiles(specs)
	assert.ErrorContains(t, err, "window_seconds")
}

func TestLimitProfile_FeaturesAndCaps(t *testing.T) {
	profiles, err := BuildProfiles(map[string]ProfileSpec{
		"free":   {DailyLimit: 10, WindowLimit: 5, WindowSeconds: 60, Caps: map[string]int{"search_results": 10}},
		"active": {DailyLimit: 100, WindowLimit: 20, WindowSeconds: 60, Features: []string{"image_analysis", "workout_plans"}},
		"growth": {DailyLimit: 500, WindowLimit: 60, WindowSeconds: 60},
		"thrive": {DailyLimit: Unlimited, WindowLimit: Unlimited},
	})
	require.NoError(t, err)

	active := profiles.ForTier(TierActive)
	assert.True(t, active.HasFeature("image_analysis"))
	assert.False(t, active.HasFeature("meal_plans"))
	assert.ElementsMatch(t, []string{"image_analysis", "workout_plans"}, active.Features())

	free := profiles.ForTier(TierFree)
	n, ok := free.Cap("search_results")
	require.True(t, ok)
	assert.Equal(t, 10, n)

	_, ok = free.Cap("export_rows")
	assert.False(t, ok)
}
