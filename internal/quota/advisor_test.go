package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTierBenefits_CoversUpgradePath(t *testing.T) {
	up := NextTierBenefits(TierFree)
	require.NotNil(t, up)
	assert.Equal(t, TierActive, up.NextTier)
	assert.NotEmpty(t, up.Benefits)

	up = NextTierBenefits(TierActive)
	require.NotNil(t, up)
	assert.Equal(t, TierGrowth, up.NextTier)

	up = NextTierBenefits(TierGrowth)
	require.NotNil(t, up)
	assert.Equal(t, TierThrive, up.NextTier)
}

func TestNextTierBenefits_NilForTopTier(t *testing.T) {
	assert.Nil(t, NextTierBenefits(TierThrive))
}

func TestNextTierBenefits_IsStateless(t *testing.T) {
	first := NextTierBenefits(TierFree)
	second := NextTierBenefits(TierFree)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.NextTier, second.NextTier)
	assert.Equal(t, first.Benefits, second.Benefits)
}
