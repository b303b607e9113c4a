package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalk/strategy/internal/schema"
)

func TestRegistryAddAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(Venue{ID: 1, MIC: "XONE", OrderAddr: "ws://one", MarketDataAddr: "ws://one-md"}))
	require.NoError(t, r.Add(Venue{ID: 2, MIC: "XTWO", OrderAddr: "ws://two", MarketDataAddr: "ws://two-md", UseSyntheticCancelReplace: true}))

	v, ok := r.Venue(1)
	require.True(t, ok)
	assert.Equal(t, "XONE", v.MIC)

	id, ok := r.IDByMIC("XTWO")
	require.True(t, ok)
	assert.Equal(t, schema.VenueID(2), id)

	assert.False(t, r.UseSyntheticCancelReplace(1))
	assert.True(t, r.UseSyntheticCancelReplace(2))
	assert.False(t, r.UseSyntheticCancelReplace(9))

	assert.Len(t, r.All(), 2)
}

func TestRegistryRejectsDuplicatesAndInvalid(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(Venue{ID: 1, MIC: "XONE", OrderAddr: "ws://one", MarketDataAddr: "ws://one-md"}))

	assert.Error(t, r.Add(Venue{ID: 1, MIC: "XDUP", OrderAddr: "ws://dup", MarketDataAddr: "ws://dup-md"}))
	assert.Error(t, r.Add(Venue{ID: 0, MIC: "XZERO", OrderAddr: "ws://zero", MarketDataAddr: "ws://zero-md"}))
	assert.Error(t, r.Add(Venue{ID: 3, OrderAddr: "ws://three", MarketDataAddr: "ws://three-md"}))
}
