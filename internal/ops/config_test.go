package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalk/strategy/internal/schema"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"strategyId": "f16e8fc3-846e-43e5-a3bf-8728f42e7972",
		"symbols": ["EUR/USD", "USD/JPY"],
		"venues": [
			{"id": 1, "mic": "XONE", "orderAddr": "ws://one:9101", "marketDataAddr": "ws://one:9102"},
			{"id": 2, "mic": "XTWO", "orderAddr": "ws://two:9101", "marketDataAddr": "ws://two:9102", "useSyntheticCancelReplace": true}
		],
		"strategy": {
			"minCrossMagnitude": 100,
			"newOrderDelayMs": 250,
			"maxOrderLifetimeSec": 10,
			"maxOrderQty": 1000000,
			"warmupSec": 0.5
		},
		"journal": {"host": "db", "port": 5433, "user": "capk", "database": "uncross"}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "f16e8fc3-846e-43e5-a3bf-8728f42e7972", loaded.StrategyID.String())
	assert.Equal(t, []string{"EUR/USD", "USD/JPY"}, loaded.Symbols)

	require.Len(t, loaded.Venues.All(), 2)
	assert.False(t, loaded.Venues.UseSyntheticCancelReplace(1))
	assert.True(t, loaded.Venues.UseSyntheticCancelReplace(2))
	id, ok := loaded.Venues.IDByMIC("XONE")
	require.True(t, ok)
	assert.Equal(t, schema.VenueID(1), id)

	assert.Equal(t, 100.0, loaded.Params.MinCrossMagnitude)
	assert.Equal(t, 250*time.Millisecond, loaded.Params.NewOrderDelay)
	assert.Equal(t, 10*time.Second, loaded.Params.MaxOrderLifetime)
	assert.Equal(t, 1e6, loaded.Params.MaxOrderQty)
	assert.Equal(t, 500*time.Millisecond, loaded.Params.WarmupWindow)

	require.NotNil(t, loaded.Journal)
	assert.Equal(t, "db", loaded.Journal.Host)
	assert.Equal(t, 5433, loaded.Journal.Port)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"symbols": ["EUR/USD"],
		"venues": [{"id": 1, "mic": "XONE", "orderAddr": "ws://one:9101", "marketDataAddr": "ws://one:9102"}]
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	// omitted id gets a random one
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", loaded.StrategyID.String())
	assert.Equal(t, 5*time.Second, loaded.Params.MaxOrderLifetime)
	assert.Equal(t, 1e8, loaded.Params.MaxOrderQty)
	assert.Equal(t, time.Second, loaded.Params.WarmupWindow)
	assert.Nil(t, loaded.Journal)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{not json`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"symbols": ["EUR/USD"], "venues": []}`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{
		"symbols": [],
		"venues": [{"id": 1, "mic": "XONE", "orderAddr": "a", "marketDataAddr": "b"}]
	}`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{
		"strategyId": "not-a-uuid",
		"symbols": ["EUR/USD"],
		"venues": [{"id": 1, "mic": "XONE", "orderAddr": "a", "marketDataAddr": "b"}]
	}`))
	assert.Error(t, err)
}
