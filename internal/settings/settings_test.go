package settings

import (
	"encoding/json"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults pass", func(c *Config) {}, true},
		{"negative default rate", func(c *Config) { c.DefaultFeeRate = dec("-0.1") }, false},
		{"default rate above one", func(c *Config) { c.DefaultFeeRate = dec("1.5") }, false},
		{"zero tolerance", func(c *Config) { c.MatchTolerance = decimal.Zero }, false},
		{"negative tolerance", func(c *Config) { c.MatchTolerance = dec("-0.01") }, false},
		{"rounding scale too large", func(c *Config) { c.RoundingScale = 12 }, false},
		{"acquirer rate above one", func(c *Config) { c.POSAcquirerRate = dec("1.2") }, false},
		{
			"valid tier",
			func(c *Config) {
				c.FeeTiers = []FeeTier{{Label: "t", CategoryFrom: 1, CategoryTo: 10, Kind: TierRate, Value: dec("0.01")}}
			},
			true,
		},
		{
			"tier with negative value",
			func(c *Config) {
				c.FeeTiers = []FeeTier{{Label: "t", CategoryFrom: 1, CategoryTo: 10, Kind: TierRate, Value: dec("-0.01")}}
			},
			false,
		},
		{
			"tier with unknown kind",
			func(c *Config) {
				c.FeeTiers = []FeeTier{{Label: "t", CategoryFrom: 1, CategoryTo: 10, Kind: "PERCENT", Value: dec("0.01")}}
			},
			false,
		},
		{
			"tier with inverted category range",
			func(c *Config) {
				c.FeeTiers = []FeeTier{{Label: "t", CategoryFrom: 10, CategoryTo: 1, Kind: TierRate, Value: dec("0.01")}}
			},
			false,
		},
		{
			"tier with inverted validity window",
			func(c *Config) {
				c.FeeTiers = []FeeTier{{
					Label: "t", CategoryFrom: 1, CategoryTo: 10,
					ValidFrom: civil.Date{Year: 2026, Month: 6, Day: 30},
					ValidTo:   civil.Date{Year: 2026, Month: 6, Day: 1},
					Kind:      TierRate, Value: dec("0.01"),
				}}
			},
			false,
		},
		{
			"fixed tier value above one is fine",
			func(c *Config) {
				c.FeeTiers = []FeeTier{{Label: "t", CategoryFrom: 1, CategoryTo: 10, Kind: TierFixed, Value: dec("7.50")}}
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIsPOSTerminal(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsPOSTerminal("POS"))
	assert.True(t, cfg.IsPOSTerminal(" pos "))
	assert.False(t, cfg.IsPOSTerminal("ATM"))
	assert.False(t, cfg.IsPOSTerminal(""))
}

func TestIsZeroAmountType(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsZeroAmountType("0420"))
	assert.True(t, cfg.IsZeroAmountType(" 0421 "))
	assert.False(t, cfg.IsZeroAmountType("0200"))
}

func TestFeeTierMatches(t *testing.T) {
	jun := civil.Date{Year: 2026, Month: 6, Day: 15}
	tier := FeeTier{
		CategoryFrom: 5000, CategoryTo: 5999,
		ValidFrom: civil.Date{Year: 2026, Month: 6, Day: 1},
		ValidTo:   civil.Date{Year: 2026, Month: 6, Day: 30},
	}

	in := int64(5411)
	out := int64(4111)

	assert.True(t, tier.Matches(&in, jun))
	assert.False(t, tier.Matches(&out, jun))
	assert.False(t, tier.Matches(nil, jun))
	assert.False(t, tier.Matches(&in, civil.Date{Year: 2026, Month: 7, Day: 1}))
	assert.False(t, tier.Matches(&in, civil.Date{}), "windowed tier cannot match an unknown date")

	open := FeeTier{CategoryFrom: 5000, CategoryTo: 5999}
	assert.True(t, open.Matches(&in, civil.Date{}), "open window matches any date, known or not")
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.FeeTiers = []FeeTier{
		{
			Label: "promo", CategoryFrom: 5000, CategoryTo: 5999,
			ValidFrom: civil.Date{Year: 2026, Month: 6, Day: 1},
			Kind:      TierRate, Value: dec("0.001"),
		},
		{
			Label: "flat", CategoryFrom: 6000, CategoryTo: 6999,
			Kind: TierFixed, Value: dec("7.5"),
		},
	}

	payload, err := json.Marshal(cfg)
	require.NoError(t, err)

	// Open window ends are absent from the payload. A zero civil.Date would
	// serialize as "0000-00-00" and never parse back.
	assert.NotContains(t, string(payload), "0000-00-00")
	assert.NotContains(t, string(payload), `"valid_from":null`)

	var got Config
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Len(t, got.FeeTiers, 2)
	assert.True(t, got.DefaultFeeRate.Equal(cfg.DefaultFeeRate))
	assert.True(t, got.FeeTiers[0].Value.Equal(cfg.FeeTiers[0].Value))
	assert.Equal(t, cfg.FeeTiers[0].ValidFrom, got.FeeTiers[0].ValidFrom)
	assert.False(t, got.FeeTiers[0].ValidTo.IsValid(), "open upper end stays open")
	assert.False(t, got.FeeTiers[1].ValidFrom.IsValid())
	assert.False(t, got.FeeTiers[1].ValidTo.IsValid())
	assert.Equal(t, "flat", got.FeeTiers[1].Label)
}
