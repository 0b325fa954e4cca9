package settings

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TierKind selects how a fee tier derives the fee from a transaction.
type TierKind string

const (
	// TierRate charges Value as a fraction of the transaction amount.
	TierRate TierKind = "RATE"
	// TierFixed charges Value as a flat fee per transaction.
	TierFixed TierKind = "FIXED"
)

// FeeTier is one entry of the ordered fee rule table. A tier applies when the
// transaction's category code falls inside [CategoryFrom, CategoryTo] and its
// settlement date falls inside the validity window. A zero ValidFrom/ValidTo
// leaves that end of the window open. The first matching tier wins.
type FeeTier struct {
	Label        string
	CategoryFrom int64
	CategoryTo   int64
	ValidFrom    civil.Date
	ValidTo      civil.Date

	Kind  TierKind
	Value decimal.Decimal
}

// feeTierJSON is the stored shape of a tier. The window ends are pointers so
// an open end is absent from the payload; a zero civil.Date would render as
// "0000-00-00", which does not parse back.
type feeTierJSON struct {
	Label        string          `json:"label"`
	CategoryFrom int64           `json:"category_from"`
	CategoryTo   int64           `json:"category_to"`
	ValidFrom    *civil.Date     `json:"valid_from,omitempty"`
	ValidTo      *civil.Date     `json:"valid_to,omitempty"`
	Kind         TierKind        `json:"kind"`
	Value        decimal.Decimal `json:"value"`
}

func (t FeeTier) MarshalJSON() ([]byte, error) {
	out := feeTierJSON{
		Label:        t.Label,
		CategoryFrom: t.CategoryFrom,
		CategoryTo:   t.CategoryTo,
		Kind:         t.Kind,
		Value:        t.Value,
	}
	if t.ValidFrom.IsValid() {
		d := t.ValidFrom
		out.ValidFrom = &d
	}
	if t.ValidTo.IsValid() {
		d := t.ValidTo
		out.ValidTo = &d
	}
	return json.Marshal(out)
}

func (t *FeeTier) UnmarshalJSON(data []byte) error {
	var in feeTierJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = FeeTier{
		Label:        in.Label,
		CategoryFrom: in.CategoryFrom,
		CategoryTo:   in.CategoryTo,
		Kind:         in.Kind,
		Value:        in.Value,
	}
	if in.ValidFrom != nil {
		t.ValidFrom = *in.ValidFrom
	}
	if in.ValidTo != nil {
		t.ValidTo = *in.ValidTo
	}
	return nil
}

// Config is the single live calculation rule set. Every engine call receives
// an explicit snapshot of it; nothing reads shared mutable state. The stored
// copy is overwritten in place, so the latest rules apply retroactively on
// every read surface.
type Config struct {
	// Message types whose amount is forced to zero before fee calculation
	// (reversals and advice messages carry an amount that must not settle).
	ZeroAmountMessageTypes []string `json:"zero_amount_message_types"`

	// Ordered fee rule table; first match wins.
	FeeTiers []FeeTier `json:"fee_tiers"`

	// Fallback rate-of-amount when no tier matches.
	DefaultFeeRate decimal.Decimal `json:"default_fee_rate"`

	// Terminal-type values treated as point-of-sale, compared after
	// trimming and upper-casing.
	POSTerminalTypes []string `json:"pos_terminal_types"`

	// Acquirer split: share of the fee attributed to the acquirer.
	POSAcquirerRate   decimal.Decimal `json:"pos_acquirer_rate"`
	OtherAcquirerRate decimal.Decimal `json:"other_acquirer_rate"`

	// Absolute difference below which a reported confirmation value is
	// considered matched against the recomputed sum.
	MatchTolerance decimal.Decimal `json:"match_tolerance"`

	// Decimal places applied at presentation/export boundaries only.
	RoundingScale int32 `json:"rounding_scale"`

	UpdatedBy string `json:"updated_by,omitempty"`
}

// Default returns the rule set used before an operator has saved one.
func Default() Config {
	return Config{
		ZeroAmountMessageTypes: []string{"0420", "0421"},
		FeeTiers:               nil,
		DefaultFeeRate:         decimal.RequireFromString("0.0025"),
		POSTerminalTypes:       []string{"POS"},
		POSAcquirerRate:        decimal.RequireFromString("0.45"),
		OtherAcquirerRate:      decimal.RequireFromString("0.25"),
		MatchTolerance:         decimal.RequireFromString("0.01"),
		RoundingScale:          6,
	}
}

// Validate rejects rule sets that would break the engine's invariants,
// in particular fee >= 0 for every possible transaction.
func (c Config) Validate() error {
	if c.DefaultFeeRate.IsNegative() {
		return fmt.Errorf("settings: default_fee_rate must not be negative")
	}
	if c.DefaultFeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("settings: default_fee_rate %s is not a fraction", c.DefaultFeeRate)
	}
	for i, tier := range c.FeeTiers {
		if tier.Value.IsNegative() {
			return fmt.Errorf("settings: fee tier %d (%s): value must not be negative", i, tier.Label)
		}
		if tier.Kind != TierRate && tier.Kind != TierFixed {
			return fmt.Errorf("settings: fee tier %d (%s): unknown kind %q", i, tier.Label, tier.Kind)
		}
		if tier.Kind == TierRate && tier.Value.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("settings: fee tier %d (%s): rate %s is not a fraction", i, tier.Label, tier.Value)
		}
		if tier.CategoryTo < tier.CategoryFrom {
			return fmt.Errorf("settings: fee tier %d (%s): category range is inverted", i, tier.Label)
		}
		if tier.ValidFrom.IsValid() && tier.ValidTo.IsValid() && tier.ValidTo.Before(tier.ValidFrom) {
			return fmt.Errorf("settings: fee tier %d (%s): validity window is inverted", i, tier.Label)
		}
	}
	for _, rate := range []decimal.Decimal{c.POSAcquirerRate, c.OtherAcquirerRate} {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("settings: acquirer rates must be fractions in [0, 1]")
		}
	}
	if !c.MatchTolerance.IsPositive() {
		return fmt.Errorf("settings: match_tolerance must be positive")
	}
	if c.RoundingScale < 0 || c.RoundingScale > 9 {
		return fmt.Errorf("settings: rounding_scale must be between 0 and 9")
	}
	return nil
}

// IsPOSTerminal reports whether the raw terminal-type value counts as
// point-of-sale under this rule set.
func (c Config) IsPOSTerminal(terminalType string) bool {
	norm := strings.ToUpper(strings.TrimSpace(terminalType))
	for _, pos := range c.POSTerminalTypes {
		if norm == strings.ToUpper(strings.TrimSpace(pos)) {
			return true
		}
	}
	return false
}

// IsZeroAmountType reports whether the message type settles with a zero amount.
func (c Config) IsZeroAmountType(messageType string) bool {
	norm := strings.TrimSpace(messageType)
	for _, mt := range c.ZeroAmountMessageTypes {
		if norm == strings.TrimSpace(mt) {
			return true
		}
	}
	return false
}

// Matches reports whether the tier applies to the given category code and
// effective date. A nil category (non-numeric or absent code) never matches.
func (t FeeTier) Matches(categoryCode *int64, effective civil.Date) bool {
	if categoryCode == nil {
		return false
	}
	if *categoryCode < t.CategoryFrom || *categoryCode > t.CategoryTo {
		return false
	}
	if t.ValidFrom.IsValid() {
		if !effective.IsValid() || effective.Before(t.ValidFrom) {
			return false
		}
	}
	if t.ValidTo.IsValid() {
		if !effective.IsValid() || effective.After(t.ValidTo) {
			return false
		}
	}
	return true
}
