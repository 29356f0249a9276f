package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParametersValid(t *testing.T) {
	p := DefaultParameters()
	require.NoError(t, p.Validate())
	assert.Equal(t, "HWTR", p.BaseAsset())
	assert.Equal(t, "USDC", p.QuoteAsset())
}

func TestParametersValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Parameters)
		field  string
	}{
		{"empty symbol", func(p *Parameters) { p.Symbol = "" }, "symbol"},
		{"symbol without quote", func(p *Parameters) { p.Symbol = "HWTRUSDC" }, "symbol"},
		{"zero min size", func(p *Parameters) { p.MinOrderSize = 0 }, "minOrderSize"},
		{"max below min", func(p *Parameters) { p.MaxOrderSize = 10 }, "maxOrderSize"},
		{"zero use pct", func(p *Parameters) { p.PositionUsePct = 0 }, "positionUsePct"},
		{"use pct above one", func(p *Parameters) { p.PositionUsePct = 1.01 }, "positionUsePct"},
		{"zero tick", func(p *Parameters) { p.TickSize = 0 }, "tickSize"},
		{"negative min offset", func(p *Parameters) { p.MinOffset = -0.1 }, "minOffset"},
		{"initial below min", func(p *Parameters) { p.InitialOffset = 0.00001 }, "initialOffset"},
		{"initial offset one", func(p *Parameters) { p.InitialOffset = 1 }, "initialOffset"},
		{"negative reduction", func(p *Parameters) { p.OffsetReduction = -0.001 }, "offsetReduction"},
		{"refresh zero", func(p *Parameters) { p.OrderRefreshTimeSeconds = 0 }, "orderRefreshTime"},
		{"refresh too long", func(p *Parameters) { p.OrderRefreshTimeSeconds = 61 }, "orderRefreshTime"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParameters()
			tc.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestParametersBoundaries(t *testing.T) {
	p := DefaultParameters()
	p.PositionUsePct = 1
	p.MaxOrderSize = p.MinOrderSize
	p.MinOffset = 0
	p.InitialOffset = 0
	p.OffsetReduction = 0
	p.OrderRefreshTimeSeconds = 60
	assert.NoError(t, p.Validate())
	p.OrderRefreshTimeSeconds = 1
	assert.NoError(t, p.Validate())
}

func TestSplitSymbol(t *testing.T) {
	base, quote, err := SplitSymbol(" hwtr-usdc ")
	require.NoError(t, err)
	assert.Equal(t, "HWTR", base)
	assert.Equal(t, "USDC", quote)

	_, _, err = SplitSymbol("HWTR/")
	assert.Error(t, err)
	_, _, err = SplitSymbol("A/B/C")
	assert.Error(t, err)
}
