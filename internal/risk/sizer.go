package risk

// SizerConfig sets the base and ceiling position fractions.
type SizerConfig struct {
	BaseSizePct float64 `yaml:"base_size_pct"`
	MaxSizePct  float64 `yaml:"max_size_pct"`
}

func DefaultSizerConfig() SizerConfig {
	return SizerConfig{BaseSizePct: 12, MaxSizePct: 20}
}

// PositionSize is the sizing decision with the audit trail of which
// reductions applied.
type PositionSize struct {
	BaseSize           float64 `json:"base_size"`
	ConvictionAdjusted float64 `json:"conviction_adjusted"`
	FinalSize          float64 `json:"final_size"`

	VolatilityReduced bool `json:"volatility_reduced"`
	DrawdownReduced   bool `json:"drawdown_reduced"`
	MonteCarloReduced bool `json:"monte_carlo_reduced"`
	Capped            bool `json:"capped"`
}

// ComputeSize builds the final position size from the conviction composite
// and the three risk multipliers. The result is never negative and never
// exceeds MaxSizePct of bankroll no matter how large the conviction
// multiplier grows.
func ComputeSize(bankroll, conviction, volScaler, ddMultiplier, mcFactor float64, cfg SizerConfig) PositionSize {
	def := DefaultSizerConfig()
	if cfg.BaseSizePct <= 0 {
		cfg.BaseSizePct = def.BaseSizePct
	}
	if cfg.MaxSizePct <= 0 {
		cfg.MaxSizePct = def.MaxSizePct
	}

	ps := PositionSize{
		BaseSize:          bankroll * cfg.BaseSizePct / 100,
		VolatilityReduced: volScaler < 1,
		DrawdownReduced:   ddMultiplier < 1,
		MonteCarloReduced: mcFactor < 1,
	}
	ps.ConvictionAdjusted = ps.BaseSize * (1 + 0.5*conviction)

	size := ps.ConvictionAdjusted * volScaler * ddMultiplier * mcFactor
	if size < 0 {
		size = 0
	}
	ceiling := bankroll * cfg.MaxSizePct / 100
	if size > ceiling {
		size = ceiling
		ps.Capped = true
	}
	ps.FinalSize = size
	return ps
}
