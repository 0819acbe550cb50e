package llm

// Budget estimates how many output tokens a request can afford.
type Budget struct {
	Floor         int
	Ceiling       int
	Total         int
	CharsPerToken float64
}

const (
	DefaultFloorTokens   = 1024
	DefaultCeilingTokens = 8192
	DefaultTotalTokens   = 128000
	DefaultCharsPerToken = 4.0
)

// WithDefaults fills unset fields and keeps Floor <= Ceiling.
func (b Budget) WithDefaults() Budget {
	if b.Floor <= 0 {
		b.Floor = DefaultFloorTokens
	}
	if b.Ceiling <= 0 {
		b.Ceiling = DefaultCeilingTokens
	}
	if b.Total <= 0 {
		b.Total = DefaultTotalTokens
	}
	if b.CharsPerToken <= 0 {
		b.CharsPerToken = DefaultCharsPerToken
	}
	if b.Floor > b.Ceiling {
		b.Floor = b.Ceiling
	}
	return b
}

// EstimateTokens converts a prompt length to tokens, rounding up.
func (b Budget) EstimateTokens(promptChars int) int {
	b = b.WithDefaults()
	if promptChars <= 0 {
		return 0
	}
	n := int(float64(promptChars) / b.CharsPerToken)
	if float64(n)*b.CharsPerToken < float64(promptChars) {
		n++
	}
	return n
}

// Allowance is max(Floor, min(Ceiling, Total - estimated prompt tokens)).
func (b Budget) Allowance(promptChars int) int {
	b = b.WithDefaults()
	remaining := b.Total - b.EstimateTokens(promptChars)
	return max(b.Floor, min(b.Ceiling, remaining))
}

// Clamp reconciles a caller's requested output budget with the allowance.
// A positive request below the allowance wins but never drops under Floor.
func (b Budget) Clamp(requested, promptChars int) int {
	b = b.WithDefaults()
	allowance := b.Allowance(promptChars)
	if requested <= 0 || requested >= allowance {
		return allowance
	}
	return max(b.Floor, requested)
}
