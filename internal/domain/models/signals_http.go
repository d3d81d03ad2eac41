package models

// Requests for engine HTTP endpoints. Defined in domain for consistency and reuse.

type EvaluateRequest struct {
	Symbol   string  `json:"symbol" validate:"required"`
	Class    string  `json:"class" default:"buy" validate:"oneof=buy sell oversold overbought"`
	Strength float64 `json:"strength" default:"0.5" validate:"gte=0,lte=1"`
	Price    float64 `json:"price" validate:"gte=0"`
	Volume   float64 `json:"volume" validate:"gte=0"`
}

type IndicatorsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type ResetRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

type DecisionsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" validate:"gte=0,lte=10000"`
}
