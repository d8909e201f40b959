package models

// Inbound decision requests. Shared by the HTTP and Kafka transports.

type MarketData struct {
	Symbol    string   `json:"symbol" validate:"required"`
	Price     float64  `json:"price"`
	Volume24h *float64 `json:"volume24h,omitempty"`
	MarketCap *float64 `json:"marketCap,omitempty"`
}

// AgentData carries opaque analytical blobs. Their contents are never inspected here.
type AgentData struct {
	Portfolio      map[string]any   `json:"portfolio,omitempty"`
	MarketData     map[string]any   `json:"marketData,omitempty"`
	HistoricalData []map[string]any `json:"historicalData,omitempty"`
	Sentiment      map[string]any   `json:"sentiment,omitempty"`
}

type DecisionRequest struct {
	Market *MarketData `json:"market" validate:"required"`
	Data   *AgentData  `json:"data" validate:"required"`
}
