package models

import "encoding/json"

// Direction is the side of a decision. Only YES and NO are valid.
type Direction string

const (
	DirectionYes Direction = "YES"
	DirectionNo  Direction = "NO"
)

// Valid reports whether d is one of the two allowed directions.
func (d Direction) Valid() bool {
	return d == DirectionYes || d == DirectionNo
}

type ResponseStatus string

const (
	StatusOK    ResponseStatus = "ok"
	StatusError ResponseStatus = "error"
)

type AgentDecision struct {
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Size       float64   `json:"size"`
	Reasoning  string    `json:"reasoning"`
}

type AgentOutput struct {
	Agent    string        `json:"agent"`
	Decision AgentDecision `json:"decision"`
}

// ConsensusDecision is the single outcome reconciled by the engine from all agent outputs.
type ConsensusDecision struct {
	Direction Direction `json:"direction"`
	Size      float64   `json:"size"`
	Reasoning string    `json:"reasoning"`
}

// DecisionResponse is either an ok result (Decision + Agents) or an error result (Error).
// Only one variant is ever populated; the engine codec guarantees it for decoded values.
type DecisionResponse struct {
	Status   ResponseStatus
	Decision *ConsensusDecision
	Agents   []AgentOutput
	Error    string
}

// OK builds a successful response. A nil agents slice is normalised to empty.
func OK(decision ConsensusDecision, agents []AgentOutput) *DecisionResponse {
	if agents == nil {
		agents = []AgentOutput{}
	}
	return &DecisionResponse{Status: StatusOK, Decision: &decision, Agents: agents}
}

// Failed builds an engine-reported error response.
func Failed(msg string) *DecisionResponse {
	return &DecisionResponse{Status: StatusError, Error: msg}
}

func (r DecisionResponse) MarshalJSON() ([]byte, error) {
	if r.Status == StatusError {
		return json.Marshal(struct {
			Status ResponseStatus `json:"status"`
			Error  string         `json:"error"`
		}{r.Status, r.Error})
	}
	agents := r.Agents
	if agents == nil {
		agents = []AgentOutput{}
	}
	return json.Marshal(struct {
		Status   ResponseStatus     `json:"status"`
		Decision *ConsensusDecision `json:"decision"`
		Agents   []AgentOutput      `json:"agents"`
	}{r.Status, r.Decision, agents})
}
