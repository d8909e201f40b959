package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"EmeraldAgent/internal/domain/models"

	"github.com/go-playground/validator/v10"
)

var schema *validator.Validate

func init() {
	schema = validator.New()
	schema.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Wire shapes of the engine response. Pointers distinguish absent fields from zero values.
type wireDecision struct {
	Direction  *string  `json:"direction" validate:"required,oneof=YES NO"`
	Confidence *float64 `json:"confidence" validate:"required"`
	Size       *float64 `json:"size" validate:"required,gte=0"`
	Reasoning  *string  `json:"reasoning" validate:"required"`
}

type wireConsensus struct {
	Direction *string  `json:"direction" validate:"required,oneof=YES NO"`
	Size      *float64 `json:"size" validate:"required,gte=0"`
	Reasoning *string  `json:"reasoning" validate:"required"`
}

type wireAgent struct {
	Agent    *string       `json:"agent" validate:"required,min=1"`
	Decision *wireDecision `json:"decision" validate:"required"`
}

type wireResponse struct {
	Status   *string        `json:"status" validate:"required,oneof=ok error"`
	Decision *wireConsensus `json:"decision"`
	Agents   []wireAgent    `json:"agents" validate:"dive"`
	Error    *string        `json:"error"`
}

// Encode serialises a decision request into the engine's stdin format.
func Encode(req *models.DecisionRequest) ([]byte, error) {
	if req == nil {
		return nil, errors.New("encode: nil request")
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

// Decode parses raw engine stdout into a validated DecisionResponse.
func Decode(out []byte) (*models.DecisionResponse, error) {
	payload, err := extractPayload(out)
	if err != nil {
		return nil, err
	}

	var w wireResponse
	if err := json.Unmarshal(payload, &w); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			field := te.Field
			if field == "" {
				field = "$"
			}
			return nil, schemaViolation(field, fmt.Sprintf("expected %s, got %s", te.Type, te.Value))
		}
		return nil, malformed(err)
	}

	if err := schema.Struct(&w); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, schemaViolation(trimNamespace(fe.Namespace()), describe(fe))
		}
		return nil, schemaViolation("$", err.Error())
	}

	switch models.ResponseStatus(*w.Status) {
	case models.StatusOK:
		if w.Decision == nil {
			return nil, schemaViolation("decision", "required when status is ok")
		}
		if w.Error != nil {
			return nil, schemaViolation("error", "must be absent when status is ok")
		}
		decision, agents := w.Decision.toModel(), toAgents(w.Agents)
		if err := checkDirections(decision, agents); err != nil {
			return nil, err
		}
		return models.OK(decision, agents), nil
	default:
		if w.Error == nil || *w.Error == "" {
			return nil, schemaViolation("error", "required when status is error")
		}
		if w.Decision != nil {
			return nil, schemaViolation("decision", "must be absent when status is error")
		}
		if w.Agents != nil {
			return nil, schemaViolation("agents", "must be absent when status is error")
		}
		return models.Failed(*w.Error), nil
	}
}

// extractPayload returns the JSON document in out. The engine may print progress
// lines before its result, so the last non-empty line is tried when the whole
// output is not a single document.
func extractPayload(out []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, malformed(errors.New("empty output"))
	}
	if json.Valid(trimmed) {
		return trimmed, nil
	}
	lines := bytes.Split(trimmed, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		if json.Valid(line) {
			return line, nil
		}
		break
	}
	return nil, malformed(errors.New("output is not valid JSON"))
}

func (c *wireConsensus) toModel() models.ConsensusDecision {
	return models.ConsensusDecision{
		Direction: models.Direction(*c.Direction),
		Size:      *c.Size,
		Reasoning: *c.Reasoning,
	}
}

// checkDirections guards the closed direction enum on the converted model.
func checkDirections(decision models.ConsensusDecision, agents []models.AgentOutput) *DecodeError {
	if !decision.Direction.Valid() {
		return schemaViolation("decision.direction", fmt.Sprintf("must be YES or NO, got %q", decision.Direction))
	}
	for i, a := range agents {
		if !a.Decision.Direction.Valid() {
			return schemaViolation(fmt.Sprintf("agents[%d].decision.direction", i), fmt.Sprintf("must be YES or NO, got %q", a.Decision.Direction))
		}
	}
	return nil
}

func toAgents(in []wireAgent) []models.AgentOutput {
	out := make([]models.AgentOutput, 0, len(in))
	for _, a := range in {
		d := a.Decision
		out = append(out, models.AgentOutput{
			Agent: *a.Agent,
			Decision: models.AgentDecision{
				Direction:  models.Direction(*d.Direction),
				Confidence: *d.Confidence,
				Size:       *d.Size,
				Reasoning:  *d.Reasoning,
			},
		})
	}
	return out
}

func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s, got %v", strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "min":
		return "must not be empty"
	default:
		return "failed validation: " + fe.Tag()
	}
}
