package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/majlis/internal/extract"
	"github.com/xeipuuv/gojsonschema"
)

// Parse errors. Plan treats all of them as a reason to fall back.
var (
	ErrNoPayload   = errors.New("planner: no JSON object in response")
	ErrInvalidPlan = errors.New("planner: plan does not match schema")
	ErrEmptyPlan   = errors.New("planner: plan has no steps")
)

const planSchemaJSON = `{
  "type": "object",
  "required": ["steps"],
  "properties": {
    "steps": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

var planSchema = mustSchema(planSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("planner: compiling schema: %v", err))
	}
	return s
}

// Parse extracts the ordered step list from a model response. It first
// tries the whole response (minus a surrounding code fence) as JSON, then
// the first balanced object in it that parses as JSON. Blank steps are
// dropped.
func Parse(raw string) ([]string, error) {
	payload := extract.StripFence(raw)
	if !json.Valid([]byte(payload)) || !strings.HasPrefix(payload, "{") {
		obj, ok := extract.Object(raw)
		if !ok {
			return nil, ErrNoPayload
		}
		payload = obj
	}

	result, err := planSchema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(msgs, "; "))
	}

	var plan struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	steps := plan.Steps[:0]
	for _, s := range plan.Steps {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	if len(steps) == 0 {
		return nil, ErrEmptyPlan
	}
	return steps, nil
}
