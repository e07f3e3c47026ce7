package humastar

import (
	"encoding/json"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// Signals is the flat JSON object Datastar posts with every action.
type Signals map[string]any

// ParseSignals decodes a request body. An empty body yields no signals.
func ParseSignals(body []byte) (Signals, error) {
	if len(body) == 0 {
		return Signals{}, nil
	}
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

func (s Signals) String(key string) string {
	if str, ok := s[key].(string); ok {
		return str
	}
	return ""
}

// Float returns a numeric signal. Bound inputs may post numbers as strings;
// those are parsed too. Missing or malformed values are 0.
func (s Signals) Float(key string) float64 {
	switch v := s[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// Number is Float for required values: ok is false when key is missing or
// holds neither a number nor a numeric string.
func (s Signals) Number(key string) (float64, bool) {
	switch v := s[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func (s Signals) Int(key string) int {
	return int(s.Float(key))
}

// SignalsInput receives the raw body of a Datastar action.
type SignalsInput struct {
	RawBody []byte
}

// MustParse parses the signals or returns a 400.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
