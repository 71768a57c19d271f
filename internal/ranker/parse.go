package ranker

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Ranking is one usable entry of an oracle response.
type Ranking struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ParseRanking reads the oracle's raw text as a JSON array of
// {name, confidence} objects. Elements that are not objects, or that lack
// either field, are skipped. Any other problem with the payload yields nil.
// Confidences are clamped to [0,1].
func ParseRanking(raw string) []Ranking {
	text := stripCodeFence(strings.TrimSpace(raw))

	var items []json.RawMessage
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&items); err != nil {
		return nil
	}

	rankings := make([]Ranking, 0, len(items))
	for _, item := range items {
		var obj map[string]json.RawMessage
		if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) || json.Unmarshal(item, &obj) != nil {
			continue
		}
		rawName, hasName := obj["name"]
		rawConf, hasConf := obj["confidence"]
		if !hasName || !hasConf {
			continue
		}

		var name string
		if err := json.Unmarshal(rawName, &name); err != nil {
			continue
		}
		conf, ok := coerceConfidence(rawConf)
		if !ok {
			return nil
		}
		rankings = append(rankings, Ranking{Name: name, Confidence: conf})
	}
	return rankings
}

// coerceConfidence accepts a JSON number or a numeric string.
func coerceConfidence(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return math.Max(0, math.Min(1, f)), true
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
