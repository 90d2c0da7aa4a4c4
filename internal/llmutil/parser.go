// File: internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	json "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
)

var (
	// Regex definitions use \x60 for backticks because Go raw strings cannot
	// contain backticks.

	// fencedJSONRegex extracts a JSON object or array wrapped in a markdown fence.
	fencedJSONRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*([{\\[].*[}\\]])\\s*\x60\x60\x60")
)

// ExtractJSON pulls the JSON payload out of a raw model reply, stripping
// markdown fences and surrounding conversational text.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		if matches := fencedJSONRegex.FindStringSubmatch(response); len(matches) > 1 {
			return matches[1]
		}
	}

	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}

	// The model wrapped the structure in prose; take the widest bracket span.
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		first := strings.Index(response, pair[0])
		last := strings.LastIndex(response, pair[1])
		if first != -1 && last > first {
			return response[first : last+1]
		}
	}
	return response
}

// ParseJSONResponse parses a model reply into a target Go type. It tolerates
// markdown wrapping and, as a last resort, runs the payload through jsonrepair
// to recover from truncated or sloppily quoted model output.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := ExtractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err == nil {
		return &result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(payload)
	if repairErr != nil {
		return nil, fmt.Errorf("model reply is not valid JSON and could not be repaired: %w (payload: %s)", repairErr, truncate(payload, 300))
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal repaired model reply: %w (payload: %s)", err, truncate(repaired, 300))
	}
	return &result, nil
}

// truncate shortens a payload for an error message without splitting a
// multi-byte rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
