package sso

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Helper functions to safely extract values from a decoded JSON object.
// They accept a nil map.

func stringValue(data map[string]any, key string) string {
	if val, ok := data[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return ""
}

// idValue reads an identifier that providers send either as a string or as
// a JSON number.
func idValue(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

// fullName joins given and family name with a single space. Missing parts
// count as empty strings.
func fullName(data map[string]any, givenKey, familyKey string) string {
	given := stringValue(data, givenKey)
	family := stringValue(data, familyKey)
	if given == "" && family == "" {
		return ""
	}
	return given + " " + family
}

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
