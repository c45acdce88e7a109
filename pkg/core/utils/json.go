package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/go-playground/validator/v10"
	hjson "github.com/hjson/hjson-go/v4"
)

var validate = validator.New()

// RepairJSON attempts to fix common JSON errors from LLM outputs: unquoted
// keys, single quotes, trailing commas, unclosed brackets and code fences.
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(jsonBytes), nil
}

// StripCodeFence removes a single surrounding ``` block (with or without a
// language tag).
func StripCodeFence(input string) string {
	s := strings.TrimSpace(input)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}

// SmartParse tries multiple parsing strategies to extract valid JSON.
// Order of attempts:
// 1. Standard JSON parse
// 2. JSON repair
// 3. Hjson parse (most lenient)
//
// When schema is a struct pointer carrying `validate` tags, the decoded value
// must also pass validation.
func SmartParse(input string, schema interface{}) (string, error) {
	candidates := []func(string) (string, error){
		func(s string) (string, error) { return StripCodeFence(s), nil },
		RepairJSON,
		ParseHJSON,
	}

	var lastErr error
	for _, try := range candidates {
		out, err := try(input)
		if err != nil {
			lastErr = err
			continue
		}
		if err := json.Unmarshal([]byte(out), schema); err != nil {
			lastErr = err
			continue
		}
		if err := validateIfStruct(schema); err != nil {
			return out, fmt.Errorf("JSON_SCHEMA_VIOLATION: %w", err)
		}
		return out, nil
	}
	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input: %v", lastErr)
}

func validateIfStruct(v interface{}) error {
	err := validate.Struct(v)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		return nil
	}
	return err
}
