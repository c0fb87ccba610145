// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"errors"
	"fmt"
)

// ErrUnknownParam indicates a generation parameter outside the closed set.
var ErrUnknownParam = errors.New("unknown generation parameter")

// recognized reasoning effort levels.
var reasoningEfforts = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// =============================================================================
// GENERATION PARAMETERS
// =============================================================================

// Params is the closed set of recognized generation parameters. Nil pointer
// fields are omitted from request bodies, never sent as null.
type Params struct {
	Model string

	Temperature      *float64
	TopP             *float64
	TopK             *int
	MaxTokens        *int
	FrequencyPenalty *float64

	// ReasoningEffort is "" (omitted) or one of low/medium/high. Its wire
	// name differs per provider family.
	ReasoningEffort string

	SystemPrompt string
}

// ParamsFromMap builds Params from a free-form parameter table, validating
// every key against the closed set at construction time. Unknown keys are
// an error rather than being forwarded blindly to the provider.
func ParamsFromMap(model string, raw map[string]any) (Params, error) {
	p := Params{Model: model}

	for key, value := range raw {
		switch key {
		case "temperature":
			f, err := toFloat(key, value)
			if err != nil {
				return Params{}, err
			}
			p.Temperature = &f
		case "top_p":
			f, err := toFloat(key, value)
			if err != nil {
				return Params{}, err
			}
			p.TopP = &f
		case "top_k":
			n, err := toInt(key, value)
			if err != nil {
				return Params{}, err
			}
			p.TopK = &n
		case "max_tokens":
			n, err := toInt(key, value)
			if err != nil {
				return Params{}, err
			}
			p.MaxTokens = &n
		case "frequency_penalty":
			f, err := toFloat(key, value)
			if err != nil {
				return Params{}, err
			}
			p.FrequencyPenalty = &f
		case "reasoning_effort":
			s, ok := value.(string)
			if !ok || !reasoningEfforts[s] {
				return Params{}, fmt.Errorf("%w: reasoning_effort must be low, medium, or high", ErrUnknownParam)
			}
			p.ReasoningEffort = s
		case "system_prompt":
			s, ok := value.(string)
			if !ok {
				return Params{}, fmt.Errorf("%w: system_prompt must be a string", ErrUnknownParam)
			}
			p.SystemPrompt = s
		default:
			return Params{}, fmt.Errorf("%w: %q", ErrUnknownParam, key)
		}
	}

	return p, nil
}

// toFloat converts TOML/JSON numeric decodings to float64.
func toFloat(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %s must be a number", ErrUnknownParam, key)
}

// toInt converts TOML/JSON numeric decodings to int.
func toInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: %s must be an integer", ErrUnknownParam, key)
}
