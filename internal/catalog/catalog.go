// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Configuration constants for model listing.
const (
	// DefaultTimeout bounds the whole list request.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared HTTP client for all model-list requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// ListError reports a failed model-list request: either a non-2xx HTTP
// status or a response that could not be parsed.
type ListError struct {
	Status int    // HTTP status; 0 for parse or transport failures
	Reason string // best-effort detail
}

// Error implements the error interface.
func (e *ListError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("model list failed: HTTP %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("model list failed: %s", e.Reason)
}

// =============================================================================
// MODEL INFO
// =============================================================================

// ModelInfo is one available model plus its confirmed capabilities.
type ModelInfo struct {
	ID                string `json:"id"`
	SupportsImages    bool   `json:"supports_images"`
	SupportsReasoning bool   `json:"supports_reasoning"`
}

// modelListResponse mirrors the OpenAI-compatible /models payload.
type modelListResponse struct {
	Data []modelMetadata `json:"data"`
}

type modelMetadata struct {
	ID                  string   `json:"id"`
	SupportedParameters []string `json:"supported_parameters"`
	Architecture        struct {
		InputModalities []string `json:"input_modalities"`
	} `json:"architecture"`
}

// inferCapabilities derives capability flags from provider metadata.
func inferCapabilities(m modelMetadata) ModelInfo {
	info := ModelInfo{ID: m.ID}
	for _, p := range m.SupportedParameters {
		if p == "reasoning" {
			info.SupportsReasoning = true
			break
		}
	}
	for _, mod := range m.Architecture.InputModalities {
		if mod == "image" {
			info.SupportsImages = true
			break
		}
	}
	return info
}

// =============================================================================
// LISTING
// =============================================================================

// ListModels fetches the models an endpoint offers. The URL must be the
// provider's model-listing endpoint; authentication uses a bearer key.
// Failures come back as a *ListError carrying the HTTP status or the
// parse-failure reason.
func ListModels(ctx context.Context, listURL, apiKey string) ([]ModelInfo, error) {
	return listModels(ctx, sharedHTTPClient, listURL, apiKey)
}

func listModels(ctx context.Context, client *http.Client, listURL, apiKey string) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, &ListError{Reason: err.Error()}
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ListError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, &ListError{Reason: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ListError{Status: resp.StatusCode, Reason: resp.Status}
	}

	var parsed modelListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ListError{Reason: "invalid model list payload: " + err.Error()}
	}

	models := make([]ModelInfo, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if m.ID == "" {
			continue
		}
		models = append(models, inferCapabilities(m))
	}
	return models, nil
}

// Lookup finds a model by ID in a listed set. Unknown IDs are still usable
// as custom models; callers get zero-valued capability flags for them.
func Lookup(models []ModelInfo, id string) (ModelInfo, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{ID: id}, false
}
