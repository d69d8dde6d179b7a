// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package embedclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

// HTTPModel is a Model backed by an external embedding server reachable
// over HTTP, grounded on philippgille-chromem-go's NewEmbeddingFuncOllama
// (JSON request/response over an http.Client whose Timeout is
// HTTPModelConfig.Timeout, 30s when unset). It satisfies
// spec §1's "embedding model is an external collaborator: a function
// text -> unit-norm vector" contract without the engine ever assuming
// a particular model or provider.
type HTTPModel struct {
	baseURL string
	model   string
	client  *http.Client
}

// HTTPModelConfig configures an HTTPModel.
type HTTPModelConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewHTTPModel builds an HTTPModel. BaseURL must point at a server
// exposing POST {base}/embeddings accepting {"model","input"} and
// returning {"embedding": [...]}.
func NewHTTPModel(cfg HTTPModelConfig) *HTTPModel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPModel{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed calls the embedding server and normalizes the returned vector
// into an embedding.Embedding, re-validating the unit-norm invariant
// at the boundary since the server is untrusted external input.
func (m *HTTPModel) Embed(ctx context.Context, text string) (embedding.Embedding, error) {
	body, err := json.Marshal(embedRequest{Model: m.model, Input: text})
	if err != nil {
		return embedding.Embedding{}, fmt.Errorf("embedclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return embedding.Embedding{}, fmt.Errorf("embedclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return embedding.Embedding{}, fmt.Errorf("embedclient: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return embedding.Embedding{}, fmt.Errorf("embedclient: embedding server returned %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return embedding.Embedding{}, fmt.Errorf("embedclient: read response: %w", err)
	}

	var out embedResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return embedding.Embedding{}, fmt.Errorf("embedclient: decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return embedding.Embedding{}, fmt.Errorf("embedclient: embedding server returned no vector")
	}

	return embedding.New(out.Embedding)
}

var _ Model = (*HTTPModel)(nil)
