// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package clipsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	opensearchapi "github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/pkg/commons"
)

// OpenSearchClient queries a kNN/semantic index of clip captions. Retries
// up to 2x with 200ms backoff on SearchUnavailable, per spec §4.3.
type OpenSearchClient struct {
	log   commons.Logger
	es    *opensearch.Client
	index string

	RetryAttempts int
	RetryBackoff  time.Duration
}

// NewOpenSearchClient builds a client against the given OpenSearch endpoint.
func NewOpenSearchClient(log commons.Logger, endpoint, index string) (*OpenSearchClient, error) {
	es, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{endpoint},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", commons.ErrSearchUnavailable, err)
	}
	return &OpenSearchClient{
		log:           log,
		es:            es,
		index:         index,
		RetryAttempts: 2,
		RetryBackoff:  200 * time.Millisecond,
	}, nil
}

type clipDoc struct {
	ClipID       string  `json:"clip_id"`
	SourceURI    string  `json:"source_uri"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Caption      string  `json:"caption"`
}

// Search runs a multi-match query over clip captions. An empty query
// returns an empty slice without touching the network, per spec §4.3.
func (c *OpenSearchClient) Search(ctx context.Context, query string, topK int) ([]domain.ClipCandidate, error) {
	if query == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}

	body := map[string]interface{}{
		"size": topK,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"caption^2", "transcript"},
			},
		},
	}
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.RetryAttempts; attempt++ {
		candidates, err := c.doSearch(ctx, buf.Bytes())
		if err == nil {
			return candidates, nil
		}
		lastErr = err
		if attempt < c.RetryAttempts {
			time.Sleep(c.RetryBackoff)
		}
	}
	return nil, fmt.Errorf("%w: %v", commons.ErrSearchUnavailable, lastErr)
}

func (c *OpenSearchClient) doSearch(ctx context.Context, body []byte) ([]domain.ClipCandidate, error) {
	req := opensearchapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("opensearch returned status %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source clipDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]domain.ClipCandidate, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, domain.ClipCandidate{
			ClipID:       h.Source.ClipID,
			SourceURI:    h.Source.SourceURI,
			StartSeconds: h.Source.StartSeconds,
			EndSeconds:   h.Source.EndSeconds,
			Caption:      h.Source.Caption,
			Score:        h.Score,
		})
	}
	return out, nil
}
