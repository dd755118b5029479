// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package clipsearch

import (
	"context"

	"github.com/rapidaai/clipcast/internal/domain"
)

// Fake is a scriptable Client double for pipeline tests.
type Fake struct {
	Results map[string][]domain.ClipCandidate
	Err     error
}

func NewFake() *Fake {
	return &Fake{Results: make(map[string][]domain.ClipCandidate)}
}

func (f *Fake) Search(ctx context.Context, query string, topK int) ([]domain.ClipCandidate, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if query == "" {
		return nil, nil
	}
	results := f.Results[query]
	if len(results) > topK && topK > 0 {
		results = results[:topK]
	}
	return results, nil
}
