// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package llm

import (
	"context"
	"errors"
)

// Fake is a scriptable Model double for pipeline tests.
type Fake struct {
	Responses []Response
	Err       error
	calls     int
}

func NewFake(responses ...Response) *Fake {
	return &Fake{Responses: responses}
}

func (f *Fake) Complete(ctx context.Context, turns []Turn) (Response, error) {
	if f.Err != nil {
		return Response{}, f.Err
	}
	if f.calls >= len(f.Responses) {
		return Response{}, errors.New("fake model: no more scripted responses")
	}
	r := f.Responses[f.calls]
	f.calls++
	return r, nil
}

// Calls reports how many times Complete was invoked.
func (f *Fake) Calls() int {
	return f.calls
}
