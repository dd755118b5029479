// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// Context holds the running conversation bounded to the last N turns (spec
// §4.4 step 3), evicting the oldest turns by token budget rather than pure
// turn count once the configured limit is exceeded.
type Context struct {
	maxTurns  int
	maxTokens int
	enc       *tiktoken.Tiktoken

	turns []Turn
}

// NewContext builds a Context retaining at most maxTurns turns and never
// exceeding maxTokens of encoded content across them.
func NewContext(maxTurns, maxTokens int) *Context {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &Context{maxTurns: maxTurns, maxTokens: maxTokens, enc: enc}
}

// Append adds t to the context, then evicts the oldest turns until both the
// turn-count and token-count budgets are satisfied.
func (c *Context) Append(t Turn) {
	c.turns = append(c.turns, t)
	c.truncate()
}

func (c *Context) truncate() {
	for len(c.turns) > c.maxTurns {
		c.turns = c.turns[1:]
	}
	if c.maxTokens <= 0 {
		return
	}
	for c.tokenCount() > c.maxTokens && len(c.turns) > 1 {
		c.turns = c.turns[1:]
	}
}

func (c *Context) tokenCount() int {
	total := 0
	for _, t := range c.turns {
		total += c.tokensOf(t.Content)
	}
	return total
}

func (c *Context) tokensOf(s string) int {
	if c.enc == nil {
		return len(s) / 4 // rough fallback estimate
	}
	return len(c.enc.Encode(s, nil, nil))
}

// Turns returns the current, already-bounded turn slice.
func (c *Context) Turns() []Turn {
	return c.turns
}
