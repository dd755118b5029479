// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_EvictsOldestBeyondMaxTurns(t *testing.T) {
	c := NewContext(3, 0)
	for i := 0; i < 5; i++ {
		c.Append(Turn{Role: "user", Content: "hi"})
	}
	assert.Len(t, c.Turns(), 3)
}

func TestContext_RetainsAllUnderBudget(t *testing.T) {
	c := NewContext(12, 100000)
	c.Append(Turn{Role: "user", Content: "hello there"})
	c.Append(Turn{Role: "assistant", Content: "ok"})
	assert.Len(t, c.Turns(), 2)
}

func TestContext_TokenBudgetEvictsOldestFirst(t *testing.T) {
	c := NewContext(100, 1)
	c.Append(Turn{Role: "user", Content: "first message with several words"})
	c.Append(Turn{Role: "user", Content: "second"})

	turns := c.Turns()
	assert.Len(t, turns, 1)
	assert.Equal(t, "second", turns[len(turns)-1].Content)
}
