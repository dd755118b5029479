// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package domain

import "errors"

// Argument-validation errors for ToolCall.Validate. Callers in
// internal/pipeline wrap these with commons.ErrInvalidToolCall so
// errors.Is(err, commons.ErrInvalidToolCall) still matches at the boundary.
var (
	errInvalidTopK    = errors.New("top_k must be between 0 and 20")
	errNegativeStart  = errors.New("start_seconds must be >= 0")
	errEndBeforeStart = errors.New("end_seconds must be > start_seconds")
)
