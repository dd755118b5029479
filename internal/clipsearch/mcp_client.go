// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package clipsearch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/pkg/commons"
)

// MCPClient delegates clip search to a remote Model Context Protocol tool
// server instead of a direct index query — an alternative deployment where
// the clip library is fronted by its own MCP-speaking service. Generalized
// from the teacher's MCPCaller placeholder (Name/Tools) into a single
// search-shaped caller.
type MCPClient struct {
	log      commons.Logger
	mcp      *client.Client
	toolName string
}

// NewMCPClient wraps an already-initialized MCP client, calling toolName
// ("search_clips" by default) for every Search invocation.
func NewMCPClient(log commons.Logger, mcpClient *client.Client, toolName string) *MCPClient {
	if toolName == "" {
		toolName = "search_clips"
	}
	return &MCPClient{log: log, mcp: mcpClient, toolName: toolName}
}

type mcpClipResult struct {
	ClipID       string  `json:"clip_id"`
	SourceURI    string  `json:"source_uri"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Caption      string  `json:"caption"`
	Score        float64 `json:"score"`
}

// Search invokes the clip-search MCP tool and decodes its JSON text result
// into ClipCandidates.
func (c *MCPClient) Search(ctx context.Context, query string, topK int) ([]domain.ClipCandidate, error) {
	if query == "" {
		return nil, nil
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = c.toolName
	req.Params.Arguments = map[string]interface{}{
		"query":  query,
		"top_k":  topK,
	}

	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", commons.ErrSearchUnavailable, err)
	}
	if res.IsError {
		return nil, fmt.Errorf("%w: mcp tool reported error", commons.ErrSearchUnavailable)
	}

	var results []mcpClipResult
	for _, content := range res.Content {
		textContent, ok := content.(mcp.TextContent)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(textContent.Text), &results); err != nil {
			c.log.Warnw("mcp clip search result not decodable", "err", err)
			continue
		}
	}

	out := make([]domain.ClipCandidate, 0, len(results))
	for _, r := range results {
		out = append(out, domain.ClipCandidate{
			ClipID:       r.ClipID,
			SourceURI:    r.SourceURI,
			StartSeconds: r.StartSeconds,
			EndSeconds:   r.EndSeconds,
			Caption:      r.Caption,
			Score:        r.Score,
		})
	}
	return out, nil
}
