// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rapidaai/clipcast/internal/domain"
)

// AnthropicModel drives Claude tool-calling messages.
type AnthropicModel struct {
	log     Logger
	client  anthropic.Client
	modelID string
}

// NewAnthropicModel builds an adapter bound to apiKey and modelID.
func NewAnthropicModel(log Logger, apiKey, modelID string) *AnthropicModel {
	return &AnthropicModel{
		log:     log,
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		modelID: modelID,
	}
}

func anthropicTools() []anthropic.ToolParam {
	return []anthropic.ToolParam{
		{
			Name:        toolNameSearchClips,
			Description: anthropic.String("Search the clip library by a free-text description"),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: toolSearchClipsSchema["properties"]},
		},
		{
			Name:        toolNamePlayClip,
			Description: anthropic.String("Play a clip returned by search_clips on the edge display"),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: toolPlayClipSchema["properties"]},
		},
	}
}

func toAnthropicMessages(turns []Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "user":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		case "tool":
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(t.ToolCallID, t.Content, false)))
		}
	}
	return out
}

// Complete sends turns with both declared tools and decodes tool_use
// content blocks into domain.ToolCall values.
func (m *AnthropicModel) Complete(ctx context.Context, turns []Turn) (Response, error) {
	message, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelID),
		MaxTokens: 1024,
		Messages:  toAnthropicMessages(turns),
		Tools:     anthropicToolUnion(),
	})
	if err != nil {
		return Response{}, fmt.Errorf("anthropic message: %w", err)
	}

	resp := Response{}
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			call, err := decodeAnthropicToolCall(variant)
			if err != nil {
				m.log.Warnw("dropping malformed tool call", "err", err)
				continue
			}
			resp.ToolCalls = append(resp.ToolCalls, call)
		}
	}
	return resp, nil
}

func anthropicToolUnion() []anthropic.ToolUnionParam {
	tools := anthropicTools()
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		out[i] = anthropic.ToolUnionParam{OfTool: &t}
	}
	return out
}

func decodeAnthropicToolCall(block anthropic.ToolUseBlock) (domain.ToolCall, error) {
	var args map[string]interface{}
	if err := json.Unmarshal(block.Input, &args); err != nil {
		return domain.ToolCall{}, err
	}

	switch block.Name {
	case toolNameSearchClips:
		return domain.ToolCall{
			CallID: block.ID,
			Kind:   domain.ToolSearchClips,
			Query:  stringArg(args, "query"),
			TopK:   int(floatArg(args, "top_k")),
		}, nil
	case toolNamePlayClip:
		return domain.ToolCall{
			CallID:       block.ID,
			Kind:         domain.ToolPlayClip,
			ClipID:       stringArg(args, "clip_id"),
			StartSeconds: floatArg(args, "start_seconds"),
			EndSeconds:   floatArg(args, "end_seconds"),
		}, nil
	default:
		return domain.ToolCall{}, fmt.Errorf("unknown tool %q", block.Name)
	}
}
