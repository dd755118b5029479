// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rapidaai/clipcast/internal/domain"
)

// OpenAIModel drives gpt-* tool-calling chat completions.
type OpenAIModel struct {
	log     Logger
	client  openai.Client
	modelID string
}

// NewOpenAIModel builds an adapter bound to apiKey and modelID.
func NewOpenAIModel(log Logger, apiKey, modelID string) *OpenAIModel {
	return &OpenAIModel{
		log:     log,
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		modelID: modelID,
	}
}

func openAITools() []openai.ChatCompletionToolParam {
	return []openai.ChatCompletionToolParam{
		{
			Function: openai.FunctionDefinitionParam{
				Name:        toolNameSearchClips,
				Description: openai.String("Search the clip library by a free-text description"),
				Parameters:  toolSearchClipsSchema,
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        toolNamePlayClip,
				Description: openai.String("Play a clip returned by search_clips on the edge display"),
				Parameters:  toolPlayClipSchema,
			},
		},
	}
}

func toOpenAIMessages(turns []Turn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "user":
			out = append(out, openai.UserMessage(t.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(t.Content))
		case "tool":
			out = append(out, openai.ToolMessage(t.Content, t.ToolCallID))
		}
	}
	return out
}

// Complete sends turns with both declared tools and decodes the response's
// tool calls into domain.ToolCall values.
func (m *OpenAIModel) Complete(ctx context.Context, turns []Turn) (Response, error) {
	completion, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    m.modelID,
		Messages: toOpenAIMessages(turns),
		Tools:    openAITools(),
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, fmt.Errorf("openai completion: empty choices")
	}

	choice := completion.Choices[0]
	resp := Response{Content: choice.Message.Content}

	for _, tc := range choice.Message.ToolCalls {
		call, err := decodeOpenAIToolCall(tc)
		if err != nil {
			m.log.Warnw("dropping malformed tool call", "err", err)
			continue
		}
		resp.ToolCalls = append(resp.ToolCalls, call)
	}
	return resp, nil
}

func decodeOpenAIToolCall(tc openai.ChatCompletionMessageToolCall) (domain.ToolCall, error) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return domain.ToolCall{}, err
	}

	switch tc.Function.Name {
	case toolNameSearchClips:
		return domain.ToolCall{
			CallID: tc.ID,
			Kind:   domain.ToolSearchClips,
			Query:  stringArg(args, "query"),
			TopK:   int(floatArg(args, "top_k")),
		}, nil
	case toolNamePlayClip:
		return domain.ToolCall{
			CallID:       tc.ID,
			Kind:         domain.ToolPlayClip,
			ClipID:       stringArg(args, "clip_id"),
			StartSeconds: floatArg(args, "start_seconds"),
			EndSeconds:   floatArg(args, "end_seconds"),
		}, nil
	default:
		return domain.ToolCall{}, fmt.Errorf("unknown tool %q", tc.Function.Name)
	}
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func floatArg(args map[string]interface{}, key string) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return 0
}
