package openai

import (
	"context"
	"errors"

	"lyricsync/pkg/ai"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

var _ ai.AiInterface = (*openAi)(nil)

type openAi struct {
	model  string
	client *openai.Client
}

// NewOpenAi 创建 OpenAI 兼容接口的客户端，baseURL 为空时使用官方地址
func NewOpenAi(apiKey, modelName, baseURL string) *openAi {
	openaiConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		openaiConfig.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &openAi{model: modelName, client: openai.NewClientWithConfig(openaiConfig)}
}

func (o *openAi) Name() string {
	return "openai"
}

func (o *openAi) HandleText(ctx context.Context, msg string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: msg,
			},
		},
		MaxTokens: 200,
	})
	if err != nil {
		log.Error().Err(err).Msg("could not get response from openai")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
