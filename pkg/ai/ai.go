package ai

import "context"

// AiInterface 文本补全后端
type AiInterface interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}
