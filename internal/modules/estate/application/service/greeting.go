package service

import (
	"context"
	"strings"

	"EstateGuru/pkg/zlog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const greetingSystemPrompt = `You are a helpful and friendly Real Estate Assistant for properties in Pune City.
When greeted, respond warmly and invite the user to ask about properties.
Keep your response brief (2-3 sentences), professional, and welcoming.
Always mention that you can help with property searches in Pune.
Do not show any property lists in greeting responses.`

// GreetingFallback 模型不可用时的固定问候
const GreetingFallback = "Hello! Welcome to EstateGuru. I'm here to help you find the perfect property in Pune. What are you looking for today?"

// greet 问候不走召回；模型失败用固定文案
func greet(ctx context.Context, chatModel model.BaseChatModel, query string) string {
	if chatModel == nil {
		return GreetingFallback
	}
	msg, err := chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(greetingSystemPrompt),
		schema.UserMessage(query),
	})
	if err != nil || msg == nil || strings.TrimSpace(msg.Content) == "" {
		zlog.Warn("greeting generation failed, using fallback", zap.Error(err))
		return GreetingFallback
	}
	return strings.TrimSpace(msg.Content)
}
