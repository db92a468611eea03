package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"EstateGuru/internal/config"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

type ChatModelMeta struct {
	Provider string
	Model    string
}

// NewChatModelFromConfig 构造 chat model，外层包限流 + 单次重试
func NewChatModelFromConfig(ctx context.Context, conf *config.Config) (model.BaseChatModel, ChatModelMeta, error) {
	if conf == nil {
		return nil, ChatModelMeta{}, fmt.Errorf("nil config")
	}
	cm, meta, err := newProvider(ctx, conf)
	if err != nil {
		return nil, meta, err
	}
	return NewResilient(cm, conf.AIConfig.ChatModel.RatePerSecond), meta, nil
}

func newProvider(ctx context.Context, conf *config.Config) (model.BaseChatModel, ChatModelMeta, error) {
	cc := conf.AIConfig.ChatModel
	provider := strings.ToLower(strings.TrimSpace(cc.Provider))
	modelName := strings.TrimSpace(cc.Model)

	timeout := 2 * time.Minute
	if cc.TimeoutSeconds > 0 {
		timeout = time.Duration(cc.TimeoutSeconds) * time.Second
	}
	var maxTokens *int
	if cc.MaxTokens > 0 {
		mt := cc.MaxTokens
		maxTokens = &mt
	}
	var temperature *float32
	if cc.Temperature > 0 {
		t := cc.Temperature
		temperature = &t
	}

	switch provider {
	case "", "disabled", "none":
		return nil, ChatModelMeta{}, fmt.Errorf("chat model provider not configured")

	case "openai":
		apiKey := strings.TrimSpace(cc.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
		if modelName == "" {
			modelName = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
		}
		baseURL := strings.TrimSpace(cc.BaseURL)
		if baseURL == "" {
			baseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
		}
		if apiKey == "" || modelName == "" {
			return nil, ChatModelMeta{}, fmt.Errorf("openai chat model missing apiKey/model")
		}
		cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:      apiKey,
			Model:       modelName,
			BaseURL:     baseURL,
			ByAzure:     cc.ByAzure,
			APIVersion:  strings.TrimSpace(cc.AzureAPIVersion),
			Timeout:     timeout,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "openai", Model: modelName}, nil

	case "ark":
		apiKey := strings.TrimSpace(cc.APIKey)
		accessKey := strings.TrimSpace(cc.AccessKey)
		secretKey := strings.TrimSpace(cc.SecretKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		}
		if accessKey == "" {
			accessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		}
		if secretKey == "" {
			secretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		}
		if modelName == "" {
			modelName = strings.TrimSpace(os.Getenv("ARK_MODEL_ID"))
		}
		baseURL := strings.TrimSpace(cc.BaseURL)
		region := strings.TrimSpace(cc.Region)
		if baseURL == "" {
			baseURL = strings.TrimSpace(os.Getenv("ARK_BASE_URL"))
		}
		if region == "" {
			region = strings.TrimSpace(os.Getenv("ARK_REGION"))
		}
		if apiKey == "" && (accessKey == "" || secretKey == "") {
			return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing apiKey or accessKey/secretKey")
		}
		if modelName == "" {
			return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing model")
		}
		// 重试由外层 Resilient 负责，这里关闭 SDK 自带重试
		retryTimes := 0
		cm, err := arkModel.NewChatModel(ctx, &arkModel.ChatModelConfig{
			APIKey:      apiKey,
			AccessKey:   accessKey,
			SecretKey:   secretKey,
			Model:       modelName,
			BaseURL:     baseURL,
			Region:      region,
			Timeout:     &timeout,
			RetryTimes:  &retryTimes,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "ark", Model: modelName}, nil

	default:
		return nil, ChatModelMeta{}, fmt.Errorf("unknown chat model provider: %s", provider)
	}
}
