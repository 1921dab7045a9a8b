package bootstrap

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/nightlife-concierge/internal/config"
	"github.com/wolfman30/nightlife-concierge/internal/extraction"
	"github.com/wolfman30/nightlife-concierge/internal/llm"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

// ProviderKeyword selects the offline keyword extractor.
const ProviderKeyword = "keyword"

// BuildExtractor selects the language-understanding backend from
// LLM_PROVIDER. A provider without credentials falls back to the keyword
// extractor so the bot keeps working. The returned cleanup is never nil.
func BuildExtractor(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (extraction.Extractor, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	loc := cfg.Location()
	keyword := func(reason string) (extraction.Extractor, func(), error) {
		if reason != "" {
			logger.Warn("using keyword extractor", "reason", reason, "provider", cfg.LLMProvider)
		}
		return extraction.NewKeywordExtractor(loc, nil), noop, nil
	}

	var (
		client  llm.Client
		cleanup = noop
	)
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case ProviderKeyword:
		return keyword("")
	case "", "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return keyword("OPENAI_API_KEY not set")
		}
		c, err := llm.NewOpenAIFromKey(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: openai client: %w", err)
		}
		client = c
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return keyword("BEDROCK_MODEL_ID not set")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		client = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return keyword("GEMINI_API_KEY not set")
		}
		c, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		client = c
		cleanup = func() {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close gemini client", "error", err)
			}
		}
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	logger.Info("using LLM extractor", "provider", cfg.LLMProvider)
	return extraction.NewLLMExtractor(client, logger, extraction.WithLocation(loc)), cleanup, nil
}
