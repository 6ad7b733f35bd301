package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime settings for the research pipeline, the
// search/LLM/embedding backends and the session history store. It is a plain
// value object: load it once at startup and pass it into constructors.
type Config struct {
	// Research settings
	MaxWebResearchLoops int
	StripThinkingTokens bool

	// LLM settings
	LLMProvider     string // "ollama", "lmstudio" or "google"
	LocalLLM        string
	OllamaBaseURL   string
	LMStudioBaseURL string
	GoogleAPIKey    string
	ChatModel       string

	// Search settings
	SearchAPI        string // "duckduckgo", "tavily", "perplexity" or "searxng"
	FetchFullPage    bool
	TavilyAPIKey     string
	PerplexityAPIKey string
	SearxngURL       string

	// Embedding settings
	EmbeddingProvider  string // "ollama" or "google"
	EmbeddingModel     string
	EmbeddingDimension int

	// Persistence / server
	DatabaseURL  string
	Port         string
	HistoryLimit int
}

// DefaultEmbeddingModel is the fixed fallback used when the configured
// embedding model cannot be loaded.
const DefaultEmbeddingModel = "nomic-embed-text"

func Load() *Config {
	return &Config{
		MaxWebResearchLoops: getEnvAsInt("MAX_WEB_RESEARCH_LOOPS", 3),
		StripThinkingTokens: getEnvAsBool("STRIP_THINKING_TOKENS", true),

		LLMProvider:     getEnv("LLM_PROVIDER", "ollama"),
		LocalLLM:        getEnv("LOCAL_LLM", "gemma3:latest"),
		OllamaBaseURL:   getEnv("OLLAMA_BASE_URL", "http://localhost:11434/"),
		LMStudioBaseURL: getEnv("LMSTUDIO_BASE_URL", "http://localhost:1234/v1"),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		ChatModel:       getEnv("CHAT_MODEL", "gemini-2.0-flash"),

		SearchAPI:        getEnv("SEARCH_API", "duckduckgo"),
		FetchFullPage:    getEnvAsBool("FETCH_FULL_PAGE", true),
		TavilyAPIKey:     getEnv("TAVILY_API_KEY", ""),
		PerplexityAPIKey: getEnv("PERPLEXITY_API_KEY", ""),
		SearxngURL:       getEnv("SEARXNG_URL", "http://localhost:8888"),

		EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "ollama"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", DefaultEmbeddingModel),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		Port:         getEnv("PORT", "8081"),
		HistoryLimit: getEnvAsInt("RESEARCH_HISTORY_LIMIT", 100),
	}
}

// Validate rejects invalid backend selections up front, before a run starts.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "ollama", "lmstudio", "google":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLMProvider)
	}
	switch c.SearchAPI {
	case "duckduckgo", "tavily", "perplexity", "searxng":
	default:
		return fmt.Errorf("unsupported search API: %s", c.SearchAPI)
	}
	switch c.EmbeddingProvider {
	case "ollama", "google":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.EmbeddingProvider)
	}
	if c.MaxWebResearchLoops < 1 {
		return fmt.Errorf("MAX_WEB_RESEARCH_LOOPS must be >= 1, got %d", c.MaxWebResearchLoops)
	}
	return nil
}

// Snapshot returns the settings worth recording alongside a completed
// session. Stored as an opaque key-value blob.
func (c *Config) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"max_web_research_loops": c.MaxWebResearchLoops,
		"llm_provider":           c.LLMProvider,
		"local_llm":              c.LocalLLM,
		"search_api":             c.SearchAPI,
		"fetch_full_page":        c.FetchFullPage,
		"strip_thinking_tokens":  c.StripThinkingTokens,
		"embedding_provider":     c.EmbeddingProvider,
		"embedding_model":        c.EmbeddingModel,
		"embedding_dimension":    c.EmbeddingDimension,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
