package config

import "testing"

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			MaxWebResearchLoops: 3,
			LLMProvider:         "ollama",
			SearchAPI:           "duckduckgo",
			EmbeddingProvider:   "ollama",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Valid defaults", func(c *Config) {}, false},
		{"Google LLM provider", func(c *Config) { c.LLMProvider = "google" }, false},
		{"Unknown LLM provider", func(c *Config) { c.LLMProvider = "gpt4all" }, true},
		{"Unknown search API", func(c *Config) { c.SearchAPI = "altavista" }, true},
		{"Unknown embedding provider", func(c *Config) { c.EmbeddingProvider = "openai" }, true},
		{"Zero loops", func(c *Config) { c.MaxWebResearchLoops = 0 }, true},
		{"Negative loops", func(c *Config) { c.MaxWebResearchLoops = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_WEB_RESEARCH_LOOPS", "7")
	t.Setenv("FETCH_FULL_PAGE", "false")
	t.Setenv("SEARCH_API", "tavily")

	cfg := Load()
	if cfg.MaxWebResearchLoops != 7 {
		t.Errorf("MaxWebResearchLoops = %d, want 7", cfg.MaxWebResearchLoops)
	}
	if cfg.FetchFullPage {
		t.Error("FetchFullPage should be false")
	}
	if cfg.SearchAPI != "tavily" {
		t.Errorf("SearchAPI = %q, want tavily", cfg.SearchAPI)
	}
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("MAX_WEB_RESEARCH_LOOPS", "lots")

	cfg := Load()
	if cfg.MaxWebResearchLoops != 3 {
		t.Errorf("MaxWebResearchLoops = %d, want default 3", cfg.MaxWebResearchLoops)
	}
}
