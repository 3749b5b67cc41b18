package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable, e.g. LEGALLENS_HTTP_PORT.
const EnvPrefix = "LEGALLENS"

// Generation holds the fixed sampling parameters used for every model call.
// It is copied by value into the generators and never mutated afterwards.
type Generation struct {
	Model       string        `envconfig:"LLM_MODEL" default:"llama3.2:1b"`
	Temperature float32       `envconfig:"LLM_TEMPERATURE" default:"0.3"`
	TopK        int           `envconfig:"LLM_TOP_K" default:"20"`
	TopP        float32       `envconfig:"LLM_TOP_P" default:"0.8"`
	NumPredict  int           `envconfig:"LLM_NUM_PREDICT" default:"500"`
	Timeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"2m"`
}

type Config struct {
	HTTPPort       string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"json"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	DataDir  string `envconfig:"DATA_DIR" default:"data"`
	FontsDir string `envconfig:"FONTS_DIR" default:"assets/fonts"`
	DocsDir  string `envconfig:"DOCS_DIR" default:"docs"`

	LLMProvider string `envconfig:"LLM_PROVIDER" default:"ollama"`
	OllamaURL   string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	Generation

	EmbedProvider  string `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedModel     string `envconfig:"EMBED_MODEL" default:"all-minilm"`
	EmbedDimension int    `envconfig:"EMBED_DIMENSION" default:"384"`
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`

	VectorStore    string `envconfig:"VECTOR_STORE" default:"pinecone"`
	PineconeAPIKey string `envconfig:"PINECONE_API_KEY"`
	PineconeHost   string `envconfig:"PINECONE_HOST"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8081"`
	WeaviateClass  string `envconfig:"WEAVIATE_CLASS" default:"LegalChunk"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"legallens.db"`
	ChromemPath    string `envconfig:"CHROMEM_PATH" default:"data/chromem"`
	TopK           int    `envconfig:"TOP_K" default:"3"`

	TranslateProvider    string `envconfig:"TRANSLATE_PROVIDER" default:"google"`
	TranslateAPIKey      string `envconfig:"TRANSLATE_API_KEY"`
	TranslationCacheSize int    `envconfig:"TRANSLATION_CACHE_SIZE" default:"1000"`

	ResponseCacheSize int           `envconfig:"RESPONSE_CACHE_SIZE" default:"50"`
	ResponseCacheTTL  time.Duration `envconfig:"RESPONSE_CACHE_TTL" default:"30m"`
	HistoryMax        int           `envconfig:"HISTORY_MAX" default:"100"`
}

// Load reads an optional .env file and then the process environment.
// The returned Config has been validated.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied, without
// touching the environment. Tests build on it.
func Default() *Config {
	var cfg Config
	// Process with a prefix nothing in the environment uses so only defaults apply.
	_ = envconfig.Process("LEGALLENS_DEFAULTS_ONLY_", &cfg)
	return &cfg
}

func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.LLMProvider, "ollama", "gemini") {
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER: %q", c.LLMProvider))
	}
	if !oneOf(c.EmbedProvider, "ollama", "gemini") {
		errs = append(errs, fmt.Errorf("unsupported EMBED_PROVIDER: %q", c.EmbedProvider))
	}
	if !oneOf(c.VectorStore, "pinecone", "weaviate", "chromem", "sqlite") {
		errs = append(errs, fmt.Errorf("unsupported VECTOR_STORE: %q", c.VectorStore))
	}
	if !oneOf(c.TranslateProvider, "google", "none") {
		errs = append(errs, fmt.Errorf("unsupported TRANSLATE_PROVIDER: %q", c.TranslateProvider))
	}
	if (c.LLMProvider == "gemini" || c.EmbedProvider == "gemini") && c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
	}
	if c.VectorStore == "pinecone" && (c.PineconeAPIKey == "" || c.PineconeHost == "") {
		errs = append(errs, errors.New("PINECONE_API_KEY and PINECONE_HOST are required for the pinecone store"))
	}
	if c.VectorStore == "chromem" && strings.TrimSpace(c.ChromemPath) == "" {
		errs = append(errs, errors.New("CHROMEM_PATH is required for the chromem store"))
	}

	g := c.Generation
	if g.Model == "" {
		errs = append(errs, errors.New("LLM_MODEL must not be empty"))
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE out of range [0,2]: %v", g.Temperature))
	}
	if g.TopP <= 0 || g.TopP > 1 {
		errs = append(errs, fmt.Errorf("LLM_TOP_P out of range (0,1]: %v", g.TopP))
	}
	if g.TopK <= 0 {
		errs = append(errs, fmt.Errorf("LLM_TOP_K must be positive: %d", g.TopK))
	}
	if g.NumPredict <= 0 {
		errs = append(errs, fmt.Errorf("LLM_NUM_PREDICT must be positive: %d", g.NumPredict))
	}

	for name, v := range map[string]int{
		"EMBED_DIMENSION":        c.EmbedDimension,
		"TOP_K":                  c.TopK,
		"TRANSLATION_CACHE_SIZE": c.TranslationCacheSize,
		"RESPONSE_CACHE_SIZE":    c.ResponseCacheSize,
		"HISTORY_MAX":            c.HistoryMax,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive: %d", name, v))
		}
	}
	if c.ResponseCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("RESPONSE_CACHE_TTL must be positive: %s", c.ResponseCacheTTL))
	}

	return errors.Join(errs...)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
