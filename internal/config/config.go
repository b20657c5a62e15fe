package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName  string
	AppEnv   string
	AppHost  string
	AppPort  string
	LogLevel string

	AIProvider      string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	AzureAPIKey     string
	AzureEndpoint   string
	AzureAPIVersion string
	AzureDeployment string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	AnthropicModel  string

	ExtractionMaxTokens   int
	ExtractionTemperature float32
	RefineMaxTokens       int
	RefineTemperature     float32
	EvaluationMaxTokens   int
	EvaluationTemperature float32
	ImageDetail           string
	RefineMath            bool
	ReferenceImage        string
	PromptDir             string

	RedisURL      string
	NATSURL       string
	EventsChannel string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadDir              string
	UploadMaxSizeMB        int

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppHost + c.AppPort
	}

	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}

// CloudinaryEnabled reports whether uploads should go to Cloudinary instead of local disk.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// ProviderCredentials returns the api key and model for the selected provider.
func (c Config) ProviderCredentials() (string, string) {
	switch c.AIProvider {
	case "openai":
		return c.OpenAIAPIKey, c.OpenAIModel
	case "azure":
		return c.AzureAPIKey, c.AzureDeployment
	case "gemini":
		return c.GeminiAPIKey, c.GeminiModel
	case "anthropic":
		return c.AnthropicAPIKey, c.AnthropicModel
	default:
		return "", ""
	}
}

// legacyEnv maps config keys to the environment names used by earlier deployments.
var legacyEnv = map[string][]string{
	"app.host":               {"HOST"},
	"app.port":               {"PORT"},
	"azure.api_key":          {"AZURE_OPENAI_API_KEY"},
	"azure.endpoint":         {"AZURE_OPENAI_ENDPOINT"},
	"azure.api_version":      {"AZURE_OPENAI_API_VERSION"},
	"azure.deployment":       {"AZURE_OPENAI_GPT4O_DEPLOYMENT_NAME"},
	"grader.reference_image": {"REFERENCE_MAP_PATH"},
	"smtp.username":          {"GOOGLE_APP_EMAIL"},
	"smtp.password":          {"GOOGLE_APP_PASSWORD"},
	"openai.api_key":         {"OPENAI_API_KEY"},
	"gemini.api_key":         {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic.api_key":      {"ANTHROPIC_API_KEY"},
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, names := range legacyEnv {
		envKey := "GRADER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, envKey}, names...)...)
	}

	v.SetDefault("app.name", "GEMA Grader API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "")
	v.SetDefault("app.port", "5000")
	v.SetDefault("log.level", "info")
	v.SetDefault("ai.provider", "azure")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("azure.api_version", "2024-05-01-preview")
	v.SetDefault("azure.deployment", "gpt-4o")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("grader.extraction_max_tokens", 2000)
	v.SetDefault("grader.extraction_temperature", 0.1)
	v.SetDefault("grader.refine_max_tokens", 2500)
	v.SetDefault("grader.refine_temperature", 0.05)
	v.SetDefault("grader.evaluation_max_tokens", 3000)
	v.SetDefault("grader.evaluation_temperature", 0.2)
	v.SetDefault("grader.image_detail", "high")
	v.SetDefault("grader.refine_math", false)
	v.SetDefault("events.channel", "grader:evaluations")
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from_name", "GEMA Grader")
	v.SetDefault("cloudinary.folder", "gema/submissions")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("ratelimit.max", 30)
	v.SetDefault("ratelimit.window", "1m")

	cfg := Config{
		AppName:  v.GetString("app.name"),
		AppEnv:   v.GetString("app.env"),
		AppHost:  v.GetString("app.host"),
		AppPort:  v.GetString("app.port"),
		LogLevel: strings.ToLower(v.GetString("log.level")),

		AIProvider:      strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		OpenAIAPIKey:    v.GetString("openai.api_key"),
		OpenAIModel:     v.GetString("openai.model"),
		OpenAIBaseURL:   v.GetString("openai.base_url"),
		AzureAPIKey:     v.GetString("azure.api_key"),
		AzureEndpoint:   v.GetString("azure.endpoint"),
		AzureAPIVersion: v.GetString("azure.api_version"),
		AzureDeployment: v.GetString("azure.deployment"),
		GeminiAPIKey:    v.GetString("gemini.api_key"),
		GeminiModel:     v.GetString("gemini.model"),
		AnthropicAPIKey: v.GetString("anthropic.api_key"),
		AnthropicModel:  v.GetString("anthropic.model"),

		ExtractionMaxTokens:   v.GetInt("grader.extraction_max_tokens"),
		ExtractionTemperature: float32(v.GetFloat64("grader.extraction_temperature")),
		RefineMaxTokens:       v.GetInt("grader.refine_max_tokens"),
		RefineTemperature:     float32(v.GetFloat64("grader.refine_temperature")),
		EvaluationMaxTokens:   v.GetInt("grader.evaluation_max_tokens"),
		EvaluationTemperature: float32(v.GetFloat64("grader.evaluation_temperature")),
		ImageDetail:           strings.ToLower(v.GetString("grader.image_detail")),
		RefineMath:            v.GetBool("grader.refine_math"),
		ReferenceImage:        v.GetString("grader.reference_image"),
		PromptDir:             v.GetString("grader.prompt_dir"),

		RedisURL:      v.GetString("redis.url"),
		NATSURL:       v.GetString("nats.url"),
		EventsChannel: v.GetString("events.channel"),

		SMTPHost:     v.GetString("smtp.host"),
		SMTPPort:     v.GetInt("smtp.port"),
		SMTPUsername: v.GetString("smtp.username"),
		SMTPPassword: v.GetString("smtp.password"),
		SMTPFrom:     v.GetString("smtp.from"),
		SMTPFromName: v.GetString("smtp.from_name"),

		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadDir:              v.GetString("upload.dir"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),

		RateLimitMax:    v.GetInt("ratelimit.max"),
		RateLimitWindow: v.GetDuration("ratelimit.window"),
	}

	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUsername
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.AIProvider {
	case "openai", "azure", "gemini", "anthropic":
	default:
		return fmt.Errorf("unsupported ai provider %q", c.AIProvider)
	}

	if key, _ := c.ProviderCredentials(); key == "" {
		return fmt.Errorf("api key for ai provider %q must be provided", c.AIProvider)
	}
	if c.AIProvider == "azure" && c.AzureEndpoint == "" {
		return fmt.Errorf("azure openai endpoint must be provided")
	}

	for name, tokens := range map[string]int{
		"extraction": c.ExtractionMaxTokens,
		"refine":     c.RefineMaxTokens,
		"evaluation": c.EvaluationMaxTokens,
	} {
		if tokens <= 0 {
			return fmt.Errorf("%s max tokens must be positive", name)
		}
	}

	for name, temp := range map[string]float32{
		"extraction": c.ExtractionTemperature,
		"refine":     c.RefineTemperature,
		"evaluation": c.EvaluationTemperature,
	} {
		if temp < 0 || temp > 2 {
			return fmt.Errorf("%s temperature must be between 0 and 2", name)
		}
	}

	switch c.ImageDetail {
	case "low", "high", "auto":
	default:
		return fmt.Errorf("invalid image detail %q", c.ImageDetail)
	}

	if c.UploadMaxSizeMB <= 0 {
		return fmt.Errorf("upload max size must be positive")
	}

	if c.RateLimitMax < 0 || (c.RateLimitMax > 0 && c.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limit requires a non-negative max and a positive window")
	}

	return nil
}
