package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config 聚合控制台进程的全部配置项。
type Config struct {
	Server ServerConfig
	API    APIConfig
	Log    LogConfig
	Voice  VoiceConfig
}

// Load 从环境变量加载配置，ELERA_CONFIG_FILE 指定的 TOML 文件作为底层默认值。
func Load() (*Config, error) {
	file, err := loadFileOverlay(strings.TrimSpace(os.Getenv("ELERA_CONFIG_FILE")))
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	api, err := loadAPIConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	voice, err := loadVoiceConfig(file.Voice)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, API: api, Log: logCfg, Voice: voice}, nil
}

// ServerConfig 描述本地 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	RateRPS        float64
	RateBurst      int
	AllowedOrigins []string
}

// APIConfig 描述远端助手 API 的访问配置。
type APIConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Retries  int
	UserName string
}

// LogConfig 控制 zerolog 输出。
type LogConfig struct {
	Level  string
	Pretty bool
}

// VoiceOption 表示一个可选的合成音色。
type VoiceOption struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// VoiceConfig 描述语音对话循环的默认值与阈值。
type VoiceConfig struct {
	Language         string
	VoiceID          string
	FallbackVoiceID  string
	Continuous       bool
	SilenceThreshold float64
	QuietDuration    time.Duration
	SampleInterval   time.Duration
	RestartDelay     time.Duration
	WelcomeMessage   string
	WelcomeMessages  map[string]string
	Voices           []VoiceOption
}

type fileOverlay struct {
	Voice voiceOverlay `toml:"voice"`
}

type voiceOverlay struct {
	Language        string            `toml:"language"`
	VoiceID         string            `toml:"voice_id"`
	FallbackVoiceID string            `toml:"fallback_voice_id"`
	WelcomeMessage  string            `toml:"welcome_message"`
	WelcomeMessages map[string]string `toml:"welcome_messages"`
	Voices          []VoiceOption     `toml:"voices"`
}

func loadFileOverlay(path string) (fileOverlay, error) {
	var overlay fileOverlay
	if path == "" {
		return overlay, nil
	}
	if _, err := toml.DecodeFile(path, &overlay); err != nil {
		return fileOverlay{}, fmt.Errorf("invalid config file %q: %w", path, err)
	}
	return overlay, nil
}

// loadServerConfig 解析服务器监听地址与限流设置。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	var addr string
	switch {
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	case strings.Contains(port, ":"):
		// accepts ":8080" or "127.0.0.1:8080"
		addr = port
	default:
		addr = ":" + port
	}

	rps, err := parseOptionalFloatEnv("RATE_RPS")
	if err != nil {
		return ServerConfig{}, err
	}
	rateRPS := 10.0
	if rps != nil {
		if *rps < 0 {
			return ServerConfig{}, fmt.Errorf("invalid RATE_RPS value %v: must be >= 0", *rps)
		}
		rateRPS = *rps
	}

	burst, err := parseOptionalIntEnv("RATE_BURST")
	if err != nil {
		return ServerConfig{}, err
	}
	rateBurst := 20
	if burst != nil {
		if *burst < 1 {
			rateBurst = 1
		} else {
			rateBurst = *burst
		}
	}

	return ServerConfig{
		Addr:           addr,
		RateRPS:        rateRPS,
		RateBurst:      rateBurst,
		AllowedOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}, nil
}

func loadAPIConfig() (APIConfig, error) {
	timeout, err := parseOptionalIntEnv("ELERA_API_TIMEOUT")
	if err != nil {
		return APIConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	retries, err := parseOptionalIntEnv("ELERA_API_RETRIES")
	if err != nil {
		return APIConfig{}, err
	}
	retryCount := 0
	if retries != nil && *retries > 0 {
		retryCount = *retries
	}

	baseURL := strings.TrimRight(getEnvOrDefault("ELERA_BACKEND_URL", "http://localhost:8000"), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return APIConfig{}, fmt.Errorf("invalid ELERA_BACKEND_URL value %q: scheme must be http or https", baseURL)
	}

	return APIConfig{
		BaseURL:  baseURL,
		Timeout:  time.Duration(timeoutSeconds) * time.Second,
		Retries:  retryCount,
		UserName: getEnvOrDefault("ELERA_USER_NAME", "User"),
	}, nil
}

func loadLogConfig() (LogConfig, error) {
	pretty, err := parseBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Pretty: pretty,
	}, nil
}

func loadVoiceConfig(file voiceOverlay) (VoiceConfig, error) {
	continuous, err := parseBoolEnv("VOICE_CONTINUOUS", true)
	if err != nil {
		return VoiceConfig{}, err
	}

	threshold := 10.0
	if override, err := parseOptionalFloatEnv("VOICE_SILENCE_THRESHOLD"); err != nil {
		return VoiceConfig{}, err
	} else if override != nil {
		if *override < 0 || *override > 255 {
			return VoiceConfig{}, fmt.Errorf("invalid VOICE_SILENCE_THRESHOLD value %v: must be within 0-255", *override)
		}
		threshold = *override
	}

	quiet, err := parseMillisEnv("VOICE_QUIET_MS", time.Second)
	if err != nil {
		return VoiceConfig{}, err
	}
	sample, err := parseMillisEnv("VOICE_SAMPLE_MS", 16*time.Millisecond)
	if err != nil {
		return VoiceConfig{}, err
	}
	restart, err := parseMillisEnv("VOICE_RESTART_DELAY_MS", 500*time.Millisecond)
	if err != nil {
		return VoiceConfig{}, err
	}

	return VoiceConfig{
		Language:         getEnvOrDefault("VOICE_LANGUAGE", orDefault(file.Language, "en")),
		VoiceID:          getEnvOrDefault("VOICE_ID", orDefault(file.VoiceID, "CJsvtXkl6ObQJrCz44le")),
		FallbackVoiceID:  getEnvOrDefault("VOICE_FALLBACK_ID", orDefault(file.FallbackVoiceID, "jsCqWAovK2LkecY7zXl4")),
		Continuous:       continuous,
		SilenceThreshold: threshold,
		QuietDuration:    quiet,
		SampleInterval:   sample,
		RestartDelay:     restart,
		WelcomeMessage:   getEnvOrDefault("VOICE_WELCOME_MESSAGE", file.WelcomeMessage),
		WelcomeMessages:  file.WelcomeMessages,
		Voices:           file.Voices,
	}, nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseMillisEnv 读取正的毫秒数。
func parseMillisEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	ms, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if ms == nil {
		return defaultValue, nil
	}
	if *ms <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be > 0", key, *ms)
	}
	return time.Duration(*ms) * time.Millisecond, nil
}
