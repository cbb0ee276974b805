package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"voxkey/internal/domain"
)

// Settings is the persisted configuration document, keyed by dotted
// paths (e.g. "llm.enabled", "audio.dictating_mic"). It is loaded once
// at startup and mutated only through Set followed by an explicit Save;
// Save is never called concurrently with Set.
type Settings struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// Load reads the settings file from the user config directory, creating
// the directory if needed. Missing keys fall back to built-in defaults.
func Load() (*Settings, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("could not determine config directory: %w", err)
	}
	dir := filepath.Join(configDir, "voxkey")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create config directory %q: %w", dir, err)
	}
	return LoadFrom(filepath.Join(dir, "settings.json"))
}

// LoadFrom reads settings from an explicit path.
func LoadFrom(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read settings file %q: %w", path, err)
			}
		}
	}

	return &Settings{v: v, path: path}, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4.1-nano")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.timeout_seconds", 15)

	v.SetDefault("stt.endpoint", "http://127.0.0.1:8080/inference")
	v.SetDefault("stt.language", "en")
	v.SetDefault("stt.max_retries", 3)

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.preferred_mic", "")
	v.SetDefault("audio.preferred_output", "")
	v.SetDefault("audio.dictating_mic", "")
	v.SetDefault("audio.dictating_output", "")
	v.SetDefault("audio.normal_mic", "")
	v.SetDefault("audio.normal_output", "")
	v.SetDefault("audio.four_device_mode", false)

	v.SetDefault("session.min_duration_ms", 500)

	v.SetDefault("prompts.base.base_prompt", defaultBasePrompt)
	v.SetDefault("prompts.base.base_instructions", defaultBaseInstructions)
}

// Save writes the current document back to its file path.
func (s *Settings) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.WriteConfigAs(s.path)
}

// Get returns a raw value by dotted path.
func (s *Settings) Get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.Get(key)
}

// Set stores a value by dotted path. Not persisted until Save.
func (s *Settings) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
}

func (s *Settings) getString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.v.GetString(key))
}

// APIKey returns the configured LLM credential, falling back to the
// OPENAI_API_KEY environment variable.
func (s *Settings) APIKey() string {
	if key := s.getString("llm.api_key"); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

// LLMEnabled reports whether cleanup is both switched on and usable
// (a credential is present).
func (s *Settings) LLMEnabled() bool {
	s.mu.Lock()
	enabled := s.v.GetBool("llm.enabled")
	s.mu.Unlock()
	return enabled && s.APIKey() != ""
}

func (s *Settings) Model() string   { return s.getString("llm.model") }
func (s *Settings) BaseURL() string { return s.getString("llm.base_url") }

func (s *Settings) LLMTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	seconds := s.v.GetInt("llm.timeout_seconds")
	if seconds <= 0 {
		seconds = 15
	}
	return time.Duration(seconds) * time.Second
}

func (s *Settings) STTEndpoint() string { return s.getString("stt.endpoint") }
func (s *Settings) Language() string    { return s.getString("stt.language") }

func (s *Settings) STTMaxRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.v.GetInt("stt.max_retries")
	if n <= 0 {
		n = 3
	}
	return n
}

func (s *Settings) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate := s.v.GetInt("audio.sample_rate")
	if rate <= 0 {
		rate = 16000
	}
	return rate
}

func (s *Settings) Channels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	channels := s.v.GetInt("audio.channels")
	if channels <= 0 {
		channels = 1
	}
	return channels
}

func (s *Settings) MinRecordingDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.v.GetInt("session.min_duration_ms")
	if ms <= 0 {
		ms = 500
	}
	return time.Duration(ms) * time.Millisecond
}

// DeviceConfig is the audio device preference block.
type DeviceConfig struct {
	FourDeviceMode  bool
	PreferredMic    string
	PreferredOutput string
	DictatingMic    string
	DictatingOutput string
	NormalMic       string
	NormalOutput    string
}

func (s *Settings) Devices() DeviceConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DeviceConfig{
		FourDeviceMode:  s.v.GetBool("audio.four_device_mode"),
		PreferredMic:    strings.TrimSpace(s.v.GetString("audio.preferred_mic")),
		PreferredOutput: strings.TrimSpace(s.v.GetString("audio.preferred_output")),
		DictatingMic:    strings.TrimSpace(s.v.GetString("audio.dictating_mic")),
		DictatingOutput: strings.TrimSpace(s.v.GetString("audio.dictating_output")),
		NormalMic:       strings.TrimSpace(s.v.GetString("audio.normal_mic")),
		NormalOutput:    strings.TrimSpace(s.v.GetString("audio.normal_output")),
	}
}

// Prompt returns the user override for a per-context prompt field
// ("system_prompt" or "instructions"), or "" when unset.
func (s *Settings) Prompt(contextType domain.ContextType, field string) string {
	return s.getString("prompts." + string(contextType) + "." + field)
}

// BasePrompt returns the user-overridable base system prompt.
func (s *Settings) BasePrompt() string {
	if custom := s.getString("prompts.base.base_prompt"); custom != "" {
		return custom
	}
	return defaultBasePrompt
}

// BaseInstructions returns the user-overridable base instruction block.
func (s *Settings) BaseInstructions() string {
	if custom := s.getString("prompts.base.base_instructions"); custom != "" {
		return custom
	}
	return defaultBaseInstructions
}

const defaultBasePrompt = "You are an expert editor who specialises in cleaning up dictated text using British English conventions."

const defaultBaseInstructions = `- Use British English spelling and conventions
- Fix punctuation and capitalisation
- Remove filler words (um, uh, you know, etc.)
- Improve sentence structure and flow
- Maintain the original meaning and intent
- Don't add content that wasn't implied in the original`
