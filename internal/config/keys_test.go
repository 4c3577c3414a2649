package config

import "testing"

func TestGetAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		cfg        *Config
		want       string
		wantErr    error
		wantSource KeySource
	}{
		{
			name:       "from environment variable",
			env:        "sk-ant-env-key",
			cfg:        &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}},
			want:       "sk-ant-env-key",
			wantSource: KeySourceEnv,
		},
		{
			name:       "from config",
			cfg:        &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}},
			want:       "sk-ant-config-key",
			wantSource: KeySourceConfig,
		},
		{
			name:       "bedrock needs no key",
			env:        "sk-ant-env-key",
			cfg:        &Config{Anthropic: AnthropicConfig{UseBedrock: true}},
			want:       "",
			wantSource: KeySourceBedrock,
		},
		{
			name:       "no key configured",
			cfg:        &Config{},
			wantErr:    ErrNoAPIKey,
			wantSource: KeySourceNone,
		},
		{
			name:       "nil config",
			wantErr:    ErrNoAPIKey,
			wantSource: KeySourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", tt.env)

			got, err := GetAPIKey(tt.cfg)
			if err != tt.wantErr {
				t.Fatalf("GetAPIKey() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetAPIKey() = %q, want %q", got, tt.want)
			}
			if src := GetAPIKeySource(tt.cfg); src != tt.wantSource {
				t.Errorf("GetAPIKeySource() = %q, want %q", src, tt.wantSource)
			}
		})
	}
}

func TestGetAPIKey_UndefinedReference(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("JIT_TEST_KEY", "sk-ant-expanded-key")

	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "${JIT_TEST_KEY}"}}
	if key, err := GetAPIKey(cfg); err != nil || key != "sk-ant-expanded-key" {
		t.Errorf("GetAPIKey() = %q, %v", key, err)
	}

	cfg.Anthropic.APIKey = "${JIT_UNDEFINED_KEY}"
	if _, err := GetAPIKey(cfg); err != ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey for undefined reference, got %v", err)
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-ant-REDACTED", "sk-ant-...mnop"},
	}

	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
