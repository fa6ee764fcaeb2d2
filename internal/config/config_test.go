package config

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		shouldSet    bool
		defaultValue int
		want         int
	}{
		{name: "valid integer", envValue: "200", shouldSet: true, defaultValue: 100, want: 200},
		{name: "unset falls back", shouldSet: false, defaultValue: 100, want: 100},
		{name: "invalid falls back", envValue: "not_a_number", shouldSet: true, defaultValue: 100, want: 100},
		{name: "negative is returned as is", envValue: "-50", shouldSet: true, defaultValue: 100, want: -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv("TEST_INT_VAR", tt.envValue)
			}

			got := getEnvAsInt("TEST_INT_VAR", tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsFloatBoolDuration(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.75")
	t.Setenv("TEST_FLOAT_BAD", "abc")
	t.Setenv("TEST_BOOL", "false")
	t.Setenv("TEST_DURATION", "5s")

	if got := getEnvAsFloat("TEST_FLOAT", 0.1); got != 0.75 {
		t.Errorf("getEnvAsFloat() = %v, want 0.75", got)
	}
	if got := getEnvAsFloat("TEST_FLOAT_BAD", 0.1); got != 0.1 {
		t.Errorf("getEnvAsFloat() = %v, want default 0.1", got)
	}
	if got := getEnvAsBool("TEST_BOOL", true); got {
		t.Errorf("getEnvAsBool() = %v, want false", got)
	}
	if got := getEnvAsDuration("TEST_DURATION", time.Second); got != 5*time.Second {
		t.Errorf("getEnvAsDuration() = %v, want 5s", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MatchThreshold != 0.6 {
		t.Errorf("MatchThreshold = %v, want 0.6", cfg.MatchThreshold)
	}
	if cfg.MinFaceSize != 50 {
		t.Errorf("MinFaceSize = %d, want 50", cfg.MinFaceSize)
	}
	if cfg.FaceStrategy != FaceStrategyService {
		t.Errorf("FaceStrategy = %q, want %q", cfg.FaceStrategy, FaceStrategyService)
	}
	if cfg.ArtifactStore != ArtifactStoreDisk {
		t.Errorf("ArtifactStore = %q, want %q", cfg.ArtifactStore, ArtifactStoreDisk)
	}
	if cfg.SMTPServer != "smtp.gmail.com" || cfg.SMTPPort != 587 {
		t.Errorf("SMTP = %s:%d, want smtp.gmail.com:587", cfg.SMTPServer, cfg.SMTPPort)
	}
	if cfg.SightingJobMaxAttempts != 3 {
		t.Errorf("SightingJobMaxAttempts = %d, want 3", cfg.SightingJobMaxAttempts)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FACE_MATCH_THRESHOLD", "0.8")
	t.Setenv("MIN_FACE_SIZE", "64")
	t.Setenv("FACE_STRATEGY", "OpenCV")
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MatchThreshold != 0.8 {
		t.Errorf("MatchThreshold = %v, want 0.8", cfg.MatchThreshold)
	}
	if cfg.MinFaceSize != 64 {
		t.Errorf("MinFaceSize = %d, want 64", cfg.MinFaceSize)
	}
	if cfg.FaceStrategy != FaceStrategyOpenCV {
		t.Errorf("FaceStrategy = %q, want %q", cfg.FaceStrategy, FaceStrategyOpenCV)
	}
	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "threshold above one", env: map[string]string{"FACE_MATCH_THRESHOLD": "1.5"}},
		{name: "threshold zero", env: map[string]string{"FACE_MATCH_THRESHOLD": "0"}},
		{name: "min face size zero", env: map[string]string{"MIN_FACE_SIZE": "0"}},
		{name: "unknown strategy", env: map[string]string{"FACE_STRATEGY": "dlib"}},
		{name: "unknown artifact store", env: map[string]string{"ARTIFACT_STORE": "ftp"}},
		{name: "s3 without bucket", env: map[string]string{"ARTIFACT_STORE": "s3", "S3_ENDPOINT": "localhost:9000"}},
		{name: "workers zero", env: map[string]string{"SIGHTING_WORKERS": "0"}},
		{name: "max attempts negative", env: map[string]string{"SIGHTING_JOB_MAX_ATTEMPTS": "-1"}},
		{name: "webhook without secret", env: map[string]string{"ALERT_WEBHOOK_URL": "https://example.com/hook"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Errorf("Load() error = nil, want validation error")
			}
		})
	}
}

func TestConfig_SMTPEnabled(t *testing.T) {
	if (&Config{}).SMTPEnabled() {
		t.Error("SMTPEnabled() = true for empty username")
	}
	if !(&Config{SMTPUsername: "alerts@example.com"}).SMTPEnabled() {
		t.Error("SMTPEnabled() = false with username set")
	}
}
