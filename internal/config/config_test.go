package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/triage/internal/workflow"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/policy"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.5, cfg.Policy.AdmissionThreshold)
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.yaml")
	content := `
policy:
  admission_threshold: 0.6
retries:
  fusion:
    max_retries: 3
    delay: 2s
checkpoint:
  backend: file
  dir: /tmp/cp
  mask_pii: true
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Policy.AdmissionThreshold)
	assert.Equal(t, policy.DefaultThresholds().CriticalSpO2, cfg.Policy.CriticalSpO2, "unset fields keep defaults")
	assert.Equal(t, workflow.Retry{MaxRetries: 3, Delay: 2 * time.Second}, cfg.Retries[domain.NodeFusion])
	assert.Equal(t, workflow.DefaultRetries()[domain.NodeTextPredictor], cfg.Retries[domain.NodeTextPredictor])
	assert.Equal(t, BackendFile, cfg.Checkpoint.Backend)
	assert.True(t, cfg.Checkpoint.MaskPII)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"TRIAGE_ADMISSION_THRESHOLD": "0.65",
		"TRIAGE_MAX_RETRIES":         "4",
		"TRIAGE_RETRY_DELAY":         "0.25",
		"TRIAGE_LOG_LEVEL":           "debug",
		"TRIAGE_DB_PATH":             "/data/er.db",
		"TRIAGE_REDIS_ADDR":          "redis:6379",
		"TRIAGE_INFERENCE_URL":       "http://models:9000",
	}))
	require.NoError(t, err)

	assert.Equal(t, 0.65, cfg.Policy.AdmissionThreshold)
	for _, node := range []string{domain.NodeStructuredPredictor, domain.NodeTextPredictor, domain.NodeFusion} {
		assert.Equal(t, workflow.Retry{MaxRetries: 4, Delay: 250 * time.Millisecond}, cfg.Retries[node], node)
	}
	assert.Equal(t, workflow.Retry{}, cfg.Retries[domain.NodeFetchData])
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/data/er.db", cfg.Records.Path)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, PredictorsHTTP, cfg.Predictors.Mode)
	assert.Equal(t, "http://models:9000", cfg.Predictors.BaseURL)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	cfg := Default()
	before := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"TRIAGE_ADMISSION_THRESHOLD": "high",
		"TRIAGE_MAX_RETRIES":         "many",
		"TRIAGE_RETRY_DELAY":         "soon",
	}))
	require.Error(t, err)
	assert.ErrorContains(t, err, "TRIAGE_ADMISSION_THRESHOLD")
	assert.ErrorContains(t, err, "TRIAGE_MAX_RETRIES")
	assert.ErrorContains(t, err, "TRIAGE_RETRY_DELAY")

	if diff := cmp.Diff(before, cfg); diff != "" {
		t.Errorf("invalid values must not change the config (-want +got):\n%s", diff)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Policy.AdmissionThreshold = 1.5
	cfg.Audit.Backend = "kafka"
	cfg.Predictors.Mode = PredictorsHTTP
	cfg.Retries[domain.NodeFusion] = workflow.Retry{MaxRetries: -1}
	cfg.Lock = LockConfig{Enabled: true, Backend: BackendRedis}
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"audit.backend", "base_url", "retries.fusion", "lock.ttl", "redis.addr"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestYAML_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Checkpoint.EncryptionKey = "super-secret"
	cfg.Redis.Password = "hunter2"

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "super-secret")
	assert.NotContains(t, string(out), "hunter2")
	assert.Contains(t, string(out), "admission_threshold: 0.5")
	assert.Equal(t, "super-secret", cfg.Checkpoint.EncryptionKey)
}
