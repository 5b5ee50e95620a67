package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/triage/internal/workflow"
	"github.com/aretw0/triage/pkg/domain"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// modelNodes are the nodes whose retry budget TRIAGE_MAX_RETRIES and TRIAGE_RETRY_DELAY adjust.
var modelNodes = []string{domain.NodeStructuredPredictor, domain.NodeTextPredictor, domain.NodeFusion}

// ApplyEnv overrides settings from TRIAGE_* variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	var errs []error
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("TRIAGE_ADMISSION_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRIAGE_ADMISSION_THRESHOLD: %w", err))
		} else {
			c.Policy.AdmissionThreshold = f
		}
	}
	if v, ok := get("TRIAGE_MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRIAGE_MAX_RETRIES: %w", err))
		} else {
			c.setModelRetries(func(r *workflow.Retry) { r.MaxRetries = n })
		}
	}
	if v, ok := get("TRIAGE_RETRY_DELAY"); ok {
		d, err := parseDelay(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRIAGE_RETRY_DELAY: %w", err))
		} else {
			c.setModelRetries(func(r *workflow.Retry) { r.Delay = d })
		}
	}
	if v, ok := get("TRIAGE_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := get("TRIAGE_LOG_FORMAT"); ok {
		c.Logging.Format = v
	}
	if v, ok := get("TRIAGE_DB_PATH"); ok {
		c.Records.Path = v
	}
	if v, ok := get("TRIAGE_REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := get("TRIAGE_INFERENCE_URL"); ok {
		c.Predictors.BaseURL = v
		c.Predictors.Mode = PredictorsHTTP
	}
	if v, ok := get("TRIAGE_INFERENCE_TOKEN"); ok {
		c.Predictors.Token = v
	}
	if v, ok := get("TRIAGE_ENCRYPTION_KEY"); ok {
		c.Checkpoint.EncryptionKey = v
	}
	if v, ok := get("TRIAGE_SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	return errors.Join(errs...)
}

func (c *Config) setModelRetries(update func(*workflow.Retry)) {
	if c.Retries == nil {
		c.Retries = map[string]workflow.Retry{}
	}
	for _, node := range modelNodes {
		r := c.Retries[node]
		update(&r)
		c.Retries[node] = r
	}
}

// parseDelay accepts a Go duration ("750ms") or plain seconds ("0.5").
func parseDelay(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
