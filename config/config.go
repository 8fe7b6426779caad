/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
)

const (
	DEFAULT_TARGET_CURRENCY = "BTNF"
	DEFAULT_WEBHOOK_QUEUE   = "claimpay_webhooks"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"CLAIMPAY_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"CLAIMPAY_REDIS_DNS"`
}

// PartnerEndpoint describes one external validation service.
type PartnerEndpoint struct {
	Url        string            `json:"url"`
	SoapAction string            `json:"soap_action"`
	HealthPath string            `json:"health_path"`
	Headers    map[string]string `json:"headers"`
}

type PartnersConfig struct {
	Consortium         PartnerEndpoint `json:"consortium"`
	ContractA          PartnerEndpoint `json:"contract_a"`
	ContractB          PartnerEndpoint `json:"contract_b"`
	ConsortiumProducts []int           `json:"consortium_products"`
}

// ResilienceConfig holds the retry and circuit breaker policy applied to every partner client.
// Durations are in seconds.
type ResilienceConfig struct {
	AttemptTimeoutSec *int `json:"attempt_timeout_sec" envconfig:"CLAIMPAY_PARTNER_ATTEMPT_TIMEOUT_SEC"`
	MaxRetries        *int `json:"max_retries" envconfig:"CLAIMPAY_PARTNER_MAX_RETRIES"`
	InitialBackoffSec *int `json:"initial_backoff_sec" envconfig:"CLAIMPAY_PARTNER_INITIAL_BACKOFF_SEC"`
	BreakerThreshold  *int `json:"breaker_threshold" envconfig:"CLAIMPAY_PARTNER_BREAKER_THRESHOLD"`
	BreakerOpenSec    *int `json:"breaker_open_sec" envconfig:"CLAIMPAY_PARTNER_BREAKER_OPEN_SEC"`
}

// CurrencyConfig is the fallback rate table. Rates are keyed "FROM:TO" and written as decimal strings.
type CurrencyConfig struct {
	Target string            `json:"target" envconfig:"CLAIMPAY_CURRENCY_TARGET"`
	Rates  map[string]string `json:"rates"`
}

type LockConfig struct {
	Enabled *bool `json:"enabled" envconfig:"CLAIMPAY_LOCK_ENABLED"`
	TTLSec  *int  `json:"ttl_sec" envconfig:"CLAIMPAY_LOCK_TTL_SEC"`
}

type CacheConfig struct {
	PhaseRulesTTLSec *int `json:"phase_rules_ttl_sec" envconfig:"CLAIMPAY_CACHE_PHASE_RULES_TTL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"CLAIMPAY_WEBHOOK_URL"`
	Headers map[string]string `json:"headers"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" envconfig:"CLAIMPAY_TRACING_ENABLED"`
	Endpoint    string `json:"endpoint" envconfig:"CLAIMPAY_TRACING_ENDPOINT"`
	ServiceName string `json:"service_name" envconfig:"CLAIMPAY_TRACING_SERVICE_NAME"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"CLAIMPAY_QUEUE_WEBHOOK"`
	Concurrency    int    `json:"concurrency" envconfig:"CLAIMPAY_QUEUE_CONCURRENCY"`
	MonitoringPort string `json:"monitoring_port" envconfig:"CLAIMPAY_QUEUE_MONITORING_PORT"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"CLAIMPAY_PROJECT_NAME"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Partners     PartnersConfig   `json:"partners"`
	Resilience   ResilienceConfig `json:"resilience"`
	Currency     CurrencyConfig   `json:"currency"`
	Lock         LockConfig       `json:"lock"`
	Cache        CacheConfig      `json:"cache"`
	Notification Notification     `json:"notification"`
	Tracing      TracingConfig    `json:"tracing"`
	Queue        QueueConfig      `json:"queue"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("claimpay", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called claimpay.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "ClaimPay"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Currency.Target = strings.ToUpper(strings.TrimSpace(cnf.Currency.Target))

	if err := cnf.Partners.validate(); err != nil {
		return fmt.Errorf("invalid partners config: %w", err)
	}
	if len(cnf.Partners.ConsortiumProducts) == 0 {
		cnf.Partners.ConsortiumProducts = []int{6814, 7712, 7713, 7714}
	}

	cnf.Resilience.addDefaults()

	if cnf.Currency.Target == "" {
		cnf.Currency.Target = DEFAULT_TARGET_CURRENCY
		log.Printf("Warning: Target currency not specified. Setting default: %s", DEFAULT_TARGET_CURRENCY)
	}

	if cnf.Lock.Enabled == nil {
		cnf.Lock.Enabled = ptr.Bool(true)
	}
	if cnf.Lock.TTLSec == nil {
		cnf.Lock.TTLSec = ptr.Int(60)
	}
	if cnf.Cache.PhaseRulesTTLSec == nil {
		cnf.Cache.PhaseRulesTTLSec = ptr.Int(300)
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = DEFAULT_WEBHOOK_QUEUE
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = 5
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5004"
	}

	if cnf.Tracing.ServiceName == "" {
		cnf.Tracing.ServiceName = "claimpay"
	}

	return nil
}

func (p PartnersConfig) validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Consortium, validation.By(validateEndpoint)),
		validation.Field(&p.ContractA, validation.By(validateEndpoint)),
		validation.Field(&p.ContractB, validation.By(validateEndpoint)),
	)
}

func validateEndpoint(value interface{}) error {
	e, ok := value.(PartnerEndpoint)
	if !ok {
		return errors.New("must be a partner endpoint")
	}
	return validation.ValidateStruct(&e,
		validation.Field(&e.Url, is.URL),
	)
}

func (r *ResilienceConfig) addDefaults() {
	if r.AttemptTimeoutSec == nil {
		r.AttemptTimeoutSec = ptr.Int(10)
	}
	if r.MaxRetries == nil {
		r.MaxRetries = ptr.Int(3)
	}
	if r.InitialBackoffSec == nil {
		r.InitialBackoffSec = ptr.Int(2)
	}
	if r.BreakerThreshold == nil {
		r.BreakerThreshold = ptr.Int(5)
	}
	if r.BreakerOpenSec == nil {
		r.BreakerOpenSec = ptr.Int(30)
	}
}

// AttemptTimeout returns the per-attempt partner timeout, defaulting when unset.
func (r ResilienceConfig) AttemptTimeout() time.Duration {
	return seconds(r.AttemptTimeoutSec, 10)
}

func (r ResilienceConfig) InitialBackoff() time.Duration {
	return seconds(r.InitialBackoffSec, 2)
}

func (r ResilienceConfig) BreakerOpen() time.Duration {
	return seconds(r.BreakerOpenSec, 30)
}

func seconds(v *int, def int) time.Duration {
	if v == nil {
		return time.Duration(def) * time.Second
	}
	return time.Duration(*v) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
