package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// Supported publisher types.
	TypeQueue = "queue"
	TypeHTTP  = "http"

	// Supported queue providers.
	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderGCP    = "gcp"
	QueueProviderKafka  = "kafka"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

type configFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig is one sink entry of the publishers file.
type PublisherConfig struct {
	ID      string       `json:"id" yaml:"id"`
	Type    string       `json:"type" yaml:"type"`
	Enabled *bool        `json:"enabled" yaml:"enabled"`
	Queue   *QueueConfig `json:"queue" yaml:"queue"`
	HTTP    *HTTPConfig  `json:"http" yaml:"http"`
}

// QueueConfig selects a queue provider and carries its settings.
type QueueConfig struct {
	Provider string       `json:"provider" yaml:"provider"`
	SQS      *SQSConfig   `json:"sqs" yaml:"sqs"`
	SNS      *SNSConfig   `json:"sns" yaml:"sns"`
	GCP      *GCPConfig   `json:"gcp" yaml:"gcp"`
	Kafka    *KafkaConfig `json:"kafka" yaml:"kafka"`
}

// AWSCredentials are optional static credentials. When both are empty the
// default AWS credential chain is used.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// SQSConfig targets an SQS queue.
type SQSConfig struct {
	QueueURL string `json:"queue_url" yaml:"queue_url"`
	Region   string `json:"region" yaml:"region"`
	AWSCredentials `yaml:",inline"`
}

// SNSConfig targets an SNS topic.
type SNSConfig struct {
	TopicARN string `json:"topic_arn" yaml:"topic_arn"`
	Region   string `json:"region" yaml:"region"`
	AWSCredentials `yaml:",inline"`
}

// GCPConfig targets a Pub/Sub topic.
type GCPConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// KafkaConfig targets a Kafka topic.
type KafkaConfig struct {
	Brokers     []string `json:"brokers" yaml:"brokers"`
	Topic       string   `json:"topic" yaml:"topic"`
	MaxAttempts int      `json:"max_attempts" yaml:"max_attempts"`
}

// HTTPConfig is a webhook sink.
type HTTPConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ConfigRegistry holds the validated publisher entries.
type ConfigRegistry struct {
	mu         sync.RWMutex
	publishers []PublisherConfig
	idx        map[string]PublisherConfig
}

// LoadRegistry loads the publishers file. Environment variables in the file are expanded.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	return ParseRegistry([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
}

// ParseRegistry decodes, sanitizes and validates publishers content.
func ParseRegistry(data []byte, ext string) (*ConfigRegistry, error) {
	var file configFile

	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode json publishers: %w", err)
		}
	case "", ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode yaml publishers: %w", err)
		}
	default:
		return nil, fmt.Errorf("publishers file format %q not recognized (expected YAML or JSON)", ext)
	}

	if len(file.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	reg := &ConfigRegistry{
		publishers: make([]PublisherConfig, 0, len(file.Publishers)),
		idx:        make(map[string]PublisherConfig, len(file.Publishers)),
	}
	for i, cfg := range file.Publishers {
		cfg = sanitizePublisherConfig(cfg)
		if err := validatePublisherConfig(cfg); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		reg.publishers = append(reg.publishers, cfg)
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

func sanitizePublisherConfig(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}

	if cfg.Queue != nil {
		qc := *cfg.Queue
		qc.Provider = strings.ToLower(strings.TrimSpace(qc.Provider))
		if qc.SQS != nil {
			c := *qc.SQS
			c.QueueURL = strings.TrimSpace(c.QueueURL)
			c.Region = strings.TrimSpace(c.Region)
			c.AWSCredentials = sanitizeCredentials(c.AWSCredentials)
			qc.SQS = &c
		}
		if qc.SNS != nil {
			c := *qc.SNS
			c.TopicARN = strings.TrimSpace(c.TopicARN)
			c.Region = strings.TrimSpace(c.Region)
			c.AWSCredentials = sanitizeCredentials(c.AWSCredentials)
			qc.SNS = &c
		}
		if qc.GCP != nil {
			c := *qc.GCP
			c.ProjectID = strings.TrimSpace(c.ProjectID)
			c.Topic = strings.TrimSpace(c.Topic)
			c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
			qc.GCP = &c
		}
		if qc.Kafka != nil {
			c := *qc.Kafka
			c.Topic = strings.TrimSpace(c.Topic)
			c.Brokers = sanitizeBrokers(c.Brokers)
			if c.MaxAttempts <= 0 {
				c.MaxAttempts = 3
			}
			qc.Kafka = &c
		}
		cfg.Queue = &qc
	}

	if cfg.HTTP != nil {
		c := *cfg.HTTP
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}

	return cfg
}

func sanitizeCredentials(c AWSCredentials) AWSCredentials {
	c.AccessKeyID = strings.TrimSpace(c.AccessKeyID)
	c.SecretAccessKey = strings.TrimSpace(c.SecretAccessKey)
	return c
}

// sanitizeBrokers accepts both list entries and comma-separated strings.
func sanitizeBrokers(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, b := range strings.Split(entry, ",") {
			if b = strings.TrimSpace(b); b != "" {
				out = append(out, b)
			}
		}
	}
	return out
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validatePublisherConfig(cfg PublisherConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	switch cfg.Type {
	case "":
		return fmt.Errorf("type is required for publisher %q", cfg.ID)
	case TypeQueue:
		if cfg.Queue == nil {
			return fmt.Errorf("queue config required for publisher %q", cfg.ID)
		}
		return validateQueueConfig(cfg.ID, cfg.Queue)
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("http config required for publisher %q", cfg.ID)
		}
		if cfg.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for publisher %q", cfg.ID)
		}
		return nil
	default:
		return fmt.Errorf("type %q not supported for publisher %q", cfg.Type, cfg.ID)
	}
}

func validateQueueConfig(id string, qc *QueueConfig) error {
	switch qc.Provider {
	case QueueProviderAWSSQS:
		if qc.SQS == nil {
			return fmt.Errorf("sqs config required for publisher %q", id)
		}
		if qc.SQS.QueueURL == "" {
			return fmt.Errorf("sqs.queue_url is required for publisher %q", id)
		}
		if qc.SQS.Region == "" {
			return fmt.Errorf("sqs.region is required for publisher %q", id)
		}
		return validateCredentials(id, "sqs", qc.SQS.AWSCredentials)
	case QueueProviderAWSSNS:
		if qc.SNS == nil {
			return fmt.Errorf("sns config required for publisher %q", id)
		}
		if qc.SNS.TopicARN == "" {
			return fmt.Errorf("sns.topic_arn is required for publisher %q", id)
		}
		if qc.SNS.Region == "" {
			return fmt.Errorf("sns.region is required for publisher %q", id)
		}
		return validateCredentials(id, "sns", qc.SNS.AWSCredentials)
	case QueueProviderGCP:
		if qc.GCP == nil {
			return fmt.Errorf("gcp config required for publisher %q", id)
		}
		if qc.GCP.ProjectID == "" {
			return fmt.Errorf("gcp.project_id is required for publisher %q", id)
		}
		if qc.GCP.Topic == "" {
			return fmt.Errorf("gcp.topic is required for publisher %q", id)
		}
		return nil
	case QueueProviderKafka:
		if qc.Kafka == nil {
			return fmt.Errorf("kafka config required for publisher %q", id)
		}
		if len(qc.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required for publisher %q", id)
		}
		if qc.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required for publisher %q", id)
		}
		return nil
	case "":
		return fmt.Errorf("queue.provider is required for publisher %q", id)
	default:
		return fmt.Errorf("queue provider %q not supported for publisher %q", qc.Provider, id)
	}
}

// validateCredentials requires static credentials to be given as a pair.
func validateCredentials(id, section string, c AWSCredentials) error {
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("%s.access_key_id and %s.secret_access_key must be set together for publisher %q", section, section, id)
	}
	return nil
}

// ByID returns the publisher config with the given id.
func (r *ConfigRegistry) ByID(id string) (PublisherConfig, bool) {
	if r == nil {
		return PublisherConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[strings.TrimSpace(id)]
	return cfg, ok
}

// All returns every configured publisher in file order.
func (r *ConfigRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PublisherConfig, len(r.publishers))
	copy(out, r.publishers)
	return out
}

// Enabled returns the publishers that are switched on.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, cfg := range r.All() {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue returns the enabled flag, defaulting to true.
func (cfg PublisherConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}
