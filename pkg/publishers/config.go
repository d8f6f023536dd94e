package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sink types.
const (
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeHTTP      = "http"
	TypeGCPPubSub = "gcp_pubsub"
)

const (
	webhookDefaultMethod  = "POST"
	webhookDefaultTimeout = 5
)

// Config is the decoded publishers file.
type Config struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig declares one change sink. Actions restricts which employee
// actions reach the sink (all when empty); OmitRecord strips the record body
// so the sink only learns the action and employee id.
type PublisherConfig struct {
	ID         string                    `json:"id" yaml:"id"`
	Type       string                    `json:"type" yaml:"type"`
	Enabled    *bool                     `json:"enabled" yaml:"enabled"`
	Actions    []string                  `json:"actions" yaml:"actions"`
	OmitRecord bool                      `json:"omit_record" yaml:"omit_record"`
	SQS        *SQSPublisherConfig       `json:"sqs" yaml:"sqs"`
	SNS        *SNSPublisherConfig       `json:"sns" yaml:"sns"`
	HTTP       *HTTPPublisherConfig      `json:"http" yaml:"http"`
	GCPPubSub  *GCPPubSubPublisherConfig `json:"gcp_pubsub" yaml:"gcp_pubsub"`
}

// SQSPublisherConfig targets one SQS queue.
type SQSPublisherConfig struct {
	QueueURL       string `json:"uri" yaml:"uri"`
	AWSCredentials `yaml:",inline"`
}

// SNSPublisherConfig targets one SNS topic.
type SNSPublisherConfig struct {
	TopicARN       string `json:"topic_arn" yaml:"topic_arn"`
	AWSCredentials `yaml:",inline"`
}

// GCPPubSubPublisherConfig targets one Pub/Sub topic.
type GCPPubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// HTTPPublisherConfig targets a webhook.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// LoadConfig reads, normalizes and validates a publishers file. JSON is used
// for ".json"; anything else is parsed as YAML.
func LoadConfig(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &cfg)
	} else {
		err = yaml.Unmarshal(raw, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode publishers file %s: %w", filepath.Base(path), err)
	}
	if len(cfg.Publishers) == 0 {
		return nil, errors.New("publishers file declares no publishers")
	}

	seen := make(map[string]struct{}, len(cfg.Publishers))
	for i := range cfg.Publishers {
		p := &cfg.Publishers[i]
		if err := p.normalize(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return &cfg, nil
}

// Enabled returns the publishers not switched off.
func (c *Config) Enabled() []PublisherConfig {
	if c == nil {
		return nil
	}
	out := make([]PublisherConfig, 0, len(c.Publishers))
	for _, p := range c.Publishers {
		if p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// IsEnabled defaults to true.
func (c PublisherConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c *PublisherConfig) normalize() error {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))

	if len(c.Actions) > 0 {
		actions := make([]string, 0, len(c.Actions))
		for _, raw := range c.Actions {
			a, err := ParseAction(raw)
			if err != nil {
				return fmt.Errorf("publisher %q: %w", c.ID, err)
			}
			actions = append(actions, a)
		}
		c.Actions = actions
	}

	if c.SQS != nil {
		c.SQS.QueueURL = strings.TrimSpace(c.SQS.QueueURL)
		c.SQS.AWSCredentials = c.SQS.AWSCredentials.trimmed()
	}
	if c.SNS != nil {
		c.SNS.TopicARN = strings.TrimSpace(c.SNS.TopicARN)
		c.SNS.AWSCredentials = c.SNS.AWSCredentials.trimmed()
	}
	if g := c.GCPPubSub; g != nil {
		g.ProjectID = strings.TrimSpace(g.ProjectID)
		g.Topic = strings.TrimSpace(g.Topic)
		g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
		g.Endpoint = strings.TrimSpace(g.Endpoint)
	}
	if h := c.HTTP; h != nil {
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = webhookDefaultMethod
		}
		if h.TimeoutSeconds <= 0 {
			h.TimeoutSeconds = webhookDefaultTimeout
		}
	}
	return nil
}

func (c PublisherConfig) validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}

	var missing []string
	switch c.Type {
	case TypeSQS:
		if c.SQS == nil {
			return fmt.Errorf("publisher %q: sqs block is required", c.ID)
		}
		missing = required(map[string]string{"sqs.uri": c.SQS.QueueURL, "sqs.region": c.SQS.Region})
	case TypeSNS:
		if c.SNS == nil {
			return fmt.Errorf("publisher %q: sns block is required", c.ID)
		}
		missing = required(map[string]string{"sns.topic_arn": c.SNS.TopicARN, "sns.region": c.SNS.Region})
	case TypeHTTP:
		if c.HTTP == nil {
			return fmt.Errorf("publisher %q: http block is required", c.ID)
		}
		missing = required(map[string]string{"http.url": c.HTTP.URL})
	case TypeGCPPubSub:
		if c.GCPPubSub == nil {
			return fmt.Errorf("publisher %q: gcp_pubsub block is required", c.ID)
		}
		missing = required(map[string]string{"gcp_pubsub.project_id": c.GCPPubSub.ProjectID, "gcp_pubsub.topic": c.GCPPubSub.Topic})
	case "":
		return fmt.Errorf("publisher %q: type is required", c.ID)
	default:
		return fmt.Errorf("publisher %q: unsupported type %q", c.ID, c.Type)
	}
	if len(missing) > 0 {
		return fmt.Errorf("publisher %q: missing %s", c.ID, strings.Join(missing, ", "))
	}
	return nil
}

// required returns the sorted names of empty fields.
func required(fields map[string]string) []string {
	var missing []string
	for name, v := range fields {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 1 {
		sort.Strings(missing)
	}
	return missing
}
