package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrExists is returned when init would overwrite a config file.
var ErrExists = errors.New("config file already exists")

// Default returns the built-in configuration without file or environment
// overrides.
func Default() Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// keyComments annotate the generated template.
var keyComments = map[string]string{
	"slack_bot_token":  "Bot token (xoxb-…); SLACK_BOT_TOKEN also works",
	"slack_channel_id": "Channel to harvest, e.g. C0123456789",
	"oldest":           "Only read messages after this time (RFC 3339, YYYY-MM-DD or unix seconds)",
	"store":            "Destination: notion, sqlite or mongo",
	"crossref_mailto":  "Contact address for the Crossref polite pool",
	"ads_token":        "NASA ADS token for Oxford astronomy journals",
	"respect_robots":   "Check robots.txt before fetching pages",
	"timezone":         "Zone for human-readable times",
	"heuristics_file":  "YAML file overriding the title heuristics",
	"journal":          "Append one JSON line per record to this file",
}

// Template renders the default configuration as commented YAML.
func Template() ([]byte, error) {
	var body yaml.Node
	if err := body.Encode(Default()); err != nil {
		return nil, fmt.Errorf("encoding template: %w", err)
	}
	for i := 0; i+1 < len(body.Content); i += 2 {
		key := body.Content[i]
		if c, ok := keyComments[key.Value]; ok {
			key.HeadComment = c
		}
	}
	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "linkharvest configuration. Environment variables LH_<KEY> override these values.",
		Content:     []*yaml.Node{&body},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes the template to path, creating parent directories.
// An existing file is kept unless force is set.
func WriteTemplate(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, ErrExists)
	}
	data, err := Template()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// Secrets may be added later.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
