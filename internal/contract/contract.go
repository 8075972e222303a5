// Package contract holds the versioned instruction contract sent to the
// reasoning engine alongside each document.
package contract

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed contracts/*.yaml
var builtin embed.FS

// DefaultVersion is the contract compiled into the binary.
const DefaultVersion = "cim-v1"

// Contract is the instruction block and request parameters for one schema version.
type Contract struct {
	Version         string `yaml:"version"`
	Model           string `yaml:"model"`
	MaxTokens       int64  `yaml:"max_tokens"`
	SystemPrompt    string `yaml:"system_prompt"`
	UserInstruction string `yaml:"user_instruction"`
}

// Default returns the embedded contract.
func Default() (*Contract, error) {
	data, err := builtin.ReadFile("contracts/cim_v1.yaml")
	if err != nil {
		return nil, eris.Wrap(err, "contract: read builtin")
	}
	return Parse(data)
}

// Load reads a contract from path. An empty path returns the embedded default.
func Load(path string) (*Contract, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "contract: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML contract document.
func Parse(data []byte) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "contract: parse yaml")
	}
	c.SystemPrompt = strings.TrimSpace(c.SystemPrompt)
	c.UserInstruction = strings.TrimSpace(c.UserInstruction)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that the contract can drive a request.
func (c *Contract) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Version) == "" {
		missing = append(missing, "version")
	}
	if strings.TrimSpace(c.Model) == "" {
		missing = append(missing, "model")
	}
	if c.SystemPrompt == "" {
		missing = append(missing, "system_prompt")
	}
	if c.UserInstruction == "" {
		missing = append(missing, "user_instruction")
	}
	if len(missing) > 0 {
		return eris.Errorf("contract: missing %s", strings.Join(missing, ", "))
	}
	if c.MaxTokens <= 0 {
		return eris.Errorf("contract %s: max_tokens must be positive, got %d", c.Version, c.MaxTokens)
	}
	return nil
}

// WithModel returns a copy using model instead of the contract's own, when model is set.
func (c Contract) WithModel(model string) *Contract {
	if m := strings.TrimSpace(model); m != "" {
		c.Model = m
	}
	return &c
}

// Fingerprint is a stable digest of the instruction text, logged with every
// analysis so prompt changes can be traced.
func (c *Contract) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.SystemPrompt + "\x00" + c.UserInstruction))
	return hex.EncodeToString(sum[:])[:16]
}
