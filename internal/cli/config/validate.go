package config

import (
	"errors"
	"fmt"
	"strings"
)

var validOutputs = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.StatePath) == "" {
		errs = append(errs, errors.New("state_path is required"))
	}
	valid := false
	for _, o := range validOutputs {
		if c.OutputFormat == o {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(validOutputs, "|"), c.OutputFormat))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.PreviewRows < 1 {
		errs = append(errs, fmt.Errorf("preview_rows must be at least 1, got %d", c.PreviewRows))
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
