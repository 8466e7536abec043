// Package secrets resolves sensitive configuration values.
package secrets

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Source resolves a secret by key
type Source interface {
	Get(key, fallback string) string
}

// NewSource returns a Doppler-backed source when a project is configured and
// the CLI is installed, otherwise the process environment.
func NewSource(project, config string) Source {
	if project == "" {
		return EnvSource{}
	}
	d := NewDopplerClient(project, config)
	if err := d.Initialize(); err != nil {
		return EnvSource{}
	}
	return d
}

// EnvSource reads secrets from environment variables
type EnvSource struct{}

func (EnvSource) Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DopplerClient provides access to secrets stored in Doppler
type DopplerClient struct {
	Project string
	Config  string

	lookPath func(string) (string, error)
	run      func(name string, args ...string) ([]byte, error)
}

// NewDopplerClient creates a new Doppler client
func NewDopplerClient(project, config string) *DopplerClient {
	return &DopplerClient{
		Project:  project,
		Config:   config,
		lookPath: exec.LookPath,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
	}
}

// Initialize checks that the Doppler CLI is installed
func (d *DopplerClient) Initialize() error {
	if _, err := d.lookPath("doppler"); err != nil {
		return fmt.Errorf("doppler CLI not found: %w", err)
	}
	return nil
}

// GetSecret retrieves a secret, preferring values injected by `doppler run`
func (d *DopplerClient) GetSecret(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	args := []string{"secrets", "get", key, "--project", d.Project, "--plain"}
	if d.Config != "" {
		args = append(args, "--config", d.Config)
	}
	output, err := d.run("doppler", args...)
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", key, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Get implements Source
func (d *DopplerClient) Get(key, fallback string) string {
	value, err := d.GetSecret(key)
	if err != nil || value == "" {
		return fallback
	}
	return value
}
