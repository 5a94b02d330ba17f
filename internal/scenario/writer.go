package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/liveoverlay/internal/system"
)

// DefaultDir is where generated scenarios are written.
const DefaultDir = "scenarios"

// WriteScenario writes a scenario to a YAML file, creating its directory.
func WriteScenario(scenario *Scenario, path string) error {
	data, err := yaml.Marshal(scenario)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// ReadScenario reads and validates a scenario from a YAML file.
func ReadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &scenario, nil
}

// GenerateScenarioPath creates a timestamped scenario filename in dir.
func GenerateScenarioPath(dir string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("scenario_%s.yaml", timestamp))
}

// FindLatestScenario returns the most recently modified scenario in dir.
func FindLatestScenario(dir string) (string, error) {
	return system.FindLatestScenario(dir)
}
