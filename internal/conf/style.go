package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StyleConfig shapes how drafted messages read. It is loaded from YAML
// so users can tune voice without touching env vars.
type StyleConfig struct {
	Tone         string `yaml:"tone"`
	WritingStyle string `yaml:"writing_style"`
}

// LoadStyleConfig loads style configuration from a YAML file
func LoadStyleConfig(configPath string) (*StyleConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/style.yaml",
			"./configs/style.yaml",
			"/etc/inbox-autopilot/style.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "style.yaml"))
		}
		if wd, err := os.Getwd(); err == nil {
			paths = append(paths, filepath.Join(wd, "configs", "style.yaml"))
		}
	}

	var data []byte
	var loadedPath string

	for _, p := range paths {
		if p == "" {
			continue
		}
		if b, err := os.ReadFile(p); err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		fmt.Println("[Config] No style.yaml found, using defaults")
		return DefaultStyleConfig(), nil
	}

	fmt.Printf("[Config] Loading style from: %s\n", loadedPath)

	var config StyleConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse style.yaml: %w", err)
	}

	defaults := DefaultStyleConfig()
	if config.Tone == "" {
		config.Tone = defaults.Tone
	}
	if config.WritingStyle == "" {
		config.WritingStyle = defaults.WritingStyle
	}

	return &config, nil
}

// DefaultStyleConfig returns the default style configuration
func DefaultStyleConfig() *StyleConfig {
	return &StyleConfig{
		Tone:         "warm but direct",
		WritingStyle: "Short sentences. Lowercase is fine. No corporate phrasing, no emoji unless the other person uses them first.",
	}
}
