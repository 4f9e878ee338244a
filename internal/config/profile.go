// Package config loads call profiles: named bundles of base URL, credential
// values, and default parameters kept in a YAML file so they stay out of
// shell history.
package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Profile is one named connection profile.
type Profile struct {
	BaseURL     string            `koanf:"base-url"`
	Credentials map[string]string `koanf:"credentials"`
	Parameters  map[string]string `koanf:"parameters"`
	Timeout     int               `koanf:"timeout"`
	MaxRetries  int               `koanf:"max-retries"`
}

func defaults() map[string]any {
	return map[string]any{
		"max-retries": 3,
	}
}

// LoadProfile reads the named profile from a YAML file. Values layer as
// defaults, then the file's profile section. A missing file is an error;
// a missing profile name within an existing file is too. Timeout stays zero
// when the file is silent so the document's own default applies at call time.
func LoadProfile(path, name string) (*Profile, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("profile file %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse profile file %s: %w", path, err)
	}
	if !k.Exists(name) {
		return nil, fmt.Errorf("profile %q not found in %s", name, path)
	}

	section, ok := k.Get(name).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("profile %q in %s is not a mapping", name, path)
	}

	merged := koanf.New(".")
	if err := merged.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}
	if err := merged.Load(confmap.Provider(section, "."), nil); err != nil {
		return nil, fmt.Errorf("profile %q in %s: %w", name, path, err)
	}

	var p Profile
	if err := merged.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", name, err)
	}
	return &p, nil
}

// Merge overlays non-empty override values onto the profile. Flag values win
// over file values.
func (p *Profile) Merge(baseURL string, creds, params map[string]string) {
	if baseURL != "" {
		p.BaseURL = baseURL
	}
	for k, v := range creds {
		if p.Credentials == nil {
			p.Credentials = make(map[string]string)
		}
		p.Credentials[k] = v
	}
	for k, v := range params {
		if p.Parameters == nil {
			p.Parameters = make(map[string]string)
		}
		p.Parameters[k] = v
	}
}
