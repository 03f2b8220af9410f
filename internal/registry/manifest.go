// Package registry loads the component manifest: the declared set of
// model components (id, size, rest device) the placement policy manages.
package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"memgov/internal/common/fsutil"
	"memgov/pkg/types"
)

// Component is one manifest entry.
type Component struct {
	ID     string `yaml:"id"`
	SizeMB uint64 `yaml:"size_mb"`
	// Rest is the device the component lives on between uses:
	// "accelerator", "host" or "none". Defaults to "host".
	Rest string `yaml:"rest,omitempty"`
}

// SizeBytes converts the manifest's MB figure to bytes.
func (c Component) SizeBytes() uint64 { return c.SizeMB << 20 }

// RestDevice maps the manifest string onto a device constant.
func (c Component) RestDevice() types.Device {
	switch c.Rest {
	case "", string(types.DeviceHost):
		return types.DeviceHost
	case string(types.DeviceAccelerator):
		return types.DeviceAccelerator
	default:
		return types.DeviceNone
	}
}

type manifest struct {
	Components []Component `yaml:"components"`
}

// LoadManifest reads and validates a YAML component manifest.
func LoadManifest(path string) ([]Component, error) {
	base, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	seen := make(map[string]struct{}, len(m.Components))
	for i, c := range m.Components {
		if c.ID == "" {
			return nil, fmt.Errorf("manifest entry %d: missing id", i)
		}
		if c.SizeMB == 0 {
			return nil, fmt.Errorf("manifest entry %q: size_mb must be positive", c.ID)
		}
		switch c.Rest {
		case "", string(types.DeviceHost), string(types.DeviceAccelerator), string(types.DeviceNone):
		default:
			return nil, fmt.Errorf("manifest entry %q: unknown rest device %q", c.ID, c.Rest)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("manifest entry %q: duplicate id", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return m.Components, nil
}
