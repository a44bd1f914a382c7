package facts

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Provider gathers a fresh interface snapshot.
type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Watcher is implemented by providers that can report interface changes as
// they happen.
type Watcher interface {
	Watch(ctx context.Context, notify func()) error
}

// StaticProvider serves a fixed set of flat facts.
type StaticProvider struct {
	Facts map[string]string
}

// Snapshot implements Provider.
func (p StaticProvider) Snapshot(_ context.Context) (*Snapshot, error) {
	return FromFlat(p.Facts)
}

// FileProvider reads flat facts from a YAML or JSON document, such as the
// output of `facter --json`. The file is re-read on every call.
type FileProvider struct {
	Path string
}

// Snapshot implements Provider.
func (p FileProvider) Snapshot(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("facts: read %s: %w", p.Path, err)
	}
	flat, err := ParseFlat(data)
	if err != nil {
		return nil, fmt.Errorf("facts: parse %s: %w", p.Path, err)
	}
	return FromFlat(flat)
}

// ParseFlat decodes a YAML or JSON mapping of fact names to scalar values.
// Structured facts (maps and lists) are ignored.
func ParseFlat(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	flat := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			flat[key] = v
		case int:
			flat[key] = strconv.Itoa(v)
		case float64:
			flat[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			flat[key] = strconv.FormatBool(v)
		}
	}
	return flat, nil
}
