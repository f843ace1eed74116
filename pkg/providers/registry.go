package providers

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownSource is returned when a lookup names a provider that is not registered.
var ErrUnknownSource = errors.New("unknown source")

//go:embed sources.yaml
var defaultSources []byte

type registryFile struct {
	Providers []Provider `json:"providers" yaml:"providers"`
}

// Registry is the static Source Registry. It is immutable after construction.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	byName    map[string]int
}

// DefaultRegistry returns the built-in Source Registry.
func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(defaultSources, ".yaml")
}

// LoadRegistry loads a Source Registry from a YAML/JSON file. Environment variables in the file are expanded.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sources file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	return ParseRegistry([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
}

// ParseRegistry decodes, sanitizes and validates registry content.
func ParseRegistry(data []byte, ext string) (*Registry, error) {
	var file registryFile

	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode json sources: %w", err)
		}
	case "", ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode yaml sources: %w", err)
		}
	default:
		return nil, fmt.Errorf("sources file format %q not recognized (expected YAML or JSON)", ext)
	}

	return NewRegistry(file.Providers...)
}

// NewRegistry builds a registry from the given providers, preserving their order.
func NewRegistry(providers ...Provider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, errors.New("sources registry contains no providers")
	}

	reg := &Registry{
		providers: make([]Provider, 0, len(providers)),
		byName:    make(map[string]int, len(providers)),
	}

	ids := make(map[string]struct{}, len(providers))
	for i, p := range providers {
		p = sanitizeProvider(p)
		if err := validateProvider(p); err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		if _, dup := ids[p.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		if _, dup := reg.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", p.Name)
		}
		ids[p.ID] = struct{}{}
		reg.byName[p.Name] = len(reg.providers)
		reg.providers = append(reg.providers, p)
	}

	return reg, nil
}

func sanitizeProvider(p Provider) Provider {
	p.ID = strings.ToLower(strings.TrimSpace(p.ID))
	p.Name = strings.TrimSpace(p.Name)
	p.Kind = Kind(strings.ToLower(strings.TrimSpace(string(p.Kind))))
	p.SourceURL = strings.TrimSpace(p.SourceURL)
	p.Website = strings.TrimRight(strings.TrimSpace(p.Website), "/")
	p.Category = strings.TrimSpace(p.Category)
	p.BreakingKeywords = sanitizeList(p.BreakingKeywords)
	p.FallbackTemplates = sanitizeList(p.FallbackTemplates)
	p.Headers = sanitizeHeaders(p.Headers)
	return p
}

func sanitizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateProvider(p Provider) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required for provider %q", p.ID)
	}
	if p.SourceURL == "" {
		return fmt.Errorf("source_url is required for provider %q", p.ID)
	}
	switch p.Kind {
	case KindGeneral:
	case KindLebanon:
		if p.Category == "" {
			return fmt.Errorf("category is required for lebanon provider %q", p.ID)
		}
		if p.Website == "" {
			return fmt.Errorf("website is required for lebanon provider %q", p.ID)
		}
	default:
		return fmt.Errorf("kind %q not supported for provider %q", p.Kind, p.ID)
	}
	return nil
}

// All returns every registered provider in declaration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// ByKind returns the providers of the given kind in declaration order.
func (r *Registry) ByKind(kind Kind) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Provider
	for _, p := range r.providers {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// ByName looks a provider up by its display name.
func (r *Registry) ByName(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return r.providers[idx], nil
}
