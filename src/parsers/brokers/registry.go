package brokers

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry looks up broker formats by id.
type Registry interface {
	GetFormatConfig(brokerID int) (FormatConfig, error)
	List() []FormatConfig
}

// StaticRegistry is an immutable, validated set of broker formats.
type StaticRegistry struct {
	configs map[int]FormatConfig
}

// NewStaticRegistry validates every config and rejects duplicate broker ids.
func NewStaticRegistry(configs ...FormatConfig) (*StaticRegistry, error) {
	r := &StaticRegistry{configs: make(map[int]FormatConfig, len(configs))}
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.configs[c.BrokerID]; dup {
			return nil, fmt.Errorf("%w: duplicate broker id %d", ErrInvalidConfig, c.BrokerID)
		}
		r.configs[c.BrokerID] = c.clone()
	}
	return r, nil
}

// GetFormatConfig returns a copy of the broker's format.
func (r *StaticRegistry) GetFormatConfig(brokerID int) (FormatConfig, error) {
	c, ok := r.configs[brokerID]
	if !ok {
		return FormatConfig{}, fmt.Errorf("%w: broker id %d", ErrNotFound, brokerID)
	}
	return c.clone(), nil
}

// List returns copies of all formats ordered by broker id.
func (r *StaticRegistry) List() []FormatConfig {
	out := make([]FormatConfig, 0, len(r.configs))
	for _, c := range r.configs {
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BrokerID < out[j].BrokerID })
	return out
}

type registryFile struct {
	Brokers []FormatConfig `yaml:"brokers"`
}

// LoadFile reads a YAML registry of the form `brokers: [...]`.
func LoadFile(path string) (*StaticRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading broker config: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML bytes.
func Parse(data []byte) (*StaticRegistry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing broker config: %v", ErrInvalidConfig, err)
	}
	if len(f.Brokers) == 0 {
		return nil, fmt.Errorf("%w: no brokers defined", ErrInvalidConfig)
	}
	return NewStaticRegistry(f.Brokers...)
}
