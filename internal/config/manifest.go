package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	errs "endpointd/internal/errors"
)

// Manifest declares service instances and the context paths they are bound
// to. Binding one instance under several paths shares a single instance.
type Manifest struct {
	Instances map[string]InstanceSpec `json:"instances" yaml:"instances" toml:"instances"`
	Bindings  []BindingSpec           `json:"bindings" yaml:"bindings" toml:"bindings"`
}

// InstanceSpec is one named service instance.
type InstanceSpec struct {
	Kind    string  `json:"kind" yaml:"kind" toml:"kind"`
	Options Options `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
}

// BindingSpec maps a context path to an instance name.
type BindingSpec struct {
	Path     string `json:"path" yaml:"path" toml:"path"`
	Instance string `json:"instance" yaml:"instance" toml:"instance"`
}

// LoadManifest reads a manifest, choosing the decoder by file extension
// (.toml, .yaml/.yml, .json).
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes data in the format named by ext and validates it.
func ParseManifest(data []byte, ext string) (*Manifest, error) {
	var m Manifest

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		md, err := toml.Decode(string(data), &m)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidManifest, "parse toml", err)
		}
		if unknown := unknownTOMLKeys(md.Undecoded()); len(unknown) > 0 {
			return nil, errs.New(errs.InvalidManifest, fmt.Sprintf("unknown keys: %v", unknown))
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, errs.Wrap(errs.InvalidManifest, "parse yaml", err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, errs.Wrap(errs.InvalidManifest, "parse json", err)
		}
	default:
		return nil, errs.New(errs.InvalidManifest, fmt.Sprintf("unsupported manifest format %q", ext))
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// unknownTOMLKeys drops keys below instances.<name>.options, which is a
// free-form table owned by the instance kind.
func unknownTOMLKeys(undecoded []toml.Key) []toml.Key {
	var unknown []toml.Key
	for _, key := range undecoded {
		if len(key) >= 3 && key[0] == "instances" && key[2] == "options" {
			continue
		}
		unknown = append(unknown, key)
	}
	return unknown
}

// Validate checks that every binding has a valid, unique path and refers to
// a declared instance.
func (m *Manifest) Validate() error {
	for name, inst := range m.Instances {
		if name == "" {
			return errs.New(errs.InvalidManifest, "instance with empty name")
		}
		if inst.Kind == "" {
			return errs.New(errs.InvalidManifest, fmt.Sprintf("instance %q: kind is required", name))
		}
	}

	seen := make(map[string]bool, len(m.Bindings))
	for i, b := range m.Bindings {
		if !strings.HasPrefix(b.Path, "/") {
			return errs.New(errs.InvalidManifest, fmt.Sprintf("binding[%d]: path %q must start with /", i, b.Path))
		}
		if seen[b.Path] {
			return errs.New(errs.InvalidManifest, fmt.Sprintf("binding[%d]: duplicate path %s", i, b.Path))
		}
		seen[b.Path] = true
		if _, ok := m.Instances[b.Instance]; !ok {
			return errs.New(errs.UnknownInstance, fmt.Sprintf("binding[%d] (%s): unknown instance %q", i, b.Path, b.Instance))
		}
	}
	return nil
}

// InstanceNames returns the declared instance names, sorted.
func (m *Manifest) InstanceNames() []string {
	names := make([]string, 0, len(m.Instances))
	for name := range m.Instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options are free-form per-instance settings. The typed getters accept any
// representation the manifest decoders produce ("8", 8 and 8.0 are all the
// int 8) and return def when the key is absent.
type Options map[string]interface{}

// GetString returns the option as a string.
func (o Options) GetString(key, def string) (string, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", optionError(key, err)
	}
	return s, nil
}

// GetInt returns the option as an int.
func (o Options) GetInt(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, optionError(key, err)
	}
	return n, nil
}

// GetBool returns the option as a bool.
func (o Options) GetBool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, optionError(key, err)
	}
	return b, nil
}

// GetDuration returns the option as a duration ("5s", or integer nanoseconds).
func (o Options) GetDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return 0, optionError(key, err)
	}
	return d, nil
}

// GetStringSlice returns the option as a list of strings.
func (o Options) GetStringSlice(key string, def []string) ([]string, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	s, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, optionError(key, err)
	}
	return s, nil
}

// GetStringMap returns a table option as a map of strings.
func (o Options) GetStringMap(key string) (map[string]string, error) {
	v, ok := o[key]
	if !ok {
		return map[string]string{}, nil
	}
	m, err := cast.ToStringMapStringE(v)
	if err != nil {
		return nil, optionError(key, err)
	}
	return m, nil
}

// GetBytes returns a size option such as "4MiB" or 4096 in bytes.
func (o Options) GetBytes(key string, def int64) (int64, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	if s, isString := v.(string); isString {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return 0, optionError(key, err)
		}
		return int64(n), nil
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, optionError(key, err)
	}
	return n, nil
}

func optionError(key string, err error) error {
	return errs.Wrap(errs.InvalidManifest, "option "+key, err)
}
