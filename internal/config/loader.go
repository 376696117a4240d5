package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Loader fills a configuration struct from a file and the environment.
type Loader struct {
	envPrefix string
}

// NewLoader creates a loader whose environment names start with envPrefix.
func NewLoader(envPrefix string) *Loader {
	return &Loader{envPrefix: envPrefix}
}

// Load reads the file at path, when path is non-empty, then applies
// environment overrides.
func (l *Loader) Load(path string, cfg interface{}) error {
	if err := l.LoadFromFile(path, cfg); err != nil {
		return fmt.Errorf("failed to load config from file: %w", err)
	}
	if err := l.LoadFromEnv(cfg); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}
	return nil
}

// LoadFromFile decodes YAML or JSON, chosen by extension, into cfg.
// Fields absent from the file keep their current values.
func (l *Loader) LoadFromFile(path string, cfg interface{}) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config file %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
	return nil
}

// LoadFromEnv overrides fields of the struct cfg points to.
//
// A field's variable name is the prefix, the enclosing struct's tag and the
// field's yaml tag joined by underscores and upper-cased:
// Mask.MergeOverlapping becomes FIDELITY_MASK_MERGE_OVERLAPPING.
func (l *Loader) LoadFromEnv(cfg interface{}) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("config must be a non-nil pointer, got %T", cfg)
	}
	return l.loadStruct(v.Elem(), "")
}

func (l *Loader) loadStruct(value reflect.Value, prefix string) error {
	if value.Kind() != reflect.Struct {
		return nil
	}

	t := value.Type()
	for i := 0; i < value.NumField(); i++ {
		field := value.Field(i)
		ft := t.Field(i)
		if !field.CanSet() {
			continue
		}

		name := tagName(ft)
		if prefix != "" {
			name = prefix + "_" + name
		}

		if field.Kind() == reflect.Struct {
			if err := l.loadStruct(field, name); err != nil {
				return err
			}
			continue
		}

		envName := l.envName(name)
		raw, ok := os.LookupEnv(envName)
		if !ok || raw == "" {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", ft.Name, envName, err)
		}
	}
	return nil
}

// tagName prefers an env tag, then the yaml tag, then the field name.
func tagName(f reflect.StructField) string {
	for _, key := range []string{"env", "yaml"} {
		if tag := f.Tag.Get(key); tag != "" && tag != "-" {
			if name, _, _ := strings.Cut(tag, ","); name != "" {
				return name
			}
		}
	}
	return f.Name
}

func (l *Loader) envName(name string) string {
	name = strings.ToUpper(name)
	if l.envPrefix != "" {
		return l.envPrefix + "_" + name
	}
	return name
}

func setField(field reflect.Value, raw string) error {
	raw = strings.TrimSpace(raw)
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool value: %s", raw)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid int value: %s", raw)
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float value: %s", raw)
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}
