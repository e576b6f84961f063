// Package device describes the switched output channels of the power box
// and the field keys their measurements use in telemetry series and
// recorded data files.
package device

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed devices.yaml
var defaultRegistryYAML []byte

// Measurement is one of the per-device channels reported by the box.
type Measurement string

const (
	MeasurementVoltage Measurement = "volt"
	MeasurementCurrent Measurement = "curr"
	MeasurementPower   Measurement = "pow"
	MeasurementState   Measurement = "stat"
)

// Measurements returns all per-device measurements in wire order.
func Measurements() []Measurement {
	return []Measurement{MeasurementVoltage, MeasurementCurrent, MeasurementPower, MeasurementState}
}

// FieldKey builds the flat series key for one device measurement,
// e.g. "GSE-1_volt".
func FieldKey(deviceName string, m Measurement) string {
	return deviceName + "_" + string(m)
}

// Device is one output channel of the box. Totals marks aggregate
// pseudo-channels that appear in the live stream but not in recorded files.
type Device struct {
	Name   string `yaml:"name"`
	Short  string `yaml:"short"`
	Totals bool   `yaml:"totals,omitempty"`
}

type registryFile struct {
	Devices []Device `yaml:"devices"`
}

// Registry holds the known devices and resolves between display names used
// in telemetry fields and short names used in wire commands.
type Registry struct {
	devices []Device
	byName  map[string]int
	byShort map[string]int
}

func New(devices []Device) (*Registry, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("device registry is empty")
	}

	r := &Registry{
		devices: make([]Device, len(devices)),
		byName:  make(map[string]int, len(devices)),
		byShort: make(map[string]int, len(devices)),
	}
	copy(r.devices, devices)

	for i, d := range r.devices {
		name := strings.TrimSpace(d.Name)
		short := strings.TrimSpace(d.Short)
		if name == "" {
			return nil, fmt.Errorf("device %d: name is required", i)
		}
		if short == "" {
			return nil, fmt.Errorf("device %q: short name is required", name)
		}
		if _, ok := r.byName[name]; ok {
			return nil, fmt.Errorf("duplicate device name %q", name)
		}
		if _, ok := r.byShort[short]; ok {
			return nil, fmt.Errorf("duplicate device short name %q", short)
		}
		r.devices[i].Name = name
		r.devices[i].Short = short
		r.byName[name] = i
		r.byShort[short] = i
	}

	return r, nil
}

func Parse(raw []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode device registry yaml: %w", err)
	}

	return New(file.Devices)
}

// LoadFile reads a registry from a user-supplied YAML file.
func LoadFile(path string) (*Registry, error) {
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path comes from user config or CLI flag.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read device registry: %w", err)
	}

	return Parse(raw)
}

// Default returns the registry for the stock box firmware. The embedded
// asset is covered by tests, a parse failure here is a build defect.
func Default() *Registry {
	r, err := Parse(defaultRegistryYAML)
	if err != nil {
		panic(fmt.Sprintf("parse embedded device registry: %v", err))
	}

	return r
}

// Devices returns the registered devices in registry order.
func (r *Registry) Devices() []Device {
	out := make([]Device, len(r.devices))
	copy(out, r.devices)

	return out
}

func (r *Registry) Contains(name string) bool {
	_, ok := r.byName[name]

	return ok
}

// ShortFor maps a display name to the short name used in wire commands.
func (r *Registry) ShortFor(name string) (string, bool) {
	i, ok := r.byName[name]
	if !ok {
		return "", false
	}

	return r.devices[i].Short, true
}

// NameFor maps a wire short name back to the display name.
func (r *Registry) NameFor(short string) (string, bool) {
	i, ok := r.byShort[short]
	if !ok {
		return "", false
	}

	return r.devices[i].Name, true
}

// LiveFieldKeys returns the fixed series schema for the live stream, which
// carries every registered device including aggregate channels.
func (r *Registry) LiveFieldKeys() []string {
	return r.fieldKeys(true)
}

// RecordedFieldKeys returns the expected field keys for recorded data
// files, which omit aggregate channels.
func (r *Registry) RecordedFieldKeys() []string {
	return r.fieldKeys(false)
}

func (r *Registry) fieldKeys(includeTotals bool) []string {
	measurements := Measurements()
	keys := make([]string, 0, len(r.devices)*len(measurements))
	for _, d := range r.devices {
		if d.Totals && !includeTotals {
			continue
		}
		for _, m := range measurements {
			keys = append(keys, FieldKey(d.Name, m))
		}
	}

	return keys
}
