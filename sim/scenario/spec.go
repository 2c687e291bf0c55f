// Package scenario loads declarative network scenarios and builds a
// ready-to-run sim.Simulator from them.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/server-sim/server-sim/sim"
)

// Scenario is the top-level scenario configuration.
// Loaded from YAML or TOML via Load(path).
type Scenario struct {
	Version     string           `yaml:"version" toml:"version"`
	Name        string           `yaml:"name" toml:"name"`
	Description string           `yaml:"description,omitempty" toml:"description"`
	Seed        int64            `yaml:"seed" toml:"seed"`
	TickRate    int64            `yaml:"tick_rate" toml:"tick_rate" validate:"gte=0"`
	Ticks       int              `yaml:"ticks" toml:"ticks" validate:"gte=0"`
	DropPolicy  string           `yaml:"drop_policy,omitempty" toml:"drop_policy" validate:"omitempty,oneof=keep terminate"`
	TraceLevel  string           `yaml:"trace_level,omitempty" toml:"trace_level" validate:"omitempty,oneof=none diagnostics"`
	Root        string           `yaml:"root" toml:"root" validate:"required"`
	Nodes       []NodeSpec       `yaml:"nodes" toml:"nodes" validate:"required,min=1,dive"`
	Connections []ConnectionSpec `yaml:"connections" toml:"connections" validate:"dive"`
	Injections  []InjectionSpec  `yaml:"injections,omitempty" toml:"injections" validate:"dive"`
	Events      []EventSpec      `yaml:"events,omitempty" toml:"events" validate:"dive"`
}

// NodeSpec declares one node.
type NodeSpec struct {
	Name        string          `yaml:"name" toml:"name" validate:"required"`
	Kind        string          `yaml:"kind" toml:"kind" validate:"required,oneof=producer processor consumer"`
	Description string          `yaml:"description,omitempty" toml:"description"`
	Target      string          `yaml:"target,omitempty" toml:"target"`
	Consumes    []string        `yaml:"consumes,omitempty" toml:"consumes" validate:"dive,required"`
	Produces    []string        `yaml:"produces,omitempty" toml:"produces" validate:"dive,required"`
	Degradation float64         `yaml:"degradation,omitempty" toml:"degradation" validate:"gte=0,lte=1"`
	Processing  *ProcessingSpec `yaml:"processing,omitempty" toml:"processing"`
	Transform   []TransformRule `yaml:"transform,omitempty" toml:"transform" validate:"dive"`
}

// ProcessingSpec parameterizes a node's processing time:
//
//	delay = base + floor(queue length * queue_ms_per_entry)
//
// where base is degraded_base_ms once degradation >= degraded_threshold
// (and degraded_base_ms > 0), base_ms otherwise. degraded_threshold must be
// positive whenever degraded_base_ms is set.
type ProcessingSpec struct {
	BaseMs            int64   `yaml:"base_ms" toml:"base_ms" validate:"gte=0"`
	QueueMsPerEntry   float64 `yaml:"queue_ms_per_entry,omitempty" toml:"queue_ms_per_entry" validate:"gte=0"`
	DegradedBaseMs    int64   `yaml:"degraded_base_ms,omitempty" toml:"degraded_base_ms" validate:"gte=0"`
	DegradedThreshold float64 `yaml:"degraded_threshold,omitempty" toml:"degraded_threshold" validate:"required_with=DegradedBaseMs,gte=0,lte=1"`
}

// TransformRule rewrites matured requests of type From into the To types.
type TransformRule struct {
	From string   `yaml:"from" toml:"from" validate:"required"`
	To   []string `yaml:"to" toml:"to" validate:"required,min=1,dive,required"`
}

// ConnectionSpec declares a directed edge by node name.
type ConnectionSpec struct {
	From string `yaml:"from" toml:"from" validate:"required"`
	To   string `yaml:"to" toml:"to" validate:"required"`
}

// InjectionSpec schedules producer traffic. With every > 0 it repeats until
// until (0 = for the whole run).
type InjectionSpec struct {
	At       int64     `yaml:"at" toml:"at" validate:"gte=0"`
	Producer string    `yaml:"producer" toml:"producer" validate:"required"`
	Count    int       `yaml:"count" toml:"count" validate:"gt=0"`
	Weights  []float64 `yaml:"weights,omitempty" toml:"weights" validate:"dive,gte=0"`
	Every    int64     `yaml:"every,omitempty" toml:"every" validate:"gte=0"`
	Until    int64     `yaml:"until,omitempty" toml:"until" validate:"gte=0"`
}

// EventSpec schedules a node mutation.
type EventSpec struct {
	At    int64   `yaml:"at" toml:"at" validate:"gte=0"`
	Kind  string  `yaml:"kind" toml:"kind" validate:"required,oneof=degrade remove"`
	Node  string  `yaml:"node" toml:"node" validate:"required"`
	Level float64 `yaml:"level,omitempty" toml:"level" validate:"gte=0,lte=1"`
}

var validate = validator.New()

var validVersions = map[string]bool{"": true, "1": true}

// Load reads and parses a scenario file. The format follows the extension:
// .yaml/.yml or .toml. Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q; use .yaml, .yml or .toml", filepath.Ext(path))
	}
}

// ParseYAML decodes a YAML scenario with KnownFields(true).
func ParseYAML(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &s, nil
}

// ParseTOML decodes a TOML scenario, rejecting undecoded keys.
func ParseTOML(data []byte) (*Scenario, error) {
	var s Scenario
	md, err := toml.Decode(string(data), &s)
	if err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing scenario: unknown keys %s", strings.Join(keys, ", "))
	}
	return &s, nil
}

// Validate checks field constraints and cross references between sections.
func (s *Scenario) Validate() error {
	if !validVersions[s.Version] {
		return fmt.Errorf("unsupported version %q; valid: 1", s.Version)
	}
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}

	byName := make(map[string]*NodeSpec, len(s.Nodes))
	for i := range s.Nodes {
		n := &s.Nodes[i]
		prefix := fmt.Sprintf("nodes[%d]", i)
		if _, dup := byName[n.Name]; dup {
			return fmt.Errorf("%s: duplicate node name %q", prefix, n.Name)
		}
		byName[n.Name] = n
		if err := validateNode(n, prefix); err != nil {
			return err
		}
	}

	root, ok := byName[s.Root]
	if !ok {
		return fmt.Errorf("root: unknown node %q", s.Root)
	}
	if root.Kind != "producer" {
		return fmt.Errorf("root: node %q must be a producer, got %s", s.Root, root.Kind)
	}

	for i, c := range s.Connections {
		prefix := fmt.Sprintf("connections[%d]", i)
		if _, ok := byName[c.From]; !ok {
			return fmt.Errorf("%s: unknown from node %q", prefix, c.From)
		}
		if _, ok := byName[c.To]; !ok {
			return fmt.Errorf("%s: unknown to node %q", prefix, c.To)
		}
	}

	removedAt := make(map[string]int64)
	for i, ev := range s.Events {
		prefix := fmt.Sprintf("events[%d]", i)
		if _, ok := byName[ev.Node]; !ok {
			return fmt.Errorf("%s: unknown node %q", prefix, ev.Node)
		}
		if ev.Kind != "remove" {
			continue
		}
		if ev.Node == s.Root {
			return fmt.Errorf("%s: the root node cannot be removed", prefix)
		}
		if _, dup := removedAt[ev.Node]; dup {
			return fmt.Errorf("%s: node %q is already removed by an earlier event", prefix, ev.Node)
		}
		removedAt[ev.Node] = ev.At
	}

	for i, inj := range s.Injections {
		prefix := fmt.Sprintf("injections[%d]", i)
		p, ok := byName[inj.Producer]
		if !ok {
			return fmt.Errorf("%s: unknown producer %q", prefix, inj.Producer)
		}
		if p.Kind != "producer" {
			return fmt.Errorf("%s: node %q is a %s, not a producer", prefix, inj.Producer, p.Kind)
		}
		if err := sim.ValidateWeights(inj.Weights, len(uniq(p.Produces))); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		if inj.Until > 0 && inj.Until < inj.At {
			return fmt.Errorf("%s: until %d is before at %d", prefix, inj.Until, inj.At)
		}
		if at, removed := removedAt[inj.Producer]; removed {
			if last, bounded := lastInjection(inj); !bounded || last >= at {
				return fmt.Errorf("%s: producer %q is removed at %d while this injection still fires", prefix, inj.Producer, at)
			}
		}
	}
	return nil
}

// lastInjection returns the timestamp of the final firing of inj, or false
// when it repeats for the whole run.
func lastInjection(inj InjectionSpec) (int64, bool) {
	if inj.Every <= 0 {
		return inj.At, true
	}
	if inj.Until == 0 {
		return 0, false
	}
	return inj.At + (inj.Until-inj.At)/inj.Every*inj.Every, true
}

func validateNode(n *NodeSpec, prefix string) error {
	switch n.Kind {
	case "producer":
		if len(n.Consumes) > 0 {
			return fmt.Errorf("%s: producer %q must not consume types", prefix, n.Name)
		}
		if len(n.Produces) == 0 {
			return fmt.Errorf("%s: producer %q must produce at least one type", prefix, n.Name)
		}
		if len(n.Transform) > 0 {
			return fmt.Errorf("%s: producer %q cannot declare transform rules", prefix, n.Name)
		}
	case "consumer":
		if len(n.Produces) > 0 {
			return fmt.Errorf("%s: consumer %q must not produce types", prefix, n.Name)
		}
		if len(n.Transform) > 0 {
			return fmt.Errorf("%s: consumer %q cannot declare transform rules", prefix, n.Name)
		}
	}
	seen := make(map[string]bool)
	for j, rule := range n.Transform {
		if seen[rule.From] {
			return fmt.Errorf("%s.transform[%d]: duplicate rule for type %q", prefix, j, rule.From)
		}
		seen[rule.From] = true
	}
	return nil
}

// formatValidationError returns the first validator failure in a readable form.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "required_with":
			return fmt.Errorf("%s: field is required when %s is set", field, e.Param())
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "lte":
			return fmt.Errorf("%s: must not exceed %s", field, e.Param())
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s], got %v", field, e.Param(), e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}

func uniq(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
