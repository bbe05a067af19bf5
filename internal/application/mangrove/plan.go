package mangrove

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	domain "github.com/zjrosen/mangrove/internal/domain/mangrove"
	"github.com/zjrosen/mangrove/internal/log"
	"github.com/zjrosen/mangrove/internal/tracing"
)

// ErrInvalidPlan is wrapped by every plan parsing and validation error.
var ErrInvalidPlan = errors.New("invalid plan")

// Move operations accepted in a plan.
const (
	MovePush   = "push"
	MoveShift  = "shift"
	MoveDetach = "detach"
)

// Plan is the root structure of a plan file. Sections run in field order.
type Plan struct {
	Variables []VariableDef `yaml:"variables"`
	Assign    []AssignDef   `yaml:"assign"`
	Moves     []MoveDef     `yaml:"moves"`
	Bindings  []BindingDef  `yaml:"bindings"`
	Groups    []GroupDef    `yaml:"groups"`

	path string
}

// Path returns the file the plan was loaded from, or "" for plans parsed from a reader.
func (p *Plan) Path() string {
	return p.path
}

// VariableDef registers a batch of names at one depth with one type.
type VariableDef struct {
	Depth  int      `yaml:"depth"`
	Type   string   `yaml:"type"`
	Names  []string `yaml:"names"`
	Values []any    `yaml:"values"` // optional; null entries stay unassigned
}

// AssignDef sets one variable.
type AssignDef struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

// MoveDef migrates one variable. Depth is the destination for push and shift
// and the source for detach.
type MoveDef struct {
	Op    string `yaml:"op"`
	Name  string `yaml:"name"`
	Depth int    `yaml:"depth"`
}

// BindingDef zips selectors into a named binding.
type BindingDef struct {
	Name        string   `yaml:"name"`
	Selectors   []string `yaml:"selectors"` // "depth:type"
	Cardinality int      `yaml:"cardinality"`
}

// GroupDef groups selectors and expands the product under Name.
type GroupDef struct {
	Name      string   `yaml:"name"`
	Selectors []string `yaml:"selectors"`
}

// GroupResult is one expanded group in a PlanResult.
type GroupResult struct {
	Key    domain.GroupKey `json:"key"`
	Tuples []domain.Tuple  `json:"tuples"`
}

// PlanResult collects the outputs of ApplyPlan.
type PlanResult struct {
	Bindings map[string][]domain.Tuple `json:"bindings"`
	Groups   map[string]GroupResult    `json:"groups"`
	Revision uint64                    `json:"revision"`
}

// LoadPlanFile reads and validates a plan from path.
func LoadPlanFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: plan path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	plan, err := LoadPlan(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	plan.path = path
	return plan, nil
}

// LoadPlan parses and validates a plan. Unknown keys are rejected.
func LoadPlan(r io.Reader) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var plan Plan
	if err := dec.Decode(&plan); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks the shape of every step. Registry rules such as depth
// permissions are left to ApplyPlan.
func (p *Plan) Validate() error {
	for i, v := range p.Variables {
		if _, err := domain.ParseTypeTag(v.Type); err != nil {
			return fmt.Errorf("%w: variables[%d]: %w", ErrInvalidPlan, i, err)
		}
		if len(v.Names) == 0 {
			return fmt.Errorf("%w: variables[%d]: names are required", ErrInvalidPlan, i)
		}
		if v.Values != nil && len(v.Values) != len(v.Names) {
			return fmt.Errorf("%w: variables[%d]: %d names but %d values", ErrInvalidPlan, i, len(v.Names), len(v.Values))
		}
	}
	for i, a := range p.Assign {
		if a.Name == "" {
			return fmt.Errorf("%w: assign[%d]: name is required", ErrInvalidPlan, i)
		}
	}
	for i, m := range p.Moves {
		switch m.Op {
		case MovePush, MoveShift, MoveDetach:
		default:
			return fmt.Errorf("%w: moves[%d]: op must be push, shift or detach, got %q", ErrInvalidPlan, i, m.Op)
		}
		if m.Name == "" {
			return fmt.Errorf("%w: moves[%d]: name is required", ErrInvalidPlan, i)
		}
	}
	for i, b := range p.Bindings {
		if b.Name == "" {
			return fmt.Errorf("%w: bindings[%d]: name is required", ErrInvalidPlan, i)
		}
		if _, err := parseSelectors(b.Selectors); err != nil {
			return fmt.Errorf("%w: bindings[%d]: %w", ErrInvalidPlan, i, err)
		}
	}
	seen := make(map[string]struct{}, len(p.Groups))
	for i, g := range p.Groups {
		if g.Name == "" {
			return fmt.Errorf("%w: groups[%d]: name is required", ErrInvalidPlan, i)
		}
		if _, dup := seen[g.Name]; dup {
			return fmt.Errorf("%w: groups[%d]: duplicate name %q", ErrInvalidPlan, i, g.Name)
		}
		seen[g.Name] = struct{}{}
		if _, err := parseSelectors(g.Selectors); err != nil {
			return fmt.Errorf("%w: groups[%d]: %w", ErrInvalidPlan, i, err)
		}
	}
	return nil
}

func parseSelectors(raw []string) ([]domain.Selector, error) {
	out := make([]domain.Selector, 0, len(raw))
	for _, s := range raw {
		sel, err := domain.ParseSelector(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// ApplyPlan runs every step of plan against svc in order and stops at the first
// failure. Steps applied before the failure stay applied.
func ApplyPlan(ctx context.Context, svc *Service, plan *Plan) (_ *PlanResult, err error) {
	ctx, span := tracing.Start(ctx, svc.tracer, "apply_plan")
	defer func() { tracing.Finish(span, err) }()
	if plan.path != "" {
		span.SetAttributes(attribute.String(tracing.AttrPlanPath, plan.path))
	}

	result := &PlanResult{
		Bindings: make(map[string][]domain.Tuple),
		Groups:   make(map[string]GroupResult),
	}

	section(span, "variables", len(plan.Variables))
	for i, v := range plan.Variables {
		tag, err := domain.ParseTypeTag(v.Type)
		if err != nil {
			return nil, fmt.Errorf("variables[%d]: %w", i, err)
		}
		if err := svc.Register(ctx, v.Depth, tag, v.Names, v.Values); err != nil {
			return nil, fmt.Errorf("variables[%d]: %w", i, err)
		}
	}

	section(span, "assign", len(plan.Assign))
	for i, a := range plan.Assign {
		if err := svc.Set(ctx, a.Name, a.Value); err != nil {
			return nil, fmt.Errorf("assign[%d]: %w", i, err)
		}
	}

	section(span, "moves", len(plan.Moves))
	for i, m := range plan.Moves {
		var err error
		switch m.Op {
		case MovePush:
			err = svc.Push(ctx, m.Depth, m.Name)
		case MoveShift:
			err = svc.Shift(ctx, m.Depth, m.Name)
		case MoveDetach:
			err = svc.Detach(ctx, m.Depth, m.Name)
		default:
			err = fmt.Errorf("%w: unknown op %q", ErrInvalidPlan, m.Op)
		}
		if err != nil {
			return nil, fmt.Errorf("moves[%d]: %w", i, err)
		}
	}

	section(span, "bindings", len(plan.Bindings))
	for i, b := range plan.Bindings {
		selectors, err := parseSelectors(b.Selectors)
		if err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
		tuples, err := svc.Bind(ctx, b.Name, selectors, b.Cardinality)
		if err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
		result.Bindings[b.Name] = tuples
	}

	section(span, "groups", len(plan.Groups))
	for i, g := range plan.Groups {
		selectors, err := parseSelectors(g.Selectors)
		if err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
		key, err := svc.GroupSelectors(ctx, selectors)
		if err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
		tuples, err := svc.ExpandGroup(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
		result.Groups[g.Name] = GroupResult{Key: key, Tuples: tuples}
	}

	result.Revision = svc.Revision()
	log.Info(log.CatPlan, "plan applied",
		"variables", svc.Len(),
		"bindings", len(result.Bindings),
		"groups", len(result.Groups),
		"trace_id", tracing.TraceID(ctx))
	return result, nil
}

func section(span trace.Span, name string, steps int) {
	span.AddEvent(tracing.EventPlanSection, trace.WithAttributes(
		attribute.String("section", name),
		attribute.Int("steps", steps),
	))
}
