package presentation

import (
	"slices"

	appmangrove "github.com/zjrosen/mangrove/internal/application/mangrove"
	domain "github.com/zjrosen/mangrove/internal/domain/mangrove"
)

// EntryDTO is one tuple member with its value rendered for JSON.
type EntryDTO struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// TupleDTO is a rendered tuple.
type TupleDTO []EntryDTO

// GroupDTO is an expanded group.
type GroupDTO struct {
	Key    string     `json:"key"`
	Tuples []TupleDTO `json:"tuples"`
}

// TensorDTO describes a tensor without its data.
type TensorDTO struct {
	Shape []int  `json:"shape"`
	DType string `json:"dtype"`
}

// OpaqueDTO names an uninterpreted payload.
type OpaqueDTO struct {
	Kind string `json:"kind"`
}

// ApplyResultDTO is printed by `mangrove apply`.
type ApplyResultDTO struct {
	Summary  domain.Summary        `json:"summary"`
	Bindings map[string][]TupleDTO `json:"bindings"`
	Groups   map[string]GroupDTO   `json:"groups"`
	Revision uint64                `json:"revision"`
}

// QueryResultDTO is printed by `mangrove query`. Values is set only when
// values were requested.
type QueryResultDTO struct {
	Names  []string       `json:"names"`
	Values map[string]any `json:"values,omitempty"`
}

// DepthDTO lists the types allowed at one depth.
type DepthDTO struct {
	Depth int      `json:"depth"`
	Types []string `json:"types"`
}

// TypesDTO is printed by `mangrove types`.
type TypesDTO struct {
	Types  []string   `json:"types"`
	Depths []DepthDTO `json:"depths"`
}

// RenderValue turns a registry value into something encoding/json can print.
// Tensors and opaque payloads are summarised; list and dict members are
// rendered recursively.
func RenderValue(v any) any {
	switch val := v.(type) {
	case domain.Tensor:
		return TensorDTO{Shape: slices.Clone(val.Shape()), DType: val.DType()}
	case domain.Opaque:
		return OpaqueDTO{Kind: val.Kind}
	case *domain.Opaque:
		if val == nil {
			return nil
		}
		return OpaqueDTO{Kind: val.Kind}
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = RenderValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = RenderValue(item)
		}
		return out
	default:
		return v
	}
}

// FromTuples renders domain tuples.
func FromTuples(tuples []domain.Tuple) []TupleDTO {
	out := make([]TupleDTO, len(tuples))
	for i, t := range tuples {
		row := make(TupleDTO, len(t))
		for j, e := range t {
			row[j] = EntryDTO{Name: e.Name, Value: RenderValue(e.Value)}
		}
		out[i] = row
	}
	return out
}

// FromPlanResult builds the apply output.
func FromPlanResult(summary domain.Summary, result *appmangrove.PlanResult) ApplyResultDTO {
	dto := ApplyResultDTO{
		Summary:  summary,
		Bindings: make(map[string][]TupleDTO, len(result.Bindings)),
		Groups:   make(map[string]GroupDTO, len(result.Groups)),
		Revision: result.Revision,
	}
	for name, tuples := range result.Bindings {
		dto.Bindings[name] = FromTuples(tuples)
	}
	for name, g := range result.Groups {
		dto.Groups[name] = GroupDTO{Key: string(g.Key), Tuples: FromTuples(g.Tuples)}
	}
	return dto
}

// FromValues renders a name to value map.
func FromValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for name, v := range values {
		out[name] = RenderValue(v)
	}
	return out
}

// FromCatalog lists every type tag and the allowed types per depth.
func FromCatalog(depths []int, allowed func(int) ([]domain.TypeTag, bool)) TypesDTO {
	dto := TypesDTO{Types: tagNames(domain.AllTypes())}
	for _, d := range depths {
		tags, ok := allowed(d)
		if !ok {
			continue
		}
		dto.Depths = append(dto.Depths, DepthDTO{Depth: d, Types: tagNames(tags)})
	}
	return dto
}

func tagNames(tags []domain.TypeTag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.String()
	}
	return names
}
