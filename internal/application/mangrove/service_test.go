package mangrove

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	domain "github.com/zjrosen/mangrove/internal/domain/mangrove"
	"github.com/zjrosen/mangrove/internal/pubsub"
	"github.com/zjrosen/mangrove/internal/tracing"
)

// setupTestTracer returns a tracer whose spans land in an in-memory exporter.
func setupTestTracer(t *testing.T) (Option, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return WithTracer(provider.Tracer("test")), exporter
}

func spanByName(exporter *tracetest.InMemoryExporter, name string) (tracetest.SpanStub, bool) {
	for _, span := range exporter.GetSpans() {
		if span.Name == name {
			return span, true
		}
	}
	return tracetest.SpanStub{}, false
}

func attrValue(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// newScenarioService configures depth 1 = {int, float}, depth 2 = {list}.
func newScenarioService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc := NewService(opts...)
	t.Cleanup(svc.Close)
	ctx := context.Background()
	require.NoError(t, svc.ConfigureDepth(ctx, 1, domain.TypeInt, domain.TypeFloat))
	require.NoError(t, svc.ConfigureDepth(ctx, 2, domain.TypeList))
	return svc
}

func TestService_RegisterGetSet(t *testing.T) {
	svc := newScenarioService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"x", "y"}, []any{1, nil}))

	v, err := svc.Get(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, present, err := svc.Lookup(ctx, "y")
	require.NoError(t, err)
	require.False(t, present)

	require.NoError(t, svc.Set(ctx, "y", 5))
	require.ErrorIs(t, svc.Set(ctx, "y", "five"), domain.ErrTypeMismatch)

	v, err = svc.Get(ctx, "y")
	require.NoError(t, err)
	require.Equal(t, 5, v)

	err = svc.Register(ctx, 1, domain.TypeString, []string{"s"}, nil)
	require.ErrorIs(t, err, domain.ErrTypeNotAllowed)
	require.Equal(t, []string{"x", "y"}, svc.Names())
}

func TestService_Queries(t *testing.T) {
	svc := newScenarioService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"x"}, []any{1}))
	require.NoError(t, svc.Register(ctx, 1, domain.TypeFloat, []string{"f"}, []any{0.5}))
	require.NoError(t, svc.Register(ctx, 0, domain.TypeBool, []string{"flag"}, []any{true}))

	require.Equal(t, []string{"x", "f"}, svc.VariablesMatching(ctx, domain.Query{}.AtDepth(1)))
	require.Equal(t, map[string]any{"f": 0.5}, svc.ValuesMatching(ctx, domain.Query{}.OfType(domain.TypeFloat)))

	summary := svc.Summary(ctx)
	require.Equal(t, domain.VarInfo{Depth: 1, Type: domain.TypeInt}, summary.Configured["x"])
	require.Equal(t, domain.TypeBool, summary.Unconfigured["flag"])

	require.Equal(t, []int{0, 1, 2}, svc.Depths())
	allowed, ok := svc.AllowedTypes(2)
	require.True(t, ok)
	require.Equal(t, []domain.TypeTag{domain.TypeList}, allowed)
}

func TestService_BindAndExpand(t *testing.T) {
	svc := newScenarioService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"x", "y"}, []any{1, 2}))
	require.NoError(t, svc.Register(ctx, 2, domain.TypeList, []string{"p", "q"}, []any{[]any{"a"}, []any{"b"}}))
	selectors := []domain.Selector{{Depth: 1, Type: domain.TypeInt}, {Depth: 2, Type: domain.TypeList}}

	zipped, err := svc.Bind(ctx, "pairs", selectors, 2)
	require.NoError(t, err)
	require.Len(t, zipped, 2)
	require.Equal(t, []string{"x", "p"}, zipped[0].Names())
	require.Equal(t, []string{"y", "q"}, zipped[1].Names())

	stored, err := svc.Binding(ctx, "pairs")
	require.NoError(t, err)
	require.Equal(t, zipped, stored)
	require.Equal(t, []string{"pairs"}, svc.BindingNames())

	key, err := svc.GroupSelectors(ctx, selectors)
	require.NoError(t, err)
	product, err := svc.ExpandGroup(ctx, key)
	require.NoError(t, err)
	require.Len(t, product, 4)

	got, err := svc.Group(ctx, key)
	require.NoError(t, err)
	require.Equal(t, selectors, got)
}

func TestService_ExpandGroupCachedPerRevision(t *testing.T) {
	svc := newScenarioService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"x"}, []any{1}))
	key, err := svc.GroupSelectors(ctx, []domain.Selector{{Depth: 1, Type: domain.TypeInt}})
	require.NoError(t, err)

	first, err := svc.ExpandGroup(ctx, key)
	require.NoError(t, err)
	require.Len(t, first, 1)
	_, err = svc.ExpandGroup(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uint64(1), svc.CacheStats().Hits)

	// mutating the returned slice must not leak into the cache
	first[0][0].Name = "mutated"
	again, err := svc.ExpandGroup(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "x", again[0][0].Name)

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"y"}, []any{2}))
	after, err := svc.ExpandGroup(ctx, key)
	require.NoError(t, err)
	require.Len(t, after, 2, "a new revision recomputes the expansion")
}

func TestService_ExpandGroupDropsStaleRevisions(t *testing.T) {
	// zero expiration never expires entries on its own
	svc := newScenarioService(t, WithCache(CacheOptions{}))
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"a"}, nil))
	key, err := svc.GroupSelectors(ctx, []domain.Selector{{Depth: 1, Type: domain.TypeInt}})
	require.NoError(t, err)

	for i := range 100 {
		require.NoError(t, svc.Set(ctx, "a", i))
		tuples, err := svc.ExpandGroup(ctx, key)
		require.NoError(t, err)
		require.Equal(t, i, tuples[0][0].Value)
		require.LessOrEqual(t, svc.CacheStats().Items, 1)
	}

	_, err = svc.ExpandGroup(ctx, key)
	require.NoError(t, err)
	stats := svc.CacheStats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(100), stats.Misses)
	require.Equal(t, 1, stats.Items)
}

func TestService_ExpandGroupCacheDisabled(t *testing.T) {
	svc := newScenarioService(t, WithCache(CacheOptions{Disabled: true}))
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"x"}, nil))
	key, err := svc.GroupSelectors(ctx, []domain.Selector{{Depth: 1, Type: domain.TypeInt}})
	require.NoError(t, err)

	for range 3 {
		_, err := svc.ExpandGroup(ctx, key)
		require.NoError(t, err)
	}
	stats := svc.CacheStats()
	require.Zero(t, stats.Hits)
	require.Zero(t, stats.Items)
}

func TestService_Migration(t *testing.T) {
	svc := newScenarioService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 0, domain.TypeFloat, []string{"f"}, []any{1.5}))
	require.NoError(t, svc.Push(ctx, 1, "f"))
	require.ErrorIs(t, svc.Push(ctx, 1, "f"), domain.ErrNotAtOriginDepth)
	require.ErrorIs(t, svc.Shift(ctx, 2, "f"), domain.ErrTypeNotAllowed)
	require.NoError(t, svc.Detach(ctx, 1, "f"))

	v, err := svc.Describe(ctx, "f")
	require.NoError(t, err)
	require.Equal(t, 0, v.Depth)
}

func TestService_PublishesChanges(t *testing.T) {
	svc := newScenarioService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := svc.Subscribe(ctx)

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"x"}, nil))
	require.NoError(t, svc.Set(ctx, "x", 3))
	require.NoError(t, svc.Shift(ctx, 0, "x"))
	require.Error(t, svc.Set(ctx, "x", "bad"), "rejected mutations publish nothing")

	want := []struct {
		kind ChangeKind
		typ  pubsub.EventType
	}{
		{ChangeRegistered, pubsub.CreatedEvent},
		{ChangeUpdated, pubsub.UpdatedEvent},
		{ChangeMigrated, pubsub.MovedEvent},
	}
	var lastRev uint64
	for _, w := range want {
		select {
		case ev := <-events:
			require.Equal(t, w.typ, ev.Type)
			require.Equal(t, w.kind, ev.Payload.Kind)
			require.Equal(t, "x", ev.Payload.Name)
			require.Greater(t, ev.Payload.Revision, lastRev)
			lastRev = ev.Payload.Revision
		case <-time.After(time.Second):
			require.Fail(t, "timeout waiting for change", string(w.kind))
		}
	}
	select {
	case ev := <-events:
		require.Fail(t, "unexpected change", "%+v", ev.Payload)
	default:
	}
}

func TestService_Spans(t *testing.T) {
	opt, exporter := setupTestTracer(t)
	svc := newScenarioService(t, opt)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"x"}, nil))
	require.Error(t, svc.Shift(ctx, 2, "x"))

	span, ok := spanByName(exporter, "registry.register")
	require.True(t, ok)
	depth, ok := attrValue(span, tracing.AttrDepth)
	require.True(t, ok)
	require.Equal(t, int64(1), depth.AsInt64())
	typ, ok := attrValue(span, tracing.AttrType)
	require.True(t, ok)
	require.Equal(t, "int", typ.AsString())
	require.Equal(t, codes.Ok, span.Status.Code)

	span, ok = spanByName(exporter, "registry.shift")
	require.True(t, ok)
	require.Equal(t, codes.Error, span.Status.Code)
	name, ok := attrValue(span, tracing.AttrVariableName)
	require.True(t, ok)
	require.Equal(t, "x", name.AsString())
}

func TestService_ExpandGroupSpanReportsCache(t *testing.T) {
	opt, exporter := setupTestTracer(t)
	svc := newScenarioService(t, opt)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{"x"}, nil))
	key, err := svc.GroupSelectors(ctx, []domain.Selector{{Depth: 1, Type: domain.TypeInt}})
	require.NoError(t, err)
	_, err = svc.ExpandGroup(ctx, key)
	require.NoError(t, err)
	_, err = svc.ExpandGroup(ctx, key)
	require.NoError(t, err)

	var hits []bool
	for _, span := range exporter.GetSpans() {
		if span.Name != "registry.expand_group" {
			continue
		}
		v, ok := attrValue(span, tracing.AttrCacheHit)
		require.True(t, ok)
		hits = append(hits, v.AsBool())
	}
	require.Equal(t, []bool{false, true}, hits)
}

func TestService_ConcurrentAccess(t *testing.T) {
	svc := newScenarioService(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			name := string(rune('a' + i))
			require.NoError(t, svc.Register(ctx, 1, domain.TypeInt, []string{name}, []any{i}))
		}()
		go func() {
			defer wg.Done()
			_ = svc.VariablesMatching(ctx, domain.Query{}.AtDepth(1))
			_ = svc.Summary(ctx)
		}()
	}
	wg.Wait()

	require.Equal(t, writers, svc.Len())
}
