package mangrove

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/mangrove/internal/cachemanager"
	domain "github.com/zjrosen/mangrove/internal/domain/mangrove"
	"github.com/zjrosen/mangrove/internal/log"
	"github.com/zjrosen/mangrove/internal/pubsub"
	"github.com/zjrosen/mangrove/internal/tracing"
)

// CacheOptions configures the expansion cache of a Service.
type CacheOptions struct {
	Disabled        bool
	Expiration      time.Duration
	CleanupInterval time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithTracer records a span for every operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithCache overrides the default expansion cache settings.
func WithCache(opts CacheOptions) Option {
	return func(s *Service) {
		s.cacheOpts = opts
	}
}

// expandRequest is the read-through input. loaded is set when the cache missed.
type expandRequest struct {
	key    domain.GroupKey
	loaded bool
}

// Service serialises access to one domain registry. Reads share an RLock and
// mutations take the exclusive lock, so every operation is atomic with respect
// to the others.
type Service struct {
	mu     sync.RWMutex
	reg    *domain.Registry
	tracer trace.Tracer
	broker *pubsub.Broker[Change]

	cacheOpts  CacheOptions
	cache      *cachemanager.InMemoryCacheManager[string, []domain.Tuple]
	expansions *cachemanager.ReadThroughCache[string, []domain.Tuple, *expandRequest]
	// cachedRev is the revision the expansion cache was last flushed at.
	cachedRev uint64
}

// NewService creates a Service around an empty registry.
func NewService(opts ...Option) *Service {
	s := &Service{
		reg:    domain.NewRegistry(),
		broker: pubsub.NewBroker[Change](),
		cacheOpts: CacheOptions{
			Expiration:      cachemanager.DefaultExpiration,
			CleanupInterval: cachemanager.DefaultCleanupInterval,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cache = cachemanager.NewInMemoryCacheManager[string, []domain.Tuple](
		"expansions", s.cacheOpts.Expiration, s.cacheOpts.CleanupInterval)
	s.expansions = cachemanager.NewReadThroughCache[string, []domain.Tuple, *expandRequest](s.cache, s.loadExpansion, s.cacheOpts.Disabled)
	return s
}

// loadExpansion runs with at least the read lock held.
func (s *Service) loadExpansion(_ context.Context, req *expandRequest) ([]domain.Tuple, error) {
	req.loaded = true
	return s.reg.ExpandGroup(req.key)
}

// publish must be called with the write lock held. Expansions are keyed by
// revision, so entries from older revisions are dropped before the change goes out.
func (s *Service) publish(c Change) {
	c.Revision = s.reg.Revision()
	if c.Revision != s.cachedRev {
		_ = s.expansions.Invalidate(context.Background())
		s.cachedRev = c.Revision
	}
	s.broker.Publish(c.Kind.eventType(), c)
}

// Subscribe returns a feed of changes, closed when ctx ends or the service closes.
func (s *Service) Subscribe(ctx context.Context) <-chan pubsub.Event[Change] {
	return s.broker.Subscribe(ctx)
}

// Close announces disposal, ends the change feed and drops cached expansions.
// Later calls do nothing.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broker.Closed() {
		return
	}
	s.broker.Publish(ChangeDisposed.eventType(), Change{Kind: ChangeDisposed, Revision: s.reg.Revision()})
	s.broker.Close()
	_ = s.expansions.Invalidate(context.Background())
}

// ConfigureDepth sets the allowed types of depth.
func (s *Service) ConfigureDepth(ctx context.Context, depth int, types ...domain.TypeTag) (err error) {
	_, span := tracing.Start(ctx, s.tracer, "configure_depth", attribute.Int(tracing.AttrDepth, depth))
	defer func() { tracing.Finish(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.ConfigureDepth(depth, types...); err != nil {
		log.Debug(log.CatRegistry, "configure depth rejected", "depth", depth, "error", err)
		return err
	}
	log.Debug(log.CatRegistry, "depth configured", "depth", depth, "types", types)
	s.publish(Change{Kind: ChangeDepthConfigured, Depth: depth})
	return nil
}

// AllowedTypes returns the types allowed at depth.
func (s *Service) AllowedTypes(depth int) ([]domain.TypeTag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Catalog().AllowedTypes(depth)
}

// Depths returns every configured depth in ascending order.
func (s *Service) Depths() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Catalog().Depths()
}

// Register declares a batch of variables. See domain.Registry.Register.
func (s *Service) Register(ctx context.Context, depth int, tag domain.TypeTag, names []string, values []any) (err error) {
	_, span := tracing.Start(ctx, s.tracer, "register",
		attribute.Int(tracing.AttrDepth, depth),
		attribute.String(tracing.AttrType, tag.String()),
		attribute.Int(tracing.AttrVariableCount, len(names)),
	)
	defer func() { tracing.Finish(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.Register(depth, tag, names, values); err != nil {
		log.Debug(log.CatRegistry, "register rejected", "depth", depth, "type", tag, "error", err)
		return err
	}
	log.Debug(log.CatRegistry, "variables registered", "depth", depth, "type", tag, "names", names)
	for _, name := range names {
		s.publish(Change{Kind: ChangeRegistered, Name: name, Depth: depth, Type: tag})
	}
	return nil
}

// Get returns the current value of name.
func (s *Service) Get(ctx context.Context, name string) (_ any, err error) {
	_, span := tracing.Start(ctx, s.tracer, "get", attribute.String(tracing.AttrVariableName, name))
	defer func() { tracing.Finish(span, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Get(name)
}

// Lookup returns the value of name and whether it has been assigned.
func (s *Service) Lookup(ctx context.Context, name string) (_ any, _ bool, err error) {
	_, span := tracing.Start(ctx, s.tracer, "lookup", attribute.String(tracing.AttrVariableName, name))
	defer func() { tracing.Finish(span, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Lookup(name)
}

// Describe returns a snapshot of the variable record.
func (s *Service) Describe(ctx context.Context, name string) (_ domain.Variable, err error) {
	_, span := tracing.Start(ctx, s.tracer, "describe", attribute.String(tracing.AttrVariableName, name))
	defer func() { tracing.Finish(span, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Describe(name)
}

// Set assigns value to name. The value must match the declared type.
func (s *Service) Set(ctx context.Context, name string, value any) (err error) {
	_, span := tracing.Start(ctx, s.tracer, "set", attribute.String(tracing.AttrVariableName, name))
	defer func() { tracing.Finish(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.Set(name, value); err != nil {
		log.Debug(log.CatRegistry, "set rejected", "name", name, "error", err)
		return err
	}
	v, _ := s.reg.Describe(name)
	s.publish(Change{Kind: ChangeUpdated, Name: name, Depth: v.Depth, Type: v.Type})
	return nil
}

// VariablesMatching returns the names matching q in registration order.
func (s *Service) VariablesMatching(ctx context.Context, q domain.Query) []string {
	_, span := tracing.Start(ctx, s.tracer, "variables_matching", queryAttrs(q)...)
	defer func() { tracing.Finish(span, nil) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Collect(s.reg.VariablesMatching(q))
}

// ValuesMatching returns name to value for every variable matching q.
func (s *Service) ValuesMatching(ctx context.Context, q domain.Query) map[string]any {
	_, span := tracing.Start(ctx, s.tracer, "values_matching", queryAttrs(q)...)
	defer func() { tracing.Finish(span, nil) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.ValuesMatching(q)
}

// Transferable returns the names matching q whose values report they can move
// to target.
func (s *Service) Transferable(ctx context.Context, q domain.Query, target string) []string {
	_, span := tracing.Start(ctx, s.tracer, "transferable", queryAttrs(q)...)
	defer func() { tracing.Finish(span, nil) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Transferable(q, target)
}

// Summary reports the (depth, type) of every variable.
func (s *Service) Summary(ctx context.Context) domain.Summary {
	_, span := tracing.Start(ctx, s.tracer, "summary")
	defer func() { tracing.Finish(span, nil) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Summary()
}

// Names returns every variable name in registration order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Names()
}

// Len returns the number of registered variables.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Len()
}

// Revision returns the registry's mutation counter.
func (s *Service) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Revision()
}

// Bind zips the selectors' candidates into cardinality tuples stored under name.
func (s *Service) Bind(ctx context.Context, name string, selectors []domain.Selector, cardinality int) (_ []domain.Tuple, err error) {
	_, span := tracing.Start(ctx, s.tracer, "bind",
		attribute.String(tracing.AttrBindingName, name),
		attribute.Int(tracing.AttrCardinality, cardinality),
	)
	defer func() { tracing.Finish(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	tuples, err := s.reg.Bind(name, selectors, cardinality)
	if err != nil {
		log.Debug(log.CatBinding, "bind rejected", "binding", name, "error", err)
		return nil, err
	}
	log.Debug(log.CatBinding, "binding created", "binding", name, "tuples", len(tuples))
	s.publish(Change{Kind: ChangeBound, Name: name})
	return tuples, nil
}

// Binding returns the tuples stored under name.
func (s *Service) Binding(ctx context.Context, name string) (_ []domain.Tuple, err error) {
	_, span := tracing.Start(ctx, s.tracer, "binding", attribute.String(tracing.AttrBindingName, name))
	defer func() { tracing.Finish(span, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Binding(name)
}

// BindingNames returns binding names in creation order.
func (s *Service) BindingNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.BindingNames()
}

// GroupSelectors validates and remembers a selector group.
func (s *Service) GroupSelectors(ctx context.Context, selectors []domain.Selector) (_ domain.GroupKey, err error) {
	_, span := tracing.Start(ctx, s.tracer, "group_selectors")
	defer func() { tracing.Finish(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.reg.Revision()
	key, err := s.reg.GroupSelectors(selectors)
	if err != nil {
		log.Debug(log.CatBinding, "group rejected", "selectors", selectors, "error", err)
		return "", err
	}
	span.SetAttributes(attribute.String(tracing.AttrGroupKey, string(key)))
	if s.reg.Revision() != before {
		log.Debug(log.CatBinding, "group created", "key", key)
		s.publish(Change{Kind: ChangeGrouped, Name: string(key)})
	}
	return key, nil
}

// Group returns the selectors of a validated group.
func (s *Service) Group(ctx context.Context, key domain.GroupKey) (_ []domain.Selector, err error) {
	_, span := tracing.Start(ctx, s.tracer, "group", attribute.String(tracing.AttrGroupKey, string(key)))
	defer func() { tracing.Finish(span, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Group(key)
}

// ExpandGroup returns the cross product of the group's candidates. Results are
// cached per registry revision, so any mutation makes the next call recompute.
func (s *Service) ExpandGroup(ctx context.Context, key domain.GroupKey) (_ []domain.Tuple, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "expand_group", attribute.String(tracing.AttrGroupKey, string(key)))
	defer func() { tracing.Finish(span, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := &expandRequest{key: key}
	cacheKey := string(key) + "@" + strconv.FormatUint(s.reg.Revision(), 10)
	tuples, err := s.expansions.Get(ctx, cacheKey, req, s.cacheOpts.Expiration)
	if err != nil {
		return nil, err
	}
	if req.loaded {
		span.AddEvent(tracing.EventCacheMiss)
	}
	span.SetAttributes(
		attribute.Bool(tracing.AttrCacheHit, !req.loaded),
		attribute.Int(tracing.AttrTupleCount, len(tuples)),
	)
	return copyTuples(tuples), nil
}

// CacheStats reports expansion cache counters.
func (s *Service) CacheStats() cachemanager.Stats {
	return s.cache.Stats()
}

// Push moves a variable from depth 0 to toDepth.
func (s *Service) Push(ctx context.Context, toDepth int, name string) error {
	return s.migrate(ctx, "push", toDepth, name, func() error { return s.reg.Push(toDepth, name) })
}

// Shift moves a variable to any depth that allows its type.
func (s *Service) Shift(ctx context.Context, toDepth int, name string) error {
	return s.migrate(ctx, "shift", toDepth, name, func() error { return s.reg.Shift(toDepth, name) })
}

// Detach returns a variable at fromDepth to depth 0.
func (s *Service) Detach(ctx context.Context, fromDepth int, name string) error {
	return s.migrate(ctx, "detach", domain.OriginDepth, name, func() error { return s.reg.Detach(fromDepth, name) })
}

func (s *Service) migrate(ctx context.Context, op string, toDepth int, name string, fn func() error) (err error) {
	_, span := tracing.Start(ctx, s.tracer, op,
		attribute.String(tracing.AttrVariableName, name),
		attribute.Int(tracing.AttrDepth, toDepth),
	)
	defer func() { tracing.Finish(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		log.Debug(log.CatRegistry, op+" rejected", "name", name, "depth", toDepth, "error", err)
		return err
	}
	v, _ := s.reg.Describe(name)
	log.Debug(log.CatRegistry, "variable migrated", "op", op, "name", name, "depth", v.Depth)
	s.publish(Change{Kind: ChangeMigrated, Name: name, Depth: v.Depth, Type: v.Type})
	return nil
}

func queryAttrs(q domain.Query) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if d, ok := q.Depth(); ok {
		attrs = append(attrs, attribute.Int(tracing.AttrDepth, d))
	}
	if t, ok := q.Type(); ok {
		attrs = append(attrs, attribute.String(tracing.AttrType, t.String()))
	}
	return attrs
}

// copyTuples keeps cached slices out of callers' hands.
func copyTuples(tuples []domain.Tuple) []domain.Tuple {
	out := make([]domain.Tuple, len(tuples))
	for i, t := range tuples {
		out[i] = slices.Clone(t)
	}
	return out
}

// String identifies the service in log output.
func (s *Service) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("registry(vars=%d, rev=%d)", s.reg.Len(), s.reg.Revision())
}
