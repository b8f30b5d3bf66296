package daybreak

import "github.com/kleinmatic/daybreak/internal/serializer"

// defaultKind tags which variant of the default-value policy a Database
// was configured with (spec §9 "Default factory": "represent a
// configured default as a tagged variant: None | Constant(v) |
// Factory(k -> v)").
type defaultKind int

const (
	defaultNone defaultKind = iota
	defaultConstant
	defaultFactory
)

// DefaultPolicy governs what Get returns on a miss (spec §4.7
// "Default-value policy"). The zero value is "no default", matching
// plain map-miss semantics.
type DefaultPolicy struct {
	kind      defaultKind
	constant  any
	factory   func(key any) any
}

// NoDefault is the default policy: a miss returns a nil value with no
// error ("absent", per spec §4.7).
func NoDefault() DefaultPolicy {
	return DefaultPolicy{kind: defaultNone}
}

// ConstantDefault installs v (unchanged) on every miss.
func ConstantDefault(v any) DefaultPolicy {
	return DefaultPolicy{kind: defaultConstant, constant: v}
}

// FactoryDefault installs f(key) on every miss, letting the default
// vary by the key that missed.
func FactoryDefault(f func(key any) any) DefaultPolicy {
	return DefaultPolicy{kind: defaultFactory, factory: f}
}

func (p DefaultPolicy) valueFor(key any) (any, bool) {
	switch p.kind {
	case defaultConstant:
		return p.constant, true
	case defaultFactory:
		return p.factory(key), true
	default:
		return nil, false
	}
}

// Option configures a Database at Open.
type Option func(*config)

type config struct {
	serializer       serializer.Serializer
	defaultPolicy    DefaultPolicy
	changeFeedSize   int
	skipRegistry     bool
}

func newConfig() *config {
	return &config{
		serializer:     serializer.Gob{},
		defaultPolicy:  NoDefault(),
		changeFeedSize: 1024,
	}
}

// WithSerializer overrides the default gob Serializer (spec §6).
func WithSerializer(s serializer.Serializer) Option {
	return func(c *config) { c.serializer = s }
}

// WithDefault installs a DefaultPolicy for Get misses (spec §4.7).
func WithDefault(p DefaultPolicy) Option {
	return func(c *config) { c.defaultPolicy = p }
}

// WithChangeFeedCapacity overrides the change feed's ring buffer size
// (supplemented feature; see internal/changefeed).
func WithChangeFeedCapacity(n int) Option {
	return func(c *config) { c.changeFeedSize = n }
}

// withoutRegistry skips process-wide registry registration. Exercised
// by this package's own tests, which open and close many short-lived
// databases and would otherwise arm the at-exit signal handler
// pointlessly; not exported since ordinary callers always want their
// database registered.
func withoutRegistry() Option {
	return func(c *config) { c.skipRegistry = true }
}
