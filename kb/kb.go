package kb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/planetary-survey/internal/logging"
	"github.com/signalsfoundry/planetary-survey/model"
)

var (
	// ErrInvalidSensorData indicates a sensor value violates its bound.
	ErrInvalidSensorData = model.ErrInvalidSensorData
	// ErrInvalidStarHumidity indicates a star was given non-zero humidity.
	ErrInvalidStarHumidity = errors.New("star cannot have humidity")
	// ErrParentNotFound indicates the named parent does not exist.
	ErrParentNotFound = errors.New("parent not found")
	// ErrInvalidParentKind indicates the parent's kind cannot hold the child.
	ErrInvalidParentKind = errors.New("invalid parent kind")
	// ErrDuplicateName indicates a body with the same name already exists.
	ErrDuplicateName = errors.New("name already exists")
)

// EventType indicates what kind of change happened in the system.
type EventType int

const (
	EventBodyAdded EventType = iota
)

// Event is emitted to subscribers after a successful change.
type Event struct {
	Type   EventType
	Name   string
	Kind   model.Kind
	Parent string
}

type subscriber struct {
	id int
	fn func(Event)
}

// BodyCounts tallies bodies by kind.
type BodyCounts struct {
	Stars   int
	Planets int
	Moons   int
}

// Total returns the number of bodies in the tree.
func (c BodyCounts) Total() int { return c.Stars + c.Planets + c.Moons }

// MetricsRecorder receives body counts after every change.
type MetricsRecorder interface {
	SetBodyCounts(stars, planets, moons int)
}

// Option customises PlanetarySystem construction.
type Option func(*PlanetarySystem)

// WithLogger attaches a structured logger for insertion events.
func WithLogger(l logging.Logger) Option {
	return func(s *PlanetarySystem) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsRecorder attaches a recorder for body-count gauges.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *PlanetarySystem) {
		s.metrics = m
	}
}

// PlanetarySystem is a star-rooted tree of celestial bodies. All operations
// are safe for concurrent use; inserts validate and append under one lock.
type PlanetarySystem struct {
	mu sync.RWMutex

	root   *model.CelestialNode
	counts BodyCounts

	subs   []subscriber
	nextID int

	log     logging.Logger
	metrics MetricsRecorder
}

// NewPlanetarySystem creates a system whose root is a star with the given
// readings. A star must have zero humidity.
func NewPlanetarySystem(starName string, temperature, pressure, humidity, radiation float64, opts ...Option) (*PlanetarySystem, error) {
	if humidity != 0 {
		return nil, fmt.Errorf("%w: star %q humidity=%v", ErrInvalidStarHumidity, starName, humidity)
	}
	data, err := model.NewSensorReading(temperature, pressure, humidity, radiation)
	if err != nil {
		return nil, fmt.Errorf("star %q: %w", starName, err)
	}

	s := &PlanetarySystem{
		root:   model.NewCelestialNode(starName, model.KindStar, data),
		counts: BodyCounts{Stars: 1},
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Info(context.Background(), "planetary system created", logging.String("star", starName))
	s.recordCounts(s.counts)
	return s, nil
}

// Root returns the star. Walking it while another goroutine inserts is a race;
// use the query methods for concurrent access.
func (s *PlanetarySystem) Root() *model.CelestialNode {
	return s.root
}

// Counts returns the current body tally.
func (s *PlanetarySystem) Counts() BodyCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

// FindNode returns the body named name using a depth-first pre-order search.
// The returned node is shared with the tree and must be treated as read-only.
func (s *PlanetarySystem) FindNode(name string) (*model.CelestialNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := findNode(s.root, name)
	return n, n != nil
}

func findNode(current *model.CelestialNode, name string) *model.CelestialNode {
	if current.Name() == name {
		return current
	}
	for _, child := range current.Children() {
		if found := findNode(child, name); found != nil {
			return found
		}
	}
	return nil
}

// AddPlanet appends a planet under a star or another planet.
func (s *PlanetarySystem) AddPlanet(name, parentName string, temperature, pressure, humidity, radiation float64) error {
	return s.addBody(model.KindPlanet, name, parentName, model.SensorReading{
		Temperature: temperature,
		Pressure:    pressure,
		Humidity:    humidity,
		Radiation:   radiation,
	})
}

// AddSatellite appends a moon under a planet.
func (s *PlanetarySystem) AddSatellite(name, parentName string, temperature, pressure, humidity, radiation float64) error {
	return s.addBody(model.KindMoon, name, parentName, model.SensorReading{
		Temperature: temperature,
		Pressure:    pressure,
		Humidity:    humidity,
		Radiation:   radiation,
	})
}

// addBody checks, in order: parent exists, parent kind, name uniqueness, and
// sensor bounds. The tree is untouched unless every check passes.
func (s *PlanetarySystem) addBody(kind model.Kind, name, parentName string, raw model.SensorReading) error {
	s.mu.Lock()

	parent := findNode(s.root, parentName)
	if parent == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrParentNotFound, parentName)
	}
	if !canParent(parent.Kind(), kind) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s %q cannot hold a %s", ErrInvalidParentKind, parent.Kind(), parentName, kind)
	}
	if findNode(s.root, name) != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if err := raw.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s %q: %w", kind, name, err)
	}

	parent.AddChild(model.NewCelestialNode(name, kind, raw))
	switch kind {
	case model.KindPlanet:
		s.counts.Planets++
	case model.KindMoon:
		s.counts.Moons++
	}
	s.recordCounts(s.counts)
	event := Event{Type: EventBodyAdded, Name: name, Kind: kind, Parent: parentName}
	subs := append([]subscriber{}, s.subs...)
	s.mu.Unlock()

	s.log.Debug(context.Background(), "body added",
		logging.String("name", name),
		logging.String("kind", string(kind)),
		logging.String("parent", parentName),
	)

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub.fn(event)
	}
	return nil
}

func canParent(parent, child model.Kind) bool {
	switch child {
	case model.KindPlanet:
		return parent == model.KindStar || parent == model.KindPlanet
	case model.KindMoon:
		return parent == model.KindPlanet
	default:
		return false
	}
}

// FindRadiationAnomalies returns, in pre-order, every body whose radiation is
// strictly greater than threshold. The result is never nil.
func (s *PlanetarySystem) FindRadiationAnomalies(threshold float64) []*model.CelestialNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.CelestialNode, 0)
	walk(s.root, 0, func(n *model.CelestialNode, _ int) {
		if n.SensorData().Radiation > threshold {
			result = append(result, n)
		}
	})
	return result
}

// PathTo returns the names from the star down to the body named name.
func (s *PlanetarySystem) PathTo(name string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var path []string
	if !findPath(s.root, name, &path) {
		return nil, false
	}
	return path, true
}

// findPath pushes current, and pops it again if neither it nor any of its
// descendants matches, so a failed branch leaves nothing behind.
func findPath(current *model.CelestialNode, target string, path *[]string) bool {
	*path = append(*path, current.Name())
	if current.Name() == target {
		return true
	}
	for _, child := range current.Children() {
		if findPath(child, target, path) {
			return true
		}
	}
	*path = (*path)[:len(*path)-1]
	return false
}

// Subscribe registers a callback for change events. It returns an unsubscribe function.
func (s *PlanetarySystem) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *PlanetarySystem) recordCounts(c BodyCounts) {
	if s.metrics == nil {
		return
	}
	s.metrics.SetBodyCounts(c.Stars, c.Planets, c.Moons)
}

// walk visits n and its descendants in pre-order, passing each node's depth.
func walk(n *model.CelestialNode, depth int, visit func(*model.CelestialNode, int)) {
	visit(n, depth)
	for _, child := range n.Children() {
		walk(child, depth+1, visit)
	}
}
