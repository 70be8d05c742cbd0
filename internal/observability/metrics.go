package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command outcomes used as the "outcome" label.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // validation or lookup failure reported to the user
	OutcomeUsage    = "usage"    // malformed command line
)

// SurveyCollector bundles Prometheus metrics for the interactive survey
// session and the planetary system it drives.
type SurveyCollector struct {
	gatherer prometheus.Gatherer

	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	Bodies          *prometheus.GaugeVec
}

// NewSurveyCollector registers survey metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSurveyCollector(reg prometheus.Registerer) (*SurveyCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planetsim_commands_total",
		Help: "Total number of interpreted commands, labeled by command and outcome.",
	}, []string{"command", "outcome"})
	commands, err := registerCounterVec(reg, commands, "planetsim_commands_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planetsim_command_duration_seconds",
		Help:    "Command execution latency in seconds.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"command"})
	durations, err = registerHistogramVec(reg, durations, "planetsim_command_duration_seconds")
	if err != nil {
		return nil, err
	}

	bodies := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planetsim_bodies",
		Help: "Current number of bodies in the planetary system, labeled by kind.",
	}, []string{"kind"})
	bodies, err = registerGaugeVec(reg, bodies, "planetsim_bodies")
	if err != nil {
		return nil, err
	}

	return &SurveyCollector{
		gatherer:        gatherer,
		Commands:        commands,
		CommandDuration: durations,
		Bodies:          bodies,
	}, nil
}

// ObserveCommand records one interpreted command.
func (c *SurveyCollector) ObserveCommand(command, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	if command == "" {
		command = "unknown"
	}
	if c.Commands != nil {
		c.Commands.WithLabelValues(command, outcome).Inc()
	}
	if c.CommandDuration != nil {
		c.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
	}
}

// SetBodyCounts satisfies kb.MetricsRecorder so the planetary system can
// drive gauge values directly from its mutators.
func (c *SurveyCollector) SetBodyCounts(stars, planets, moons int) {
	if c == nil || c.Bodies == nil {
		return
	}
	c.Bodies.WithLabelValues("star").Set(float64(stars))
	c.Bodies.WithLabelValues("planet").Set(float64(planets))
	c.Bodies.WithLabelValues("moon").Set(float64(moons))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SurveyCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
