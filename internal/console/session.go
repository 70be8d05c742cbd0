// Package console implements the line-oriented command interpreter that
// drives a planetary system.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/planetary-survey/internal/logging"
	"github.com/signalsfoundry/planetary-survey/internal/observability"
	"github.com/signalsfoundry/planetary-survey/kb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const createUsage = `Usage: create planetSystem "name" "temperature" "pressure" "humidity" "radiation"`

// errInvalidNumber marks a token that does not parse as a float.
var errInvalidNumber = errors.New("invalid numeric input")

// Recorder receives one observation per interpreted command and the body
// counts of any system the session creates.
type Recorder interface {
	ObserveCommand(command, outcome string, elapsed time.Duration)
	kb.MetricsRecorder
}

// Option customises Session construction.
type Option func(*Session)

// WithLogger attaches a structured logger; it is also handed to systems the
// session creates.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRecorder attaches a metrics recorder, typically an
// observability.SurveyCollector.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithSystem starts the session with an existing system, as if `create` had
// already run.
func WithSystem(sys *kb.PlanetarySystem) Option {
	return func(s *Session) {
		s.system = sys
	}
}

// Session owns the planetary system for one interactive run. It is not safe
// for concurrent use.
type Session struct {
	out      io.Writer
	system   *kb.PlanetarySystem
	log      logging.Logger
	recorder Recorder
}

// NewSession constructs a session that writes its transcript to out.
func NewSession(out io.Writer, opts ...Option) *Session {
	s := &Session{
		out: out,
		log: logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// System returns the session's planetary system, or nil before `create`.
func (s *Session) System() *kb.PlanetarySystem {
	return s.system
}

// Run reads commands from in until `exit`, end of input, or ctx is done.
// Only read errors and ctx.Err() are returned; command failures are reported
// in the transcript.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)

	// The reader goroutine may stay blocked in Read after Run returns; it exits
	// on the next line or when in is closed.
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read commands: %w", err)
				}
				return nil
			}
			if quit := s.Execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// Execute interprets a single line and reports whether the session should end.
func (s *Session) Execute(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	command := parts[0]

	ctx, log := logging.WithCommandLogger(ctx, s.log.With(logging.String("command", command)))
	ctx, span := observability.StartCommandSpan(ctx, command, attribute.Int("planetsim.args", len(parts)-1))
	defer span.End()

	start := time.Now()
	outcome, err := s.dispatch(ctx, command, parts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Info(ctx, "command rejected", logging.Err(err))
	} else {
		log.Debug(ctx, "command handled", logging.String("outcome", outcome))
	}
	span.SetAttributes(attribute.String("planetsim.outcome", outcome))
	if s.recorder != nil {
		s.recorder.ObserveCommand(metricCommand(command), outcome, time.Since(start))
	}

	return isExit(parts)
}

// isExit matches a bare `exit`; `exit now` is an unknown command.
func isExit(parts []string) bool {
	return len(parts) == 1 && parts[0] == "exit"
}

// dispatch runs one command. The returned error, if any, has already been
// reported in the transcript and is only for logs and spans.
func (s *Session) dispatch(ctx context.Context, command string, parts []string) (string, error) {
	if isExit(parts) {
		s.println("Exiting...")
		return observability.OutcomeOK, nil
	}
	switch command {
	case "help":
		s.printHelp()
		return observability.OutcomeOK, nil
	case "create":
		return s.create(parts)
	}

	handler, ok := systemCommands[command]
	if !ok {
		s.println("Unknown command.")
		return observability.OutcomeUsage, fmt.Errorf("unknown command %q", command)
	}
	if s.system == nil {
		s.println("Error: System not created.")
		return observability.OutcomeRejected, errors.New("system not created")
	}
	if !handler.arity(len(parts) - 1) {
		s.println(handler.usage)
		return observability.OutcomeUsage, fmt.Errorf("%s: wrong argument count %d", command, len(parts)-1)
	}

	unsubscribe := s.system.Subscribe(func(ev kb.Event) { s.reportEvent(ctx, ev) })
	defer unsubscribe()

	err := handler.run(ctx, s, parts[1:])
	switch {
	case err == nil:
		return observability.OutcomeOK, nil
	case errors.Is(err, errInvalidNumber):
		s.println("Error: Invalid numeric input.")
		return observability.OutcomeUsage, err
	default:
		s.println(errorLine(command, err))
		return observability.OutcomeRejected, err
	}
}

func (s *Session) create(parts []string) (string, error) {
	if len(parts) != 7 || parts[1] != "planetSystem" {
		s.println(createUsage)
		return observability.OutcomeUsage, errors.New("create: malformed command")
	}
	if s.system != nil {
		s.println("Error: System already created.")
		return observability.OutcomeRejected, errors.New("system already created")
	}
	vals, err := parseReadings(parts[3:7])
	if err != nil {
		s.println("Error: Invalid numeric input.")
		return observability.OutcomeUsage, err
	}

	opts := []kb.Option{kb.WithLogger(s.log)}
	if s.recorder != nil {
		opts = append(opts, kb.WithMetricsRecorder(s.recorder))
	}
	sys, err := kb.NewPlanetarySystem(parts[2], vals[0], vals[1], vals[2], vals[3], opts...)
	if err != nil {
		s.println(errorLine("create", err))
		return observability.OutcomeRejected, err
	}
	s.system = sys
	s.println("System created.")
	return observability.OutcomeOK, nil
}

// reportEvent annotates the running command's span and log with a tree change.
func (s *Session) reportEvent(ctx context.Context, ev kb.Event) {
	if ev.Type != kb.EventBodyAdded {
		return
	}
	trace.SpanFromContext(ctx).AddEvent("body added", trace.WithAttributes(
		attribute.String("planetsim.body", ev.Name),
		attribute.String("planetsim.kind", string(ev.Kind)),
		attribute.String("planetsim.parent", ev.Parent),
	))
	logging.FromContext(ctx, s.log).Info(ctx, "body added",
		logging.String("name", ev.Name),
		logging.String("kind", string(ev.Kind)),
		logging.String("parent", ev.Parent),
	)
}

type systemCommand struct {
	arity func(n int) bool
	usage string
	run   func(ctx context.Context, s *Session, args []string) error
}

func exactly(want int) func(int) bool {
	return func(n int) bool { return n == want }
}

var systemCommands = map[string]systemCommand{
	"addPlanet": {
		arity: exactly(6),
		usage: "Invalid command: addPlanet requires 6 arguments.",
		run: func(ctx context.Context, s *Session, args []string) error {
			vals, err := parseReadings(args[2:6])
			if err != nil {
				return err
			}
			if err := s.system.AddPlanet(args[0], args[1], vals[0], vals[1], vals[2], vals[3]); err != nil {
				return err
			}
			s.println("Planet added.")
			return nil
		},
	},
	"addSatellite": {
		arity: exactly(6),
		usage: "Invalid command: addSatellite requires 6 arguments.",
		run: func(ctx context.Context, s *Session, args []string) error {
			vals, err := parseReadings(args[2:6])
			if err != nil {
				return err
			}
			if err := s.system.AddSatellite(args[0], args[1], vals[0], vals[1], vals[2], vals[3]); err != nil {
				return err
			}
			s.println("Satellite added.")
			return nil
		},
	},
	"findRadiationAnomalies": {
		arity: exactly(1),
		usage: "Invalid command: findRadiationAnomalies requires 1 argument.",
		run: func(ctx context.Context, s *Session, args []string) error {
			threshold, err := parseNumber(args[0])
			if err != nil {
				return err
			}
			anomalies := s.system.FindRadiationAnomalies(threshold)
			logging.FromContext(ctx, s.log).Debug(ctx, "radiation scan",
				logging.Float64("threshold", threshold),
				logging.Int("matches", len(anomalies)),
			)
			s.println("Radiation anomalies:")
			for _, n := range anomalies {
				s.println(n.Name())
			}
			return nil
		},
	},
	"getPathTo": {
		arity: exactly(1),
		usage: "Invalid command: getPathTo requires 1 argument.",
		run: func(ctx context.Context, s *Session, args []string) error {
			path, ok := s.system.PathTo(args[0])
			if !ok {
				s.println("Node not found.")
				return nil
			}
			s.println("Path to " + args[0] + ":")
			s.println(strings.Join(path, " "))
			return nil
		},
	},
	"printMissionReport": {
		arity: func(n int) bool { return n <= 1 },
		usage: "Invalid command: printMissionReport takes 0 or 1 argument.",
		run: func(ctx context.Context, s *Session, args []string) error {
			if len(args) == 0 {
				s.println("Mission report:")
				fmt.Fprint(s.out, s.system.RenderMissionReport())
				return nil
			}
			line, ok := s.system.RenderNodeReport(args[0])
			if !ok {
				s.println("Node not found.")
				return nil
			}
			fmt.Fprint(s.out, line)
			return nil
		},
	},
}

func (s *Session) printHelp() {
	s.println("Commands:")
	s.println(`  create planetSystem "name" "temperature" "pressure" "humidity" "radiation"`)
	s.println(`  addPlanet "name" "parent" "temperature" "pressure" "humidity" "radiation"`)
	s.println(`  addSatellite "name" "parent" "temperature" "pressure" "humidity" "radiation"`)
	s.println(`  findRadiationAnomalies "threshold"`)
	s.println(`  getPathTo "name"`)
	s.println(`  printMissionReport ["name"]`)
	s.println(`  exit`)
}

func (s *Session) println(line string) {
	fmt.Fprintln(s.out, line)
}

// errorLine maps a tree error onto the line shown to the user.
func errorLine(command string, err error) string {
	switch {
	case errors.Is(err, kb.ErrInvalidStarHumidity):
		return "Error: Star cannot have humidity."
	case errors.Is(err, kb.ErrInvalidSensorData):
		return "Error: Invalid sensor data: values must be non-negative, humidity 0-100."
	case errors.Is(err, kb.ErrParentNotFound):
		return "Error: Parent not found."
	case errors.Is(err, kb.ErrInvalidParentKind):
		if command == "addSatellite" {
			return "Error: Satellites can only be added to planets."
		}
		return "Error: Moons cannot be parents of planets."
	case errors.Is(err, kb.ErrDuplicateName):
		return "Error: Name already exists."
	default:
		return "Error"
	}
}

func parseNumber(tok string) (float64, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidNumber, tok)
	}
	return v, nil
}

func parseReadings(toks []string) ([4]float64, error) {
	var vals [4]float64
	for i, tok := range toks {
		v, err := parseNumber(tok)
		if err != nil {
			return vals, err
		}
		vals[i] = v
	}
	return vals, nil
}

// metricCommand bounds label cardinality to the known command set.
func metricCommand(command string) string {
	switch command {
	case "exit", "help", "create":
		return command
	}
	if _, ok := systemCommands[command]; ok {
		return command
	}
	return "unknown"
}
