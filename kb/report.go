package kb

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/planetary-survey/model"
)

const (
	reportIndent = "    "
	reportCorner = "└──"
)

// RenderMissionReport renders the whole tree in pre-order, one body per line.
// Children are indented under their parent with a corner marker.
func (s *PlanetarySystem) RenderMissionReport() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	walk(s.root, 0, func(n *model.CelestialNode, depth int) {
		if depth > 0 {
			b.WriteString(strings.Repeat(reportIndent, depth-1))
			b.WriteString(reportCorner)
		}
		b.WriteString(FormatNode(n))
		b.WriteByte('\n')
	})
	return b.String()
}

// RenderNodeReport renders the single line for the body named name.
func (s *PlanetarySystem) RenderNodeReport(name string) (string, bool) {
	n, ok := s.FindNode(name)
	if !ok {
		return "", false
	}
	return FormatNode(n) + "\n", true
}

// FormatNode renders one body's identity and readings without indentation or
// trailing newline.
func FormatNode(n *model.CelestialNode) string {
	d := n.SensorData()
	return fmt.Sprintf("%s (%s): %.2f Kelvin, %.2f Pascals, %.2f%% humidity, %.2f Sieverts",
		n.Name(), n.Kind(), d.Temperature, d.Pressure, d.Humidity, d.Radiation)
}
