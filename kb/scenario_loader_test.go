package kb

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const solScenario = `
star:
  name: Sol
  temperature: 5778
  pressure: 0
  humidity: 0
  radiation: 0.1
  bodies:
    - name: Earth
      kind: planet
      temperature: 288
      pressure: 101325
      humidity: 60
      radiation: 0.2
      bodies:
        - name: Moon
          kind: moon
          temperature: 220
          radiation: 0.05
    - name: Mars
      kind: Planet
      temperature: 210
      pressure: 600
      radiation: 0.3
      bodies:
        - {name: Phobos, kind: satellite, temperature: 233}
`

func TestLoadScenario(t *testing.T) {
	sys, summary, err := LoadScenario(strings.NewReader(solScenario))
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}

	if summary.Star != "Sol" {
		t.Fatalf("summary star = %q, want Sol", summary.Star)
	}
	if want := []string{"Earth", "Moon", "Mars", "Phobos"}; !reflect.DeepEqual(summary.Bodies, want) {
		t.Fatalf("summary bodies = %v, want %v", summary.Bodies, want)
	}
	if got := sys.Counts(); got != (BodyCounts{Stars: 1, Planets: 2, Moons: 2}) {
		t.Fatalf("Counts = %+v", got)
	}
	if path, ok := sys.PathTo("Phobos"); !ok || !reflect.DeepEqual(path, []string{"Sol", "Mars", "Phobos"}) {
		t.Fatalf("PathTo(Phobos) = %v, %v", path, ok)
	}
	moon, ok := sys.FindNode("Moon")
	if !ok || moon.SensorData().Temperature != 220 || moon.SensorData().Radiation != 0.05 {
		t.Fatalf("FindNode(Moon) = %+v, %v", moon, ok)
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		wantErr error
		wantMsg string
	}{
		{name: "empty", doc: "", wantMsg: "empty document"},
		{name: "no star", doc: "bodies: []\n", wantMsg: "decode failed"},
		{name: "missing star key", doc: "star: null\n", wantMsg: "star is required"},
		{name: "humid star", doc: "star: {name: Sol, humidity: 3}\n", wantErr: ErrInvalidStarHumidity},
		{
			name:    "moon under star",
			doc:     "star:\n  name: Sol\n  bodies:\n    - {name: Luna, kind: moon}\n",
			wantErr: ErrInvalidParentKind,
		},
		{
			name:    "duplicate",
			doc:     "star:\n  name: Sol\n  bodies:\n    - {name: Sol, kind: planet}\n",
			wantErr: ErrDuplicateName,
		},
		{
			name:    "bad reading",
			doc:     "star:\n  name: Sol\n  bodies:\n    - {name: Mars, kind: planet, humidity: 120}\n",
			wantErr: ErrInvalidSensorData,
		},
		{
			name:    "unknown kind",
			doc:     "star:\n  name: Sol\n  bodies:\n    - {name: Ceres, kind: asteroid}\n",
			wantMsg: "unsupported kind",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sys, _, err := LoadScenario(strings.NewReader(tc.doc))
			if err == nil {
				t.Fatalf("expected error, got system %v", sys)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("LoadScenario error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantMsg != "" && !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("LoadScenario error = %v, want it to mention %q", err, tc.wantMsg)
			}
		})
	}
}
