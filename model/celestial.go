package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidSensorData indicates a sensor value outside its declared bound.
var ErrInvalidSensorData = errors.New("invalid sensor data")

// sensorValidate checks SensorReading bound tags. validator.Validate is safe
// for concurrent use once configured.
var sensorValidate = validator.New()

// Kind classifies a celestial body.
type Kind string

const (
	KindStar   Kind = "Star"
	KindPlanet Kind = "Planet"
	KindMoon   Kind = "Moon"
)

// SensorReading is an immutable set of environmental measurements.
// Units are fixed: Kelvin, Pascals, percent, and Sieverts. Only values
// returned by NewSensorReading, or literals that pass Validate, are in bounds;
// the tree never stores anything else.
type SensorReading struct {
	Temperature float64 `validate:"gte=0"`
	Pressure    float64 `validate:"gte=0"`
	Humidity    float64 `validate:"gte=0,lte=100"`
	Radiation   float64 `validate:"gte=0"`
}

// NewSensorReading validates and returns a reading. NaN fails every bound.
func NewSensorReading(temperature, pressure, humidity, radiation float64) (SensorReading, error) {
	r := SensorReading{
		Temperature: temperature,
		Pressure:    pressure,
		Humidity:    humidity,
		Radiation:   radiation,
	}
	if err := r.Validate(); err != nil {
		return SensorReading{}, err
	}
	return r, nil
}

// Validate reports the first bound r violates, wrapped in ErrInvalidSensorData.
func (r SensorReading) Validate() error {
	err := sensorValidate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s=%v fails %q", ErrInvalidSensorData, verrs[0].Field(), verrs[0].Value(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidSensorData, err)
}

// CelestialNode is one body in a planetary system tree. Name, kind and sensor
// data are fixed at construction; children only grow by append.
type CelestialNode struct {
	name     string
	kind     Kind
	data     SensorReading
	children []*CelestialNode
}

// NewCelestialNode constructs a node with no children. data is stored as
// given; callers building a tree pass a validated reading.
func NewCelestialNode(name string, kind Kind, data SensorReading) *CelestialNode {
	return &CelestialNode{name: name, kind: kind, data: data}
}

func (n *CelestialNode) Name() string              { return n.name }
func (n *CelestialNode) Kind() Kind                { return n.kind }
func (n *CelestialNode) SensorData() SensorReading { return n.data }

// Children returns a snapshot of the ordered child list.
func (n *CelestialNode) Children() []*CelestialNode {
	return append([]*CelestialNode(nil), n.children...)
}

// NumChildren returns the number of direct children.
func (n *CelestialNode) NumChildren() int { return len(n.children) }

// AddChild appends child as the last child of n. Callers own validation.
func (n *CelestialNode) AddChild(child *CelestialNode) {
	n.children = append(n.children, child)
}
