// Package catalog holds the ground locations and spacecraft a prediction can
// be requested for.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknown is returned when a name is not in the catalog.
var ErrUnknown = errors.New("not in catalog")

// Location is a named ground observer.
type Location struct {
	Name   string  `yaml:"name" json:"name"`
	LatDeg float64 `yaml:"lat_deg" json:"lat_deg"`
	LonDeg float64 `yaml:"lon_deg" json:"lon_deg"` // east positive
	AltM   float64 `yaml:"alt_m" json:"alt_m"`
}

// Spacecraft is a named satellite.
type Spacecraft struct {
	Name    string `yaml:"name" json:"name"`
	NORADID int    `yaml:"norad_id" json:"norad_id"`
}

// Catalog is the set of selectable locations and spacecraft.
type Catalog struct {
	Locations  []Location   `yaml:"locations" json:"locations"`
	Spacecraft []Spacecraft `yaml:"spacecraft" json:"spacecraft"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Locations: []Location{
			{Name: "Karachi", LatDeg: 24.86, LonDeg: 67.01},
			{Name: "Lisbon", LatDeg: 38.736, LonDeg: -9.1426},
			{Name: "Ottawa", LatDeg: 45.334904, LonDeg: -75.724098},
			{Name: "San Francisco", LatDeg: 37.77, LonDeg: -122.431},
		},
		Spacecraft: []Spacecraft{
			{Name: "International Space Station (USA)", NORADID: 25544},
			{Name: "Tiangong (China)", NORADID: 48274},
		},
	}
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks coordinates, catalog numbers and name uniqueness.
func (c *Catalog) Validate() error {
	if len(c.Locations) == 0 {
		return errors.New("catalog has no locations")
	}
	if len(c.Spacecraft) == 0 {
		return errors.New("catalog has no spacecraft")
	}

	seen := make(map[string]bool)
	for i, l := range c.Locations {
		switch {
		case l.Name == "":
			return fmt.Errorf("location %d has no name", i)
		case seen[l.Name]:
			return fmt.Errorf("duplicate location %q", l.Name)
		case l.LatDeg < -90 || l.LatDeg > 90:
			return fmt.Errorf("location %q latitude %v outside [-90, 90]", l.Name, l.LatDeg)
		case l.LonDeg < -180 || l.LonDeg > 180:
			return fmt.Errorf("location %q longitude %v outside [-180, 180]", l.Name, l.LonDeg)
		}
		seen[l.Name] = true
	}

	seen = make(map[string]bool)
	for i, s := range c.Spacecraft {
		switch {
		case s.Name == "":
			return fmt.Errorf("spacecraft %d has no name", i)
		case seen[s.Name]:
			return fmt.Errorf("duplicate spacecraft %q", s.Name)
		case s.NORADID < 1 || s.NORADID > 99999:
			return fmt.Errorf("spacecraft %q NORAD ID %d outside 1..99999", s.Name, s.NORADID)
		}
		seen[s.Name] = true
	}
	return nil
}

// LookupLocation finds a location by name.
func (c *Catalog) LookupLocation(name string) (Location, error) {
	for _, l := range c.Locations {
		if l.Name == name {
			return l, nil
		}
	}
	return Location{}, fmt.Errorf("location %q: %w", name, ErrUnknown)
}

// LookupSpacecraft finds a spacecraft by name or by catalog number.
func (c *Catalog) LookupSpacecraft(name string) (Spacecraft, error) {
	for _, s := range c.Spacecraft {
		if s.Name == name || fmt.Sprint(s.NORADID) == name {
			return s, nil
		}
	}
	return Spacecraft{}, fmt.Errorf("spacecraft %q: %w", name, ErrUnknown)
}

// LocationNames returns the location names sorted alphabetically.
func (c *Catalog) LocationNames() []string {
	names := make([]string, len(c.Locations))
	for i, l := range c.Locations {
		names[i] = l.Name
	}
	sort.Strings(names)
	return names
}

// SpacecraftNames returns the spacecraft names in catalog order.
func (c *Catalog) SpacecraftNames() []string {
	names := make([]string, len(c.Spacecraft))
	for i, s := range c.Spacecraft {
		names[i] = s.Name
	}
	return names
}
