package leads

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed consultants.yaml
var defaultConsultants []byte

// ErrUnknownConsultant is returned when a consultant id is not in the directory.
var ErrUnknownConsultant = errors.New("leads: unknown consultant")

// ConsultantDirectory resolves consultants by id.
type ConsultantDirectory interface {
	Lookup(id string) (Consultant, bool)
	List() []Consultant
}

// StaticDirectory is an in-memory ConsultantDirectory loaded once at startup.
type StaticDirectory struct {
	ordered []Consultant
	byID    map[string]Consultant
}

// NewStaticDirectory builds a directory, rejecting blank or duplicate entries.
func NewStaticDirectory(consultants []Consultant) (*StaticDirectory, error) {
	d := &StaticDirectory{
		ordered: make([]Consultant, 0, len(consultants)),
		byID:    make(map[string]Consultant, len(consultants)),
	}
	for i, c := range consultants {
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("consultant %d: id and nome are required", i)
		}
		if _, dup := d.byID[c.ID]; dup {
			return nil, fmt.Errorf("consultant %d: duplicate id %q", i, c.ID)
		}
		d.byID[c.ID] = c
		d.ordered = append(d.ordered, c)
	}
	return d, nil
}

// LoadDirectory reads consultants from a YAML file. An empty path loads the
// built-in roster.
func LoadDirectory(path string) (*StaticDirectory, error) {
	data := defaultConsultants
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read consultants: %w", err)
		}
	}
	var consultants []Consultant
	if err := yaml.Unmarshal(data, &consultants); err != nil {
		return nil, fmt.Errorf("parse consultants: %w", err)
	}
	return NewStaticDirectory(consultants)
}

// Lookup finds a consultant by id.
func (d *StaticDirectory) Lookup(id string) (Consultant, bool) {
	if d == nil {
		return Consultant{}, false
	}
	c, ok := d.byID[id]
	return c, ok
}

// List returns every consultant in file order.
func (d *StaticDirectory) List() []Consultant {
	if d == nil {
		return nil
	}
	out := make([]Consultant, len(d.ordered))
	copy(out, d.ordered)
	return out
}

// Active lists the consultants that can receive new leads.
func Active(dir ConsultantDirectory) []Consultant {
	if dir == nil {
		return nil
	}
	var out []Consultant
	for _, c := range dir.List() {
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}
