// Package catalog holds the enumerated choices the bot offers: events,
// lesson classes, hymnbooks, bible versions, departments and worker types.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/ashureev/sundaybot/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const anchorLayout = "2006-01-02"

// Choice is a keyed display name.
type Choice struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

// Event describes one registrable camp.
type Event struct {
	Key                domain.EventType `yaml:"key"`
	Name               string           `yaml:"name"`
	Short              string           `yaml:"short"`
	Dates              string           `yaml:"dates"`
	CollectsDependents bool             `yaml:"collects_dependents"`
	SpreadsheetID      string           `yaml:"spreadsheet_id"`
	SheetRange         string           `yaml:"sheet_range"`
}

// Class is a Sunday School class with a weekly lesson file.
type Class struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	File    string `yaml:"file"`
	ListKey string `yaml:"list_key"`
	Anchor  string `yaml:"anchor"`

	anchor time.Time
}

// AnchorDate is the date whose week holds lesson index 0.
func (c Class) AnchorDate() time.Time {
	return c.anchor
}

// Source is a content file offered as a choice.
type Source struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// Catalog is the full set of static choices.
type Catalog struct {
	Events       []Event  `yaml:"events"`
	Classes      []Class  `yaml:"classes"`
	Hymnbooks    []Source `yaml:"hymnbooks"`
	Bibles       []Source `yaml:"bibles"`
	DefaultBible string   `yaml:"default_bible"`
	Departments  []Choice `yaml:"departments"`
	WorkerTypes  []Choice `yaml:"worker_types"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic("catalog: embedded catalog is invalid: " + err.Error())
	}
	return c
}

// Load reads a catalog from path, or returns the embedded one if path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	for _, e := range domain.EventTypes {
		if _, ok := c.Event(e); !ok {
			return fmt.Errorf("missing event %q", e)
		}
	}
	for i := range c.Classes {
		t, err := time.Parse(anchorLayout, c.Classes[i].Anchor)
		if err != nil {
			return fmt.Errorf("class %q anchor: %w", c.Classes[i].Key, err)
		}
		c.Classes[i].anchor = t
	}
	if len(c.Classes) == 0 || len(c.Hymnbooks) == 0 || len(c.Bibles) == 0 {
		return fmt.Errorf("classes, hymnbooks and bibles must not be empty")
	}
	if _, ok := c.Bible(c.DefaultBible); !ok {
		return fmt.Errorf("default bible %q is not listed", c.DefaultBible)
	}
	if len(c.Departments) == 0 || len(c.WorkerTypes) == 0 {
		return fmt.Errorf("departments and worker types must not be empty")
	}
	return nil
}

// Event returns the event with the given key.
func (c *Catalog) Event(key domain.EventType) (Event, bool) {
	for _, e := range c.Events {
		if e.Key == key {
			return e, true
		}
	}
	return Event{}, false
}

// EventName returns the display name of an event, falling back to its key.
func (c *Catalog) EventName(key domain.EventType) string {
	if e, ok := c.Event(key); ok {
		return e.Name
	}
	return string(key)
}

// Class returns the class with the given key.
func (c *Catalog) Class(key string) (Class, bool) {
	for _, cl := range c.Classes {
		if cl.Key == key {
			return cl, true
		}
	}
	return Class{}, false
}

// ClassByName returns the class with the given display name.
func (c *Catalog) ClassByName(name string) (Class, bool) {
	for _, cl := range c.Classes {
		if cl.Name == name {
			return cl, true
		}
	}
	return Class{}, false
}

// Hymnbook returns the hymnbook with the given key.
func (c *Catalog) Hymnbook(key string) (Source, bool) {
	return findSource(c.Hymnbooks, key)
}

// Bible returns the bible version with the given key.
func (c *Catalog) Bible(key string) (Source, bool) {
	return findSource(c.Bibles, key)
}

// Department returns the department display name for key.
func (c *Catalog) Department(key string) (string, bool) {
	return findChoice(c.Departments, key)
}

// WorkerType returns the worker type display name for key.
func (c *Catalog) WorkerType(key string) (string, bool) {
	return findChoice(c.WorkerTypes, key)
}

func findSource(list []Source, key string) (Source, bool) {
	for _, s := range list {
		if s.Key == key {
			return s, true
		}
	}
	return Source{}, false
}

func findChoice(list []Choice, key string) (string, bool) {
	for _, ch := range list {
		if ch.Key == key {
			return ch.Name, true
		}
	}
	return "", false
}
