package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/starter_groups.yml
var starterGroupsYAML []byte

// StarterGroup is a club definition from the fixture file.
type StarterGroup struct {
	Title       string   `yaml:"title"`
	Author      string   `yaml:"author"`
	Description string   `yaml:"description"`
	Question    string   `yaml:"question"`
	Answer      string   `yaml:"answer"`
	Threads     []string `yaml:"threads"`
}

type starterFile struct {
	Groups []StarterGroup `yaml:"groups"`
}

// DefaultStarterGroups returns the embedded fixture.
func DefaultStarterGroups() ([]StarterGroup, error) {
	return LoadStarterGroups(bytes.NewReader(starterGroupsYAML))
}

// LoadStarterGroups parses a fixture and checks the fields every group needs.
func LoadStarterGroups(r io.Reader) ([]StarterGroup, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file starterFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse starter groups: %w", err)
	}

	for i, g := range file.Groups {
		switch {
		case strings.TrimSpace(g.Title) == "":
			return nil, fmt.Errorf("starter group %d: title is required", i)
		case strings.TrimSpace(g.Author) == "":
			return nil, fmt.Errorf("starter group %q: author is required", g.Title)
		case strings.TrimSpace(g.Question) == "" || strings.TrimSpace(g.Answer) == "":
			return nil, fmt.Errorf("starter group %q: question and answer are required", g.Title)
		}
	}
	return file.Groups, nil
}
