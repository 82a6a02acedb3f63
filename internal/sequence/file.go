package sequence

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// fileTransition mirrors TransitionSpec in sequence files.
type fileTransition struct {
	Kind     string `yaml:"kind"`
	Duration string `yaml:"duration"`
}

type fileClip struct {
	Name       string          `yaml:"name"`
	Source     string          `yaml:"source"`
	Start      string          `yaml:"start"`
	Duration   string          `yaml:"duration"`
	Cut        bool            `yaml:"cut"`
	Transition *fileTransition `yaml:"transition"`
}

// sequenceFile matches the YAML sequence file structure
type sequenceFile struct {
	Name       string          `yaml:"name"`
	Transition *fileTransition `yaml:"transition"`
	Clips      []fileClip      `yaml:"clips"`
}

// LoadFile reads and parses a YAML sequence file.
func LoadFile(path string) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence file: %w", err)
	}

	seq, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sequence file %s: %w", path, err)
	}
	return seq, nil
}

// Parse decodes a YAML sequence document. The top-level transition is the
// default for clips that declare none; a clip with cut: true always hard cuts.
func Parse(data []byte) (*Sequence, error) {
	var f sequenceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}

	var defaultTransition *TransitionSpec
	if f.Transition != nil {
		spec, err := f.Transition.spec()
		if err != nil {
			return nil, fmt.Errorf("default transition: %w", err)
		}
		defaultTransition = spec
	}

	descriptors := make([]Descriptor, 0, len(f.Clips))
	for i, c := range f.Clips {
		d := Descriptor{
			Name:   c.Name,
			Source: c.Source,
		}
		if d.Name == "" {
			d.Name = fmt.Sprintf("clip%03d", i)
		}

		duration, err := parseDuration(c.Duration)
		if err != nil {
			return nil, fmt.Errorf("clip %d duration: %w", i, err)
		}
		d.Duration = duration

		start, err := parseDuration(c.Start)
		if err != nil {
			return nil, fmt.Errorf("clip %d start: %w", i, err)
		}
		d.Start = start

		switch {
		case c.Cut:
			d.Transition = nil
		case c.Transition != nil:
			spec, err := c.Transition.spec()
			if err != nil {
				return nil, fmt.Errorf("clip %d transition: %w", i, err)
			}
			d.Transition = spec
		case defaultTransition != nil:
			spec := *defaultTransition
			d.Transition = &spec
		}

		descriptors = append(descriptors, d)
	}

	return New(f.Name, descriptors), nil
}

func (ft *fileTransition) spec() (*TransitionSpec, error) {
	duration, err := parseDuration(ft.Duration)
	if err != nil {
		return nil, err
	}
	kind := ft.Kind
	if kind == "" {
		kind = KindCrossfade
	}
	return &TransitionSpec{Kind: kind, Duration: duration}, nil
}

// parseDuration accepts Go duration strings ("2s", "1m30s") or bare seconds ("2.5").
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(math.Round(seconds * float64(time.Second))), nil
}
