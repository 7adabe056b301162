// Package roster resolves registration numbers to display names.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

// Directory looks up the display name of a registration number.
type Directory interface {
	Lookup(ctx context.Context, identity string) (name string, ok bool, err error)
}

// Student is one roster entry.
type Student struct {
	RegNo string `yaml:"regno"`
	Name  string `yaml:"name"`
}

type rosterFile struct {
	Students []Student `yaml:"students"`
}

// File is a Directory loaded from a YAML document.
type File struct {
	names map[string]string
}

// ParseFile decodes a roster document.
func ParseFile(data []byte) (*File, error) {
	var doc rosterFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	f := &File{names: make(map[string]string, len(doc.Students))}
	for _, s := range doc.Students {
		id := strings.ToUpper(strings.TrimSpace(s.RegNo))
		name := strings.TrimSpace(s.Name)
		if id == "" || name == "" {
			continue
		}
		f.names[id] = name
	}
	return f, nil
}

// LoadFile reads a roster document from disk.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}
	return ParseFile(data)
}

// Len returns the number of students.
func (f *File) Len() int {
	return len(f.names)
}

func (f *File) Lookup(ctx context.Context, identity string) (string, bool, error) {
	name, ok := f.names[strings.ToUpper(identity)]
	return name, ok, nil
}

// Chain queries directories in order and returns the first hit. A failing
// directory is logged and skipped.
type Chain []Directory

func (c Chain) Lookup(ctx context.Context, identity string) (string, bool, error) {
	for _, d := range c {
		name, ok, err := d.Lookup(ctx, identity)
		if err != nil {
			slog.Warn("roster lookup failed", "identity", identity, "error", err)
			continue
		}
		if ok {
			return name, true, nil
		}
	}
	return "", false, nil
}

// Placeholder is the display name used when nobody knows the student.
func Placeholder(identity string) string {
	return constants.PlaceholderNamePrefix + identity
}
