package plan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/future"
)

// Format identifies a plan file encoding.
type Format string

const (
	FormatYAML Format = "yaml" // also accepts JSON
	FormatCUE  Format = "cue"
)

// ErrUnknownFormat is returned for plan files with an unsupported extension.
var ErrUnknownFormat = errors.New("plan: unknown file format")

// Plan is an ordered list of commands to append to the queue.
type Plan struct {
	Name     string
	Commands []command.Descriptor
}

// document is the decoded shape shared by every format. Each entry in
// commands is either a command line string or a {name, args, priority} record.
type document struct {
	Name     string `yaml:"name"`
	Commands []any  `yaml:"commands"`
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads and parses the plan file at path.
func Load(path string) (*Plan, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Parse decodes plan data in the given format.
func Parse(data []byte, format Format) (*Plan, error) {
	var doc document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatCUE:
		if err := decodeCUE(data, &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return build(doc)
}

func decodeCUE(data []byte, doc *document) error {
	v := cuecontext.New().CompileBytes(data)
	if err := v.Err(); err != nil {
		return fmt.Errorf("compile cue: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate cue: %w", err)
	}

	if name := v.LookupPath(cue.ParsePath("name")); name.Exists() {
		s, err := name.String()
		if err != nil {
			return fmt.Errorf("name: %w", err)
		}
		doc.Name = s
	}

	cmds := v.LookupPath(cue.ParsePath("commands"))
	if !cmds.Exists() {
		return nil
	}
	if err := cmds.Decode(&doc.Commands); err != nil {
		return fmt.Errorf("decode commands: %w", err)
	}
	return nil
}

func build(doc document) (*Plan, error) {
	p := &Plan{
		Name:     strings.TrimSpace(doc.Name),
		Commands: make([]command.Descriptor, 0, len(doc.Commands)),
	}
	for i, entry := range doc.Commands {
		d, err := ParseEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("commands[%d]: %w", i, err)
		}
		p.Commands = append(p.Commands, d)
	}
	return p, nil
}

// ParseEntry converts one decoded list entry, a command line string or a
// {name, args, priority} record, into a descriptor.
func ParseEntry(entry any) (command.Descriptor, error) {
	switch v := entry.(type) {
	case string:
		return command.Parse(v)
	case map[string]any:
		return command.FromRecord(v)
	default:
		return command.Descriptor{}, command.NewMalformedError("", fmt.Sprintf("unsupported entry type %T", entry))
	}
}

// Appender accepts descriptors for the queue. Implemented by
// *scheduler.Scheduler.
type Appender interface {
	AppendDescriptor(d command.Descriptor) *future.Future[bool]
}

// Append queues every command in order and reports how many rows were
// inserted. Commands already pending are skipped and not counted.
func (p *Plan) Append(ctx context.Context, a Appender) (int, error) {
	inserted := 0
	for _, d := range p.Commands {
		ok, err := a.AppendDescriptor(d).Await(ctx)
		if err != nil {
			return inserted, fmt.Errorf("append %s: %w", d.Name, err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}
