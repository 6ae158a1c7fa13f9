package registrar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/capsearch/core"
	"gopkg.in/yaml.v3"
)

// Record is one raw source record: a kind name plus the kind's fields.
type Record struct {
	Kind   string         `yaml:"kind" json:"kind"`
	Fields map[string]any `yaml:"fields" json:"fields"`

	// err is set when the record could not be read from its source document.
	err error
}

// NewRecord builds a Record for kind from raw fields.
func NewRecord(kind core.Kind, fields map[string]any) Record {
	return Record{Kind: kind.String(), Fields: fields}
}

// Descriptor decodes the record into its kind's descriptor.
func (r Record) Descriptor() (Descriptor, error) {
	if r.err != nil {
		return nil, r.err
	}
	kind, err := core.ParseKind(strings.ToLower(strings.TrimSpace(r.Kind)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %q", core.ErrInvalidCapability, err, r.Kind)
	}
	return DecodeDescriptor(kind, r.Fields)
}

// DecodeDescriptor decodes raw fields into the descriptor for kind.
// Unknown fields are rejected.
func DecodeDescriptor(kind core.Kind, raw map[string]any) (Descriptor, error) {
	d, err := NewDescriptor(kind)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return d, nil
	}
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrInvalidCapability, ErrMalformedRecord, err)
	}
	if err := decodeStrict(buf, d); err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %w", core.ErrInvalidCapability, ErrMalformedRecord, kind, err)
	}
	return d, nil
}

func decodeStrict(buf []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// DecodeRecords reads YAML record documents from r.
//
// Each document is either a single mapping or a sequence of mappings. Every
// mapping carries a "kind" key; its remaining keys are the record's fields.
// Structural problems in one item are attached to that item's Record, so a
// batch keeps its other records. Only unreadable YAML fails the whole call.
func DecodeRecords(r io.Reader) ([]Record, error) {
	dec := yaml.NewDecoder(r)
	var records []Record
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		switch root.Kind {
		case yaml.SequenceNode:
			for _, item := range root.Content {
				records = append(records, decodeRecordNode(item))
			}
		case yaml.MappingNode:
			records = append(records, decodeRecordNode(root))
		default:
			return nil, fmt.Errorf("%w: line %d: expected a record or a list of records", ErrMalformedRecord, root.Line)
		}
	}
	return records, nil
}

func decodeRecordNode(node *yaml.Node) Record {
	if node.Kind != yaml.MappingNode {
		return Record{err: fmt.Errorf("%w: %w: line %d: record is not a mapping", core.ErrInvalidCapability, ErrMalformedRecord, node.Line)}
	}
	var fields map[string]any
	if err := node.Decode(&fields); err != nil {
		return Record{err: fmt.Errorf("%w: %w: line %d: %w", core.ErrInvalidCapability, ErrMalformedRecord, node.Line, err)}
	}
	kind, _ := fields["kind"].(string)
	delete(fields, "kind")
	if kind == "" {
		return Record{Fields: fields, err: fmt.Errorf("%w: %w: line %d: missing kind", core.ErrInvalidCapability, ErrMalformedRecord, node.Line)}
	}
	return Record{Kind: kind, Fields: fields}
}
