package registrar

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/capsearch/core"
)

// Descriptor is the decoded, kind-specific form of a source record.
type Descriptor interface {
	// Kind returns the capability kind the descriptor produces.
	Kind() core.Kind

	// Normalize trims whitespace and fills fields derived from other fields.
	Normalize()

	// CapabilityID returns the caller-supplied id or the one derived from the
	// kind's natural key.
	CapabilityID() (string, error)

	// Capability builds the canonical capability. Vectors are left empty.
	Capability() (*core.Capability, error)
}

// ParamDescriptor is one named operation input.
type ParamDescriptor struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// ColumnDescriptor is one table column.
type ColumnDescriptor struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// Common holds the fields every kind accepts.
type Common struct {
	ID             string   `yaml:"id,omitempty" json:"id,omitempty"`
	Name           string   `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string   `yaml:"description,omitempty" json:"description,omitempty"`
	Status         string   `yaml:"status,omitempty" json:"status,omitempty"`
	KeyElements    []string `yaml:"key_elements,omitempty" json:"key_elements,omitempty"`
	ExamplePhrases []string `yaml:"example_phrases,omitempty" json:"example_phrases,omitempty"`

	Concept string `yaml:"concept,omitempty" json:"concept,omitempty"`
	Domain  string `yaml:"domain,omitempty" json:"domain,omitempty"`
	Type    string `yaml:"type,omitempty" json:"type,omitempty"`

	Operation string            `yaml:"operation,omitempty" json:"operation,omitempty"`
	Inputs    []ParamDescriptor `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Output    string            `yaml:"output,omitempty" json:"output,omitempty"`

	Usage         string   `yaml:"usage,omitempty" json:"usage,omitempty"`
	Prerequisites []string `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
	Constraints   []string `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

func (c *Common) normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	c.Status = strings.ToLower(strings.TrimSpace(c.Status))
	c.KeyElements = core.NormalizeKeyElements(c.KeyElements)
	c.ExamplePhrases = trimAll(c.ExamplePhrases)
	c.Concept = strings.TrimSpace(c.Concept)
	c.Domain = strings.TrimSpace(c.Domain)
	c.Type = strings.TrimSpace(c.Type)
	c.Operation = strings.TrimSpace(c.Operation)
	c.Output = strings.TrimSpace(c.Output)
	c.Usage = strings.TrimSpace(c.Usage)
	c.Prerequisites = trimAll(c.Prerequisites)
	c.Constraints = trimAll(c.Constraints)
	inputs := c.Inputs[:0]
	for _, in := range c.Inputs {
		in.Name = strings.TrimSpace(in.Name)
		in.Type = strings.TrimSpace(in.Type)
		if in.Name != "" {
			inputs = append(inputs, in)
		}
	}
	c.Inputs = inputs
}

// id returns the supplied id, or prefix plus the slug of key.
func (c *Common) id(prefix, key string) (string, error) {
	if c.ID != "" {
		return c.ID, nil
	}
	s := slug(key)
	if s == "" {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidCapability, ErrMissingNaturalKey)
	}
	return prefix + s, nil
}

func (c *Common) capability(kind core.Kind, id string) (*core.Capability, error) {
	status, err := parseStatus(c.Status)
	if err != nil {
		return nil, err
	}
	out := &core.Capability{
		ID:             id,
		Kind:           kind,
		Name:           c.Name,
		Description:    c.Description,
		Status:         status,
		KeyElements:    c.KeyElements,
		ExamplePhrases: c.ExamplePhrases,
		Profile: core.Profile{
			Concept:       c.Concept,
			Domain:        c.Domain,
			Type:          c.Type,
			Operation:     c.Operation,
			Output:        c.Output,
			Usage:         c.Usage,
			Prerequisites: c.Prerequisites,
			Constraints:   c.Constraints,
		},
	}
	for _, in := range c.Inputs {
		out.Profile.Inputs = append(out.Profile.Inputs, core.Param{Name: in.Name, Type: in.Type})
	}
	return out, nil
}

// ToolDescriptor describes a callable tool or API.
type ToolDescriptor struct {
	Common `yaml:",inline"`

	APIEndpoint string `yaml:"api_endpoint,omitempty" json:"api_endpoint,omitempty"`
	// InputSchema and OutputSchema accept a JSON schema as a string or as a
	// nested mapping.
	InputSchema  any    `yaml:"input_schema,omitempty" json:"input_schema,omitempty"`
	OutputSchema any    `yaml:"output_schema,omitempty" json:"output_schema,omitempty"`
	RateLimit    string `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

var _ Descriptor = (*ToolDescriptor)(nil)

func (*ToolDescriptor) Kind() core.Kind { return core.KindTool }

// Normalize trims fields. Inputs default to the properties of the input schema.
func (d *ToolDescriptor) Normalize() {
	d.Common.normalize()
	d.APIEndpoint = strings.TrimSpace(d.APIEndpoint)
	d.RateLimit = strings.TrimSpace(d.RateLimit)
	if len(d.Inputs) == 0 {
		if schema, err := schemaString(d.InputSchema); err == nil {
			d.Inputs = schemaInputs(schema)
		}
	}
}

func (d *ToolDescriptor) CapabilityID() (string, error) {
	return d.id("tool_", d.Name)
}

func (d *ToolDescriptor) Capability() (*core.Capability, error) {
	d.Normalize()
	id, err := d.CapabilityID()
	if err != nil {
		return nil, err
	}
	in, err := schemaString(d.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: input_schema: %w", core.ErrInvalidCapability, ErrMalformedRecord, err)
	}
	out, err := schemaString(d.OutputSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: output_schema: %w", core.ErrInvalidCapability, ErrMalformedRecord, err)
	}
	c, err := d.capability(core.KindTool, id)
	if err != nil {
		return nil, err
	}
	c.Payload = core.ToolSpec{
		APIEndpoint:  d.APIEndpoint,
		InputSchema:  in,
		OutputSchema: out,
		RateLimit:    d.RateLimit,
	}
	return c, nil
}

// KnowledgeSourceDescriptor describes a searchable body of documents.
type KnowledgeSourceDescriptor struct {
	Common `yaml:",inline"`

	SourceType string   `yaml:"source_type,omitempty" json:"source_type,omitempty"`
	Location   string   `yaml:"location,omitempty" json:"location,omitempty"`
	Topics     []string `yaml:"topics,omitempty" json:"topics,omitempty"`
}

var _ Descriptor = (*KnowledgeSourceDescriptor)(nil)

func (*KnowledgeSourceDescriptor) Kind() core.Kind { return core.KindKnowledgeSource }

// Normalize trims fields.
func (d *KnowledgeSourceDescriptor) Normalize() {
	d.Common.normalize()
	d.SourceType = strings.ToLower(strings.TrimSpace(d.SourceType))
	d.Location = strings.TrimSpace(d.Location)
	d.Topics = trimAll(d.Topics)
}

func (d *KnowledgeSourceDescriptor) CapabilityID() (string, error) {
	return d.id("kb_", d.Name)
}

func (d *KnowledgeSourceDescriptor) Capability() (*core.Capability, error) {
	d.Normalize()
	id, err := d.CapabilityID()
	if err != nil {
		return nil, err
	}
	c, err := d.capability(core.KindKnowledgeSource, id)
	if err != nil {
		return nil, err
	}
	c.Payload = core.KnowledgeSourceSpec{
		SourceType: d.SourceType,
		Location:   d.Location,
		Topics:     d.Topics,
	}
	return c, nil
}

// TableDescriptor describes a queryable database table.
type TableDescriptor struct {
	Common `yaml:",inline"`

	Database      string             `yaml:"database,omitempty" json:"database,omitempty"`
	Table         string             `yaml:"table,omitempty" json:"table,omitempty"`
	Columns       []ColumnDescriptor `yaml:"schema,omitempty" json:"schema,omitempty"`
	SampleQueries []string           `yaml:"sample_queries,omitempty" json:"sample_queries,omitempty"`
}

var _ Descriptor = (*TableDescriptor)(nil)

func (*TableDescriptor) Kind() core.Kind { return core.KindDatabaseTable }

// Normalize trims fields. Name defaults to database.table.
func (d *TableDescriptor) Normalize() {
	d.Common.normalize()
	d.Database = strings.TrimSpace(d.Database)
	d.Table = strings.TrimSpace(d.Table)
	d.SampleQueries = trimAll(d.SampleQueries)
	cols := d.Columns[:0]
	for _, col := range d.Columns {
		col.Name = strings.TrimSpace(col.Name)
		col.Type = strings.TrimSpace(col.Type)
		if col.Name != "" {
			cols = append(cols, col)
		}
	}
	d.Columns = cols
	if d.Name == "" {
		d.Name = d.qualifiedName()
	}
}

func (d *TableDescriptor) qualifiedName() string {
	if d.Database == "" {
		return d.Table
	}
	if d.Table == "" {
		return ""
	}
	return d.Database + "." + d.Table
}

func (d *TableDescriptor) CapabilityID() (string, error) {
	key := d.qualifiedName()
	if key == "" {
		key = d.Name
	}
	return d.id("table_", key)
}

func (d *TableDescriptor) Capability() (*core.Capability, error) {
	d.Normalize()
	id, err := d.CapabilityID()
	if err != nil {
		return nil, err
	}
	c, err := d.capability(core.KindDatabaseTable, id)
	if err != nil {
		return nil, err
	}
	spec := core.TableSpec{
		Database:      d.Database,
		Table:         d.Table,
		SampleQueries: d.SampleQueries,
	}
	for _, col := range d.Columns {
		spec.Schema = append(spec.Schema, core.Column{Name: col.Name, Type: col.Type})
	}
	c.Payload = spec
	return c, nil
}

// FactDescriptor describes a fact learned in conversation.
type FactDescriptor struct {
	Common `yaml:",inline"`

	Subject   string `yaml:"subject,omitempty" json:"subject,omitempty"`
	Statement string `yaml:"statement,omitempty" json:"statement,omitempty"`
	Source    string `yaml:"source,omitempty" json:"source,omitempty"`
	// ObservedAt is an RFC 3339 timestamp or a plain date.
	ObservedAt string `yaml:"observed_at,omitempty" json:"observed_at,omitempty"`
}

var _ Descriptor = (*FactDescriptor)(nil)

func (*FactDescriptor) Kind() core.Kind { return core.KindConversationFact }

// Normalize trims fields. Name defaults to the subject and Description to the statement.
func (d *FactDescriptor) Normalize() {
	d.Common.normalize()
	d.Subject = strings.TrimSpace(d.Subject)
	d.Statement = strings.TrimSpace(d.Statement)
	d.Source = strings.TrimSpace(d.Source)
	d.ObservedAt = strings.TrimSpace(d.ObservedAt)
	if d.Name == "" {
		d.Name = d.Subject
	}
	if d.Description == "" {
		d.Description = d.Statement
	}
}

// CapabilityID derives fact ids from subject and statement, so restating the
// same fact updates it in place.
func (d *FactDescriptor) CapabilityID() (string, error) {
	if d.ID != "" {
		return d.ID, nil
	}
	if d.Statement == "" {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidCapability, ErrMissingNaturalKey)
	}
	return factID(d.Subject, d.Statement), nil
}

func (d *FactDescriptor) Capability() (*core.Capability, error) {
	d.Normalize()
	id, err := d.CapabilityID()
	if err != nil {
		return nil, err
	}
	observed, err := parseObservedAt(d.ObservedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: observed_at: %w", core.ErrInvalidCapability, ErrMalformedRecord, err)
	}
	c, err := d.capability(core.KindConversationFact, id)
	if err != nil {
		return nil, err
	}
	c.Payload = core.FactSpec{
		Subject:    d.Subject,
		Statement:  d.Statement,
		Source:     d.Source,
		ObservedAt: observed,
	}
	return c, nil
}

// NewDescriptor returns an empty descriptor for kind.
func NewDescriptor(kind core.Kind) (Descriptor, error) {
	switch kind {
	case core.KindTool:
		return &ToolDescriptor{}, nil
	case core.KindKnowledgeSource:
		return &KnowledgeSourceDescriptor{}, nil
	case core.KindDatabaseTable:
		return &TableDescriptor{}, nil
	case core.KindConversationFact:
		return &FactDescriptor{}, nil
	}
	return nil, fmt.Errorf("%w: %w: value %d", core.ErrInvalidCapability, core.ErrUnknownKind, kind)
}

func parseObservedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func parseStatus(s string) (core.Status, error) {
	switch s {
	case "", "active":
		return core.StatusActive, nil
	case "disabled":
		return core.StatusDisabled, nil
	}
	return 0, fmt.Errorf("%w: %w: %q", core.ErrInvalidCapability, core.ErrInvalidStatus, s)
}

// schemaString renders a schema given as a string or a decoded mapping as JSON text.
func schemaString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(s), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// schemaInputs lists the top-level properties of a JSON object schema, by name.
func schemaInputs(schema string) []ParamDescriptor {
	if schema == "" {
		return nil
	}
	var parsed struct {
		Properties map[string]struct {
			Type any `json:"type"`
		} `json:"properties"`
	}
	if err := json.Unmarshal([]byte(schema), &parsed); err != nil {
		return nil
	}
	names := make([]string, 0, len(parsed.Properties))
	for name := range parsed.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	inputs := make([]ParamDescriptor, 0, len(names))
	for _, name := range names {
		p := ParamDescriptor{Name: name}
		switch t := parsed.Properties[name].Type.(type) {
		case string:
			p.Type = t
		case []any:
			parts := make([]string, 0, len(t))
			for _, v := range t {
				parts = append(parts, fmt.Sprint(v))
			}
			p.Type = strings.Join(parts, "|")
		}
		inputs = append(inputs, p)
	}
	return inputs
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
