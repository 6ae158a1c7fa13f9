package vectorize

import (
	"strings"

	"github.com/poiesic/capsearch/core"
)

// Encodings holds the canonical text for each dimension.
type Encodings struct {
	Semantic   string
	Functional string
	Contextual string
}

// Get returns the encoding for dimension d.
func (e Encodings) Get(d core.Dimension) string {
	switch d {
	case core.DimensionSemantic:
		return e.Semantic
	case core.DimensionFunctional:
		return e.Functional
	case core.DimensionContextual:
		return e.Contextual
	}
	return ""
}

// Texts returns the encodings in canonical dimension order.
func (e Encodings) Texts() []string {
	return []string{e.Semantic, e.Functional, e.Contextual}
}

// Encode builds all three encodings for c.
func Encode(c *core.Capability) Encodings {
	p := EffectiveProfile(c)
	return Encodings{
		Semantic:   encodeSemantic(c, p),
		Functional: encodeFunctional(p),
		Contextual: encodeContextual(c, p),
	}
}

// EncodeDimension builds the encoding for a single dimension.
func EncodeDimension(c *core.Capability, d core.Dimension) string {
	return Encode(c).Get(d)
}

// EffectiveProfile returns c's profile with empty fields filled from the
// kind-specific payload and the capability's name and description.
func EffectiveProfile(c *core.Capability) core.Profile {
	p := c.Profile

	switch spec := c.Payload.(type) {
	case core.ToolSpec:
		if spec.RateLimit != "" {
			p.Constraints = appendMissing(p.Constraints, "rate limit "+spec.RateLimit)
		}
	case core.KnowledgeSourceSpec:
		p.Operation = orDefault(p.Operation, "retrieve")
		if len(p.Inputs) == 0 {
			p.Inputs = []core.Param{{Name: "query", Type: "text"}}
		}
		p.Output = orDefault(p.Output, "documents")
		p.Domain = orDefault(p.Domain, spec.SourceType)
	case core.TableSpec:
		p.Operation = orDefault(p.Operation, "query")
		if len(p.Inputs) == 0 {
			for _, col := range spec.Schema {
				p.Inputs = append(p.Inputs, core.Param{Name: col.Name, Type: col.Type})
			}
		}
		p.Output = orDefault(p.Output, "rows")
		p.Domain = orDefault(p.Domain, spec.Database)
	case core.FactSpec:
		p.Concept = orDefault(p.Concept, spec.Statement)
		p.Domain = orDefault(p.Domain, spec.Subject)
		p.Operation = orDefault(p.Operation, "recall")
		p.Output = orDefault(p.Output, "fact")
	}

	p.Concept = orDefault(p.Concept, c.Name)
	p.Type = orDefault(p.Type, c.Kind.String())
	p.Operation = orDefault(p.Operation, c.Name)
	p.Usage = orDefault(p.Usage, orDefault(c.Description, c.Name))
	return p
}

func encodeSemantic(c *core.Capability, p core.Profile) string {
	var b fragments
	b.add("concept", p.Concept)
	b.add("domain", p.Domain)
	b.add("type", p.Type)
	b.add("description", c.Description)
	for _, phrase := range c.ExamplePhrases {
		b.add("example", phrase)
	}
	return b.String()
}

func encodeFunctional(p core.Profile) string {
	var b fragments
	b.add("operation", p.Operation)
	for _, in := range p.Inputs {
		name := clean(in.Name)
		if name == "" {
			continue
		}
		b.add("input", name+":"+orDefault(clean(in.Type), "any"))
	}
	b.add("output", p.Output)
	return b.String()
}

func encodeContextual(c *core.Capability, p core.Profile) string {
	var b fragments
	b.add("usage", p.Usage)
	for _, pre := range p.Prerequisites {
		b.add("prereq", pre)
	}
	for _, con := range p.Constraints {
		b.add("constraint", con)
	}
	if spec, ok := c.Payload.(core.KnowledgeSourceSpec); ok {
		for _, topic := range spec.Topics {
			b.add("topic", topic)
		}
	}
	return b.String()
}

// fragments joins label:value pairs with single spaces, skipping empty values.
type fragments struct {
	parts []string
}

func (f *fragments) add(label, value string) {
	value = clean(value)
	if value == "" {
		return
	}
	f.parts = append(f.parts, label+":"+value)
}

func (f *fragments) String() string {
	return strings.Join(f.parts, " ")
}

// clean collapses runs of whitespace so formatting differences do not change encodings.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orDefault(v, def string) string {
	if clean(v) == "" {
		return def
	}
	return v
}

func appendMissing(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	out := make([]string, len(list), len(list)+1)
	copy(out, list)
	return append(out, v)
}
