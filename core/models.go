package core

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for internal graph entities such as
// key element nodes. Capabilities themselves are keyed by string IDs.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Kind identifies the variant of a capability.
type Kind int

const (
	// KindTool is a callable tool or API.
	KindTool Kind = iota + 1
	// KindKnowledgeSource is a searchable body of documents.
	KindKnowledgeSource
	// KindDatabaseTable is a queryable database table.
	KindDatabaseTable
	// KindConversationFact is a fact learned from a conversation.
	KindConversationFact
)

var kindNames = map[Kind]string{
	KindTool:             "tool",
	KindKnowledgeSource:  "knowledge_source",
	KindDatabaseTable:    "database_table",
	KindConversationFact: "conversation_fact",
}

// Kinds lists every valid Kind in declaration order.
var Kinds = []Kind{KindTool, KindKnowledgeSource, KindDatabaseTable, KindConversationFact}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, ErrUnknownKind
}

// Status controls whether a capability participates in search.
type Status int

const (
	// StatusActive capabilities are eligible for search.
	StatusActive Status = iota + 1
	// StatusDisabled capabilities are logically deleted.
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Param describes a single named input of an operation.
type Param struct {
	Name string
	Type string
}

// Column describes a database table column.
type Column struct {
	Name string
	Type string
}

// Profile holds the structured metadata each embedding dimension is built from.
type Profile struct {
	// Semantic: what the capability conceptually is.
	Concept string
	Domain  string
	Type    string

	// Functional: how it is invoked.
	Operation string
	Inputs    []Param
	Output    string

	// Contextual: when and why to use it.
	Usage         string
	Prerequisites []string
	Constraints   []string
}

// Payload is the kind-specific part of a capability.
// The set of implementations is closed; see ToolSpec, KnowledgeSourceSpec,
// TableSpec and FactSpec.
type Payload interface {
	Kind() Kind
	sealed()
}

// ToolSpec carries tool-specific fields.
type ToolSpec struct {
	APIEndpoint  string
	InputSchema  string // raw JSON schema
	OutputSchema string // raw JSON schema
	RateLimit    string
}

// KnowledgeSourceSpec carries knowledge-source-specific fields.
type KnowledgeSourceSpec struct {
	SourceType string // e.g. "notion", "mongodb", "files"
	Location   string
	Topics     []string
}

// TableSpec carries database-table-specific fields.
type TableSpec struct {
	Database      string
	Table         string
	Schema        []Column
	SampleQueries []string
}

// FactSpec carries conversation-fact-specific fields.
type FactSpec struct {
	Subject    string
	Statement  string
	Source     string
	ObservedAt time.Time
}

func (ToolSpec) Kind() Kind            { return KindTool }
func (KnowledgeSourceSpec) Kind() Kind { return KindKnowledgeSource }
func (TableSpec) Kind() Kind           { return KindDatabaseTable }
func (FactSpec) Kind() Kind            { return KindConversationFact }

func (ToolSpec) sealed()            {}
func (KnowledgeSourceSpec) sealed() {}
func (TableSpec) sealed()           {}
func (FactSpec) sealed()            {}

// Dimension names one of the three embedding spaces.
type Dimension int

const (
	DimensionSemantic Dimension = iota
	DimensionFunctional
	DimensionContextual
)

// Dimensions lists the embedding spaces in canonical order.
var Dimensions = [3]Dimension{DimensionSemantic, DimensionFunctional, DimensionContextual}

func (d Dimension) String() string {
	switch d {
	case DimensionSemantic:
		return "semantic"
	case DimensionFunctional:
		return "functional"
	case DimensionContextual:
		return "contextual"
	default:
		return "unknown"
	}
}

// VectorTriple holds one embedding per dimension. Any of them may be empty.
type VectorTriple struct {
	Semantic   []float32
	Functional []float32
	Contextual []float32
}

// Get returns the vector stored for dimension d.
func (v VectorTriple) Get(d Dimension) []float32 {
	switch d {
	case DimensionSemantic:
		return v.Semantic
	case DimensionFunctional:
		return v.Functional
	case DimensionContextual:
		return v.Contextual
	}
	return nil
}

// Set replaces the vector for dimension d.
func (v *VectorTriple) Set(d Dimension, vec []float32) {
	switch d {
	case DimensionSemantic:
		v.Semantic = vec
	case DimensionFunctional:
		v.Functional = vec
	case DimensionContextual:
		v.Contextual = vec
	}
}

// Populated reports how many of the three vectors are non-empty.
func (v VectorTriple) Populated() int {
	n := 0
	for _, d := range Dimensions {
		if len(v.Get(d)) > 0 {
			n++
		}
	}
	return n
}

// Capability is the unit of search: a tool, knowledge source, table or fact.
type Capability struct {
	ID             string
	Kind           Kind
	Name           string
	Description    string
	Status         Status
	KeyElements    []string // normalized, see NormalizeKeyElements
	ExamplePhrases []string // only used when generating embeddings
	Profile        Profile
	Payload        Payload
	Vectors        VectorTriple
	LastUpdated    time.Time // advisory only
}

// IsActive reports whether the capability participates in search.
func (c *Capability) IsActive() bool {
	return c.Status == StatusActive
}

// SearchWeights are the per-dimension weights of a hybrid search.
// They are used as given (weighted sum); only the all-zero case is rewritten.
type SearchWeights struct {
	Semantic   float64
	Functional float64
	Contextual float64
}

// EqualWeights gives each dimension a third of the total.
var EqualWeights = SearchWeights{Semantic: 1.0 / 3, Functional: 1.0 / 3, Contextual: 1.0 / 3}

// Get returns the weight for dimension d.
func (w SearchWeights) Get(d Dimension) float64 {
	switch d {
	case DimensionSemantic:
		return w.Semantic
	case DimensionFunctional:
		return w.Functional
	case DimensionContextual:
		return w.Contextual
	}
	return 0
}

// Sum returns the total of the three weights.
func (w SearchWeights) Sum() float64 {
	return w.Semantic + w.Functional + w.Contextual
}

// Normalized returns EqualWeights when every weight is zero and w unchanged otherwise.
func (w SearchWeights) Normalized() SearchWeights {
	if w.Sum() == 0 {
		return EqualWeights
	}
	return w
}

// Validate rejects negative, NaN and infinite weights.
func (w SearchWeights) Validate() error {
	for _, d := range Dimensions {
		v := w.Get(d)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidWeights
		}
	}
	return nil
}

// DimensionScores are the per-dimension similarity components of a result,
// before weighting.
type DimensionScores struct {
	Semantic   float64
	Functional float64
	Contextual float64
}

// Get returns the score for dimension d.
func (s DimensionScores) Get(d Dimension) float64 {
	switch d {
	case DimensionSemantic:
		return s.Semantic
	case DimensionFunctional:
		return s.Functional
	case DimensionContextual:
		return s.Contextual
	}
	return 0
}

// Set records the score for dimension d.
func (s *DimensionScores) Set(d Dimension, score float64) {
	switch d {
	case DimensionSemantic:
		s.Semantic = score
	case DimensionFunctional:
		s.Functional = score
	case DimensionContextual:
		s.Contextual = score
	}
}

// SearchResult is one ranked hit of a hybrid search.
type SearchResult struct {
	CapabilityID    string
	Score           float64
	VectorScore     float64 // weighted sum before the tag boost
	TagScore        float64 // tag boost contribution
	MatchedElements []string
	DimensionScores DimensionScores
	Capability      *Capability
}

// TagMatch is a capability whose key elements intersect a tag query.
type TagMatch struct {
	CapabilityID string
	MatchedTags  []string
	MatchCount   int
}
