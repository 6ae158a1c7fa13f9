package core

import (
	"errors"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// ErrNegativeLength is returned when a length prefix in an encoded record is negative.
var ErrNegativeLength = errors.New("negative length in encoded record")

type musSerializer[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
}

// sliceMUS encodes a length-prefixed slice of T.
type sliceMUS[T any] struct {
	elem musSerializer[T]
}

func (s sliceMUS[T]) Marshal(v []T, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, e := range v {
		n += s.elem.Marshal(e, bs[n:])
	}
	return
}

func (s sliceMUS[T]) Unmarshal(bs []byte) (v []T, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 {
		err = ErrNegativeLength
		return
	}
	if length == 0 {
		return
	}
	v = make([]T, length)
	var n1 int
	for i := range length {
		v[i], n1, err = s.elem.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (s sliceMUS[T]) Size(v []T) (size int) {
	size = varint.Int.Size(len(v))
	for _, e := range v {
		size += s.elem.Size(e)
	}
	return
}

var (
	stringsMUS  = sliceMUS[string]{elem: ord.String}
	float32sMUS = sliceMUS[float32]{elem: raw.Float32}
	paramsMUS   = sliceMUS[Param]{elem: paramMUS{}}
	columnsMUS  = sliceMUS[Column]{elem: columnMUS{}}
)

// timeMUS stores a time as a presence flag followed by Unix microseconds,
// so the zero time survives a round trip.
type timeMUS struct{}

func (timeMUS) Marshal(v time.Time, bs []byte) (n int) {
	if v.IsZero() {
		return ord.Bool.Marshal(false, bs)
	}
	n = ord.Bool.Marshal(true, bs)
	n += varint.Int64.Marshal(v.UnixMicro(), bs[n:])
	return
}

func (timeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return
	}
	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v = time.UnixMicro(micros).UTC()
	return
}

func (timeMUS) Size(v time.Time) (size int) {
	size = ord.Bool.Size(!v.IsZero())
	if !v.IsZero() {
		size += varint.Int64.Size(v.UnixMicro())
	}
	return
}

// paramMUS encodes a name/type pair. Column shares the layout.
type paramMUS struct{}

func (paramMUS) Marshal(v Param, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += ord.String.Marshal(v.Type, bs[n:])
	return
}

func (paramMUS) Unmarshal(bs []byte) (v Param, n int, err error) {
	v.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Type, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (paramMUS) Size(v Param) (size int) {
	return ord.String.Size(v.Name) + ord.String.Size(v.Type)
}

type columnMUS struct{}

func (columnMUS) Marshal(v Column, bs []byte) (n int) {
	return paramMUS{}.Marshal(Param(v), bs)
}

func (columnMUS) Unmarshal(bs []byte) (v Column, n int, err error) {
	p, n, err := paramMUS{}.Unmarshal(bs)
	return Column(p), n, err
}

func (columnMUS) Size(v Column) (size int) {
	return paramMUS{}.Size(Param(v))
}

// fieldWriter accumulates marshal offsets.
type fieldWriter struct {
	bs []byte
	n  int
}

func (w *fieldWriter) str(s string)       { w.n += ord.String.Marshal(s, w.bs[w.n:]) }
func (w *fieldWriter) strs(s []string)    { w.n += stringsMUS.Marshal(s, w.bs[w.n:]) }
func (w *fieldWriter) int(i int)          { w.n += varint.Int.Marshal(i, w.bs[w.n:]) }
func (w *fieldWriter) vec(v []float32)    { w.n += float32sMUS.Marshal(v, w.bs[w.n:]) }
func (w *fieldWriter) time(t time.Time)   { w.n += timeMUS{}.Marshal(t, w.bs[w.n:]) }
func (w *fieldWriter) params(p []Param)   { w.n += paramsMUS.Marshal(p, w.bs[w.n:]) }
func (w *fieldWriter) columns(c []Column) { w.n += columnsMUS.Marshal(c, w.bs[w.n:]) }

// fieldReader accumulates unmarshal offsets and keeps the first error.
type fieldReader struct {
	bs  []byte
	n   int
	err error
}

func readField[T any](r *fieldReader, s musSerializer[T]) (v T) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = s.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *fieldReader) str() string       { return readField[string](r, ord.String) }
func (r *fieldReader) strs() []string    { return readField[[]string](r, stringsMUS) }
func (r *fieldReader) int() int          { return readField[int](r, varint.Int) }
func (r *fieldReader) vec() []float32    { return readField[[]float32](r, float32sMUS) }
func (r *fieldReader) time() time.Time   { return readField[time.Time](r, timeMUS{}) }
func (r *fieldReader) params() []Param   { return readField[[]Param](r, paramsMUS) }
func (r *fieldReader) columns() []Column { return readField[[]Column](r, columnsMUS) }

// CapabilityMUS serializes Capability records for key-value storage.
var CapabilityMUS = capabilityMUS{}

type capabilityMUS struct{}

func (capabilityMUS) Marshal(v Capability, bs []byte) (n int) {
	w := &fieldWriter{bs: bs}
	w.str(v.ID)
	w.int(int(v.Kind))
	w.str(v.Name)
	w.str(v.Description)
	w.int(int(v.Status))
	w.strs(v.KeyElements)
	w.strs(v.ExamplePhrases)
	marshalProfile(w, v.Profile)
	marshalPayload(w, v.Payload)
	w.vec(v.Vectors.Semantic)
	w.vec(v.Vectors.Functional)
	w.vec(v.Vectors.Contextual)
	w.time(v.LastUpdated)
	return w.n
}

func (capabilityMUS) Unmarshal(bs []byte) (v Capability, n int, err error) {
	r := &fieldReader{bs: bs}
	v.ID = r.str()
	v.Kind = Kind(r.int())
	v.Name = r.str()
	v.Description = r.str()
	v.Status = Status(r.int())
	v.KeyElements = r.strs()
	v.ExamplePhrases = r.strs()
	v.Profile = unmarshalProfile(r)
	v.Payload = unmarshalPayload(r)
	v.Vectors.Semantic = r.vec()
	v.Vectors.Functional = r.vec()
	v.Vectors.Contextual = r.vec()
	v.LastUpdated = r.time()
	return v, r.n, r.err
}

func (capabilityMUS) Size(v Capability) (size int) {
	size = ord.String.Size(v.ID)
	size += varint.Int.Size(int(v.Kind))
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.Description)
	size += varint.Int.Size(int(v.Status))
	size += stringsMUS.Size(v.KeyElements)
	size += stringsMUS.Size(v.ExamplePhrases)
	size += sizeProfile(v.Profile)
	size += sizePayload(v.Payload)
	size += float32sMUS.Size(v.Vectors.Semantic)
	size += float32sMUS.Size(v.Vectors.Functional)
	size += float32sMUS.Size(v.Vectors.Contextual)
	size += timeMUS{}.Size(v.LastUpdated)
	return
}

func marshalProfile(w *fieldWriter, p Profile) {
	w.str(p.Concept)
	w.str(p.Domain)
	w.str(p.Type)
	w.str(p.Operation)
	w.params(p.Inputs)
	w.str(p.Output)
	w.str(p.Usage)
	w.strs(p.Prerequisites)
	w.strs(p.Constraints)
}

func unmarshalProfile(r *fieldReader) (p Profile) {
	p.Concept = r.str()
	p.Domain = r.str()
	p.Type = r.str()
	p.Operation = r.str()
	p.Inputs = r.params()
	p.Output = r.str()
	p.Usage = r.str()
	p.Prerequisites = r.strs()
	p.Constraints = r.strs()
	return
}

func sizeProfile(p Profile) int {
	return ord.String.Size(p.Concept) +
		ord.String.Size(p.Domain) +
		ord.String.Size(p.Type) +
		ord.String.Size(p.Operation) +
		paramsMUS.Size(p.Inputs) +
		ord.String.Size(p.Output) +
		ord.String.Size(p.Usage) +
		stringsMUS.Size(p.Prerequisites) +
		stringsMUS.Size(p.Constraints)
}

// Payloads are written as a kind tag (0 for none) followed by the variant's fields.
func marshalPayload(w *fieldWriter, p Payload) {
	switch v := p.(type) {
	case ToolSpec:
		w.int(int(KindTool))
		w.str(v.APIEndpoint)
		w.str(v.InputSchema)
		w.str(v.OutputSchema)
		w.str(v.RateLimit)
	case KnowledgeSourceSpec:
		w.int(int(KindKnowledgeSource))
		w.str(v.SourceType)
		w.str(v.Location)
		w.strs(v.Topics)
	case TableSpec:
		w.int(int(KindDatabaseTable))
		w.str(v.Database)
		w.str(v.Table)
		w.columns(v.Schema)
		w.strs(v.SampleQueries)
	case FactSpec:
		w.int(int(KindConversationFact))
		w.str(v.Subject)
		w.str(v.Statement)
		w.str(v.Source)
		w.time(v.ObservedAt)
	default:
		w.int(0)
	}
}

func unmarshalPayload(r *fieldReader) Payload {
	tag := Kind(r.int())
	if r.err != nil {
		return nil
	}
	switch tag {
	case 0:
		return nil
	case KindTool:
		return ToolSpec{
			APIEndpoint:  r.str(),
			InputSchema:  r.str(),
			OutputSchema: r.str(),
			RateLimit:    r.str(),
		}
	case KindKnowledgeSource:
		return KnowledgeSourceSpec{
			SourceType: r.str(),
			Location:   r.str(),
			Topics:     r.strs(),
		}
	case KindDatabaseTable:
		return TableSpec{
			Database:      r.str(),
			Table:         r.str(),
			Schema:        r.columns(),
			SampleQueries: r.strs(),
		}
	case KindConversationFact:
		return FactSpec{
			Subject:    r.str(),
			Statement:  r.str(),
			Source:     r.str(),
			ObservedAt: r.time(),
		}
	default:
		r.err = ErrUnknownKind
		return nil
	}
}

func sizePayload(p Payload) int {
	switch v := p.(type) {
	case ToolSpec:
		return varint.Int.Size(int(KindTool)) +
			ord.String.Size(v.APIEndpoint) +
			ord.String.Size(v.InputSchema) +
			ord.String.Size(v.OutputSchema) +
			ord.String.Size(v.RateLimit)
	case KnowledgeSourceSpec:
		return varint.Int.Size(int(KindKnowledgeSource)) +
			ord.String.Size(v.SourceType) +
			ord.String.Size(v.Location) +
			stringsMUS.Size(v.Topics)
	case TableSpec:
		return varint.Int.Size(int(KindDatabaseTable)) +
			ord.String.Size(v.Database) +
			ord.String.Size(v.Table) +
			columnsMUS.Size(v.Schema) +
			stringsMUS.Size(v.SampleQueries)
	case FactSpec:
		return varint.Int.Size(int(KindConversationFact)) +
			ord.String.Size(v.Subject) +
			ord.String.Size(v.Statement) +
			ord.String.Size(v.Source) +
			timeMUS{}.Size(v.ObservedAt)
	default:
		return varint.Int.Size(0)
	}
}
