package codec

import (
	"fmt"
	"unicode/utf8"

	"github.com/janus-lang/janus-sub015/id"
)

// Result is the closed variant set of query results. Exactly one of the
// payload fields is meaningful, selected by Kind. Kind reuses id.Kind's
// tag values (0..6) as its on-the-wire discriminant, so each result
// variant has a distinct, stable tag.
type Result struct {
	Kind id.Kind

	Symbol     SymbolInfo
	Type       TypeInfo
	Dispatch   DispatchInfo
	Effects    EffectsInfo
	Definition DefinitionInfo
	Hover      HoverInfo
	IR         IRInfo
}

// SymbolInfo is the payload of a KindSymbolInfo result.
type SymbolInfo struct {
	Name string
	Def  id.CID
}

// TypeInfo is the payload of a KindTypeInfo result.
type TypeInfo struct {
	TypeName string
	Type     id.CID
}

// DispatchInfo is the payload of a KindDispatchInfo result.
type DispatchInfo struct {
	Target     id.CID
	Candidates []id.CID
}

// EffectsInfo is the payload of a KindEffectsInfo result.
type EffectsInfo struct {
	Labels []string
}

// DefinitionInfo is the payload of a KindDefinitionInfo result.
type DefinitionInfo struct {
	Def id.CID
}

// HoverInfo is the payload of a KindHoverInfo result.
type HoverInfo struct {
	Text string
}

// IRInfo is the payload of a KindIRInfo result.
type IRInfo struct {
	IR []byte
}

// ResultSymbolInfo, ResultTypeInfo, ... construct a tagged Result of the
// matching variant; they exist so callers never have to remember to set
// Kind consistently with the populated field.
func ResultSymbolInfo(v SymbolInfo) Result         { return Result{Kind: id.KindSymbolInfo, Symbol: v} }
func ResultTypeInfo(v TypeInfo) Result             { return Result{Kind: id.KindTypeInfo, Type: v} }
func ResultDispatchInfo(v DispatchInfo) Result     { return Result{Kind: id.KindDispatchInfo, Dispatch: v} }
func ResultEffectsInfo(v EffectsInfo) Result       { return Result{Kind: id.KindEffectsInfo, Effects: v} }
func ResultDefinitionInfo(v DefinitionInfo) Result {
	return Result{Kind: id.KindDefinitionInfo, Definition: v}
}
func ResultHoverInfo(v HoverInfo) Result { return Result{Kind: id.KindHoverInfo, Hover: v} }
func ResultIRInfo(v IRInfo) Result       { return Result{Kind: id.KindIRInfo, IR: v} }

// EncodeResult writes the canonical encoding of a Result: an 8-bit variant
// tag followed by the variant's fields in declaration order.
func EncodeResult(r Result) ([]byte, error) {
	buf := []byte{byte(r.Kind)}
	var err error
	switch r.Kind {
	case id.KindSymbolInfo:
		if buf, err = appendCanonicalString(buf, r.Symbol.Name); err != nil {
			return nil, err
		}
		buf = append(buf, r.Symbol.Def[:]...)
	case id.KindTypeInfo:
		if buf, err = appendCanonicalString(buf, r.Type.TypeName); err != nil {
			return nil, err
		}
		buf = append(buf, r.Type.Type[:]...)
	case id.KindDispatchInfo:
		buf = append(buf, r.Dispatch.Target[:]...)
		buf = appendUint32(buf, uint32(len(r.Dispatch.Candidates)))
		for _, c := range r.Dispatch.Candidates {
			buf = append(buf, c[:]...)
		}
	case id.KindEffectsInfo:
		buf = appendUint32(buf, uint32(len(r.Effects.Labels)))
		for _, l := range r.Effects.Labels {
			if buf, err = appendCanonicalString(buf, l); err != nil {
				return nil, err
			}
		}
	case id.KindDefinitionInfo:
		buf = append(buf, r.Definition.Def[:]...)
	case id.KindHoverInfo:
		if buf, err = appendCanonicalString(buf, r.Hover.Text); err != nil {
			return nil, err
		}
	case id.KindIRInfo:
		buf = appendUint32(buf, uint32(len(r.IR.IR)))
		buf = append(buf, r.IR.IR...)
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrInvalidResultType, r.Kind)
	}
	return buf, nil
}

// DecodeResult parses the canonical encoding produced by EncodeResult.
func DecodeResult(data []byte) (Result, error) {
	r := &reader{buf: data}
	tagByte, err := r.uint8()
	if err != nil {
		return Result{}, err
	}
	kind := id.Kind(tagByte)
	switch kind {
	case id.KindSymbolInfo:
		name, err := r.lengthPrefixedString()
		if err != nil {
			return Result{}, err
		}
		defCID, err := readCID(r)
		if err != nil {
			return Result{}, err
		}
		return ResultSymbolInfo(SymbolInfo{Name: name, Def: defCID}), nil
	case id.KindTypeInfo:
		name, err := r.lengthPrefixedString()
		if err != nil {
			return Result{}, err
		}
		typeCID, err := readCID(r)
		if err != nil {
			return Result{}, err
		}
		return ResultTypeInfo(TypeInfo{TypeName: name, Type: typeCID}), nil
	case id.KindDispatchInfo:
		target, err := readCID(r)
		if err != nil {
			return Result{}, err
		}
		count, err := r.uint32()
		if err != nil {
			return Result{}, err
		}
		candidates := make([]id.CID, 0, count)
		for i := uint32(0); i < count; i++ {
			c, err := readCID(r)
			if err != nil {
				return Result{}, err
			}
			candidates = append(candidates, c)
		}
		return ResultDispatchInfo(DispatchInfo{Target: target, Candidates: candidates}), nil
	case id.KindEffectsInfo:
		count, err := r.uint32()
		if err != nil {
			return Result{}, err
		}
		labels := make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			s, err := r.lengthPrefixedString()
			if err != nil {
				return Result{}, err
			}
			labels = append(labels, s)
		}
		return ResultEffectsInfo(EffectsInfo{Labels: labels}), nil
	case id.KindDefinitionInfo:
		defCID, err := readCID(r)
		if err != nil {
			return Result{}, err
		}
		return ResultDefinitionInfo(DefinitionInfo{Def: defCID}), nil
	case id.KindHoverInfo:
		text, err := r.lengthPrefixedString()
		if err != nil {
			return Result{}, err
		}
		return ResultHoverInfo(HoverInfo{Text: text}), nil
	case id.KindIRInfo:
		count, err := r.uint32()
		if err != nil {
			return Result{}, err
		}
		ir, err := r.bytes(int(count))
		if err != nil {
			return Result{}, err
		}
		out := make([]byte, len(ir))
		copy(out, ir)
		return ResultIRInfo(IRInfo{IR: out}), nil
	default:
		return Result{}, fmt.Errorf("%w: tag %d", ErrInvalidResultType, tagByte)
	}
}

func appendCanonicalString(buf []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: result string is not valid UTF-8", ErrNonCanonicalArg)
	}
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...), nil
}

func readCID(r *reader) (id.CID, error) {
	var c id.CID
	b, err := r.bytes(id.Size)
	if err != nil {
		return c, err
	}
	copy(c[:], b)
	return c, nil
}
