package spv

import (
	"fmt"
	"strings"
)

// FormatError describes a structural defect of a module.
type FormatError struct {
	// Word is the index of the offending word, or -1 for module-level defects.
	Word int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Word < 0 {
		return "spv: " + e.Msg
	}
	return fmt.Sprintf("spv: word %d: %s", e.Word, e.Msg)
}

// Stats summarizes the instruction stream of a module.
type Stats struct {
	Instructions int
	Capabilities int
	EntryPoints  int
}

// Validate performs structural checks on b:
//   - a well-formed header whose version is known and does not exceed max
//   - a zero schema and a non-zero id bound
//   - an instruction stream whose word counts exactly cover the binary
//   - at least one OpCapability and exactly one OpMemoryModel
//
// A zero max disables the version ceiling check.
func Validate(b []byte, max Version) (Stats, error) {
	words, err := Words(b)
	if err != nil {
		return Stats{}, err
	}

	v := VersionFromWord(words[1])
	if !v.Known() {
		return Stats{}, &FormatError{Word: 1, Msg: fmt.Sprintf("unknown version %s", v)}
	}
	if !max.IsZero() && !v.LessOrEqual(max) {
		return Stats{}, &FormatError{Word: 1, Msg: fmt.Sprintf("version %s exceeds environment maximum %s", v, max)}
	}
	if words[1]&0xff0000ff != 0 {
		return Stats{}, &FormatError{Word: 1, Msg: fmt.Sprintf("reserved version bits set: 0x%08x", words[1])}
	}
	if words[3] == 0 {
		return Stats{}, &FormatError{Word: 3, Msg: "id bound is zero"}
	}
	if words[4] != 0 {
		return Stats{}, &FormatError{Word: 4, Msg: fmt.Sprintf("schema must be zero, got %d", words[4])}
	}

	var st Stats
	memoryModels := 0
	for i := HeaderWords; i < len(words); {
		count := int(words[i] >> 16)
		op := uint16(words[i])
		if count == 0 {
			return st, &FormatError{Word: i, Msg: fmt.Sprintf("opcode %d has zero word count", op)}
		}
		if i+count > len(words) {
			return st, &FormatError{Word: i, Msg: fmt.Sprintf("opcode %d overruns the module (%d words, %d left)", op, count, len(words)-i)}
		}
		switch op {
		case OpCapability:
			st.Capabilities++
		case OpMemoryModel:
			memoryModels++
		case OpEntryPoint:
			st.EntryPoints++
		}
		st.Instructions++
		i += count
	}

	if st.Capabilities == 0 {
		return st, &FormatError{Word: -1, Msg: "module declares no OpCapability"}
	}
	if memoryModels != 1 {
		return st, &FormatError{Word: -1, Msg: fmt.Sprintf("module declares %d OpMemoryModel instructions, want 1", memoryModels)}
	}
	return st, nil
}

// Describe returns a one-line summary of b for logs.
func Describe(b []byte) string {
	h, err := ParseHeader(b)
	if err != nil {
		return err.Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SPIR-V %s, %d bytes, bound %d", h.Version, len(b), h.Bound)
	if h.Generator != 0 {
		fmt.Fprintf(&sb, ", generator 0x%08x", h.Generator)
	}
	return sb.String()
}
