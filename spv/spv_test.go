package spv

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/naga/spirv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalModule hand-assembles a module with one capability and a memory model.
func minimalModule(v Version) []uint32 {
	return []uint32{
		Magic, v.Word(), 0, 8, 0,
		2<<16 | uint32(OpCapability), 1, // OpCapability Shader
		3<<16 | uint32(OpMemoryModel), 0, 1, // OpMemoryModel Logical GLSL450
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"1.0", V1_0, false},
		{"1.3", V1_3, false},
		{"1.6.0", V1_6, false},
		{"v1.4", V1_4, false},
		{"2.0", Version{}, true},
		{"banana", Version{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionWordRoundTrip(t *testing.T) {
	assert.Equal(t, uint32(0x00010300), V1_3.Word())
	for _, v := range []Version{V1_0, V1_1, V1_2, V1_3, V1_4, V1_5, V1_6} {
		assert.Equal(t, v, VersionFromWord(v.Word()))
	}
}

func TestVersionCompare(t *testing.T) {
	assert.Equal(t, -1, V1_0.Compare(V1_3))
	assert.Equal(t, 1, V1_4.Compare(V1_3))
	assert.Equal(t, 0, V1_3.Compare(V1_3))
	assert.True(t, V1_3.LessOrEqual(V1_3))
	assert.False(t, V1_4.LessOrEqual(V1_3))
	assert.True(t, Version{}.IsZero())
	assert.False(t, Version{1, 9}.Known())
}

func TestVersionText(t *testing.T) {
	var v Version
	require.NoError(t, v.UnmarshalText([]byte("1.5")))
	assert.Equal(t, V1_5, v)

	b, err := v.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5", string(b))
}

func TestParseHeader(t *testing.T) {
	b := Bytes(minimalModule(V1_2))

	h, err := ParseHeader(b)
	require.NoError(t, err)
	assert.Equal(t, V1_2, h.Version)
	assert.Equal(t, uint32(8), h.Bound)
}

func TestParseHeaderBigEndian(t *testing.T) {
	words := minimalModule(V1_1)
	b := make([]byte, len(words)*4)
	for i, w := range words {
		binary.BigEndian.PutUint32(b[i*4:], w)
	}

	v, err := ExtractVersion(b)
	require.NoError(t, err)
	assert.Equal(t, V1_1, v)

	got, err := Words(b)
	require.NoError(t, err)
	assert.Equal(t, words, got)
}

func TestParseHeaderErrors(t *testing.T) {
	_, err := ParseHeader([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrAlignment)

	_, err = ParseHeader(make([]byte, 8))
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = ParseHeader(make([]byte, 20))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestSetVersion(t *testing.T) {
	b := Bytes(minimalModule(V1_3))
	require.NoError(t, SetVersion(b, V1_0))

	v, err := ExtractVersion(b)
	require.NoError(t, err)
	assert.Equal(t, V1_0, v)
}

func TestValidate(t *testing.T) {
	st, err := Validate(Bytes(minimalModule(V1_3)), V1_3)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Instructions)
	assert.Equal(t, 1, st.Capabilities)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]uint32) []uint32
		max    Version
	}{
		{"version above max", func(w []uint32) []uint32 { return w }, V1_0},
		{"unknown version", func(w []uint32) []uint32 { w[1] = Version{1, 42}.Word(); return w }, Version{}},
		{"zero bound", func(w []uint32) []uint32 { w[3] = 0; return w }, Version{}},
		{"schema", func(w []uint32) []uint32 { w[4] = 7; return w }, Version{}},
		{"zero word count", func(w []uint32) []uint32 { w[5] = uint32(OpCapability); return w }, Version{}},
		{"overrun", func(w []uint32) []uint32 { return w[:len(w)-1] }, Version{}},
		{"no capability", func(w []uint32) []uint32 { return append(w[:5], w[7:]...) }, Version{}},
		{"two memory models", func(w []uint32) []uint32 { return append(w, 3<<16|uint32(OpMemoryModel), 0, 1) }, Version{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := tt.mutate(minimalModule(V1_3))
			_, err := Validate(Bytes(words), tt.max)
			var fe *FormatError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestValidateNagaModule(t *testing.T) {
	builder := spirv.NewModuleBuilder(spirv.Version1_3)
	builder.AddCapability(spirv.CapabilityShader)
	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	voidType := builder.AddTypeVoid()
	funcType := builder.AddTypeFunction(voidType)
	mainFunc := builder.AddFunction(funcType, voidType, spirv.FunctionControlNone)
	builder.AddName(mainFunc, "main")
	builder.AddLabel()
	builder.AddReturn()
	builder.AddFunctionEnd()
	builder.AddEntryPoint(spirv.ExecutionModelFragment, mainFunc, "main", nil)
	builder.AddExecutionMode(mainFunc, spirv.ExecutionModeOriginUpperLeft)

	b := builder.Build()

	v, err := ExtractVersion(b)
	require.NoError(t, err)
	assert.Equal(t, V1_3, v)

	st, err := Validate(b, V1_6)
	require.NoError(t, err)
	assert.Equal(t, 1, st.EntryPoints)
	assert.Contains(t, Describe(b), "SPIR-V 1.3")
}
