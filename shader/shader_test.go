package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/progbuild/spv"
)

func TestParseLanguage(t *testing.T) {
	for in, want := range map[string]Language{
		"glsl": GLSL, "HLSL": HLSL, " wgsl ": WGSL, "spvasm": SPIRVAsm, "asm": SPIRVAsm,
	} {
		got, err := ParseLanguage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLanguage("metal")
	assert.Error(t, err)
}

func TestLanguageHighLevel(t *testing.T) {
	assert.True(t, GLSL.HighLevel())
	assert.True(t, HLSL.HighLevel())
	assert.True(t, WGSL.HighLevel())
	assert.False(t, SPIRVAsm.HighLevel())
	assert.Equal(t, "Language(9)", Language(9).String())
}

func TestParseStage(t *testing.T) {
	for in, want := range map[string]Stage{
		"vert": StageVertex, "fragment": StageFragment, "comp": StageCompute, "rchit": StageClosestHit,
	} {
		got, err := ParseStage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStage("pixel")
	assert.Error(t, err)
}

func TestSourceKey(t *testing.T) {
	a := Source{Language: GLSL, Stage: StageFragment, Code: "void main() {}", Options: DefaultBuildOptions()}
	b := a
	assert.Equal(t, a.Key(), b.Key())

	b.Options.TargetVersion = spv.V1_3
	assert.NotEqual(t, a.Key(), b.Key(), "target version must change the key")

	c := a
	c.Stage = StageVertex
	assert.NotEqual(t, a.Key(), c.Key(), "stage must change the key")

	d := a
	d.Code += " "
	assert.NotEqual(t, a.Key(), d.Key(), "code must change the key")
}
