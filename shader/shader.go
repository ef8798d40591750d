// Package shader describes the program sources that test cases hand to the
// build pipeline.
package shader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gogpu/progbuild/spv"
)

// Language identifies the source language of a program.
type Language uint8

const (
	// GLSL is Vulkan-flavored GLSL.
	GLSL Language = iota
	// HLSL is HLSL compiled for Vulkan.
	HLSL
	// WGSL is WebGPU Shading Language.
	WGSL
	// SPIRVAsm is SPIR-V assembly text.
	SPIRVAsm
)

var languageNames = [...]string{
	GLSL:     "glsl",
	HLSL:     "hlsl",
	WGSL:     "wgsl",
	SPIRVAsm: "spvasm",
}

func (l Language) String() string {
	if int(l) < len(languageNames) {
		return languageNames[l]
	}
	return fmt.Sprintf("Language(%d)", l)
}

// HighLevel reports whether l goes through a shader compiler (as opposed to
// the SPIR-V assembler).
func (l Language) HighLevel() bool {
	return l != SPIRVAsm
}

// ParseLanguage maps a name such as "glsl" or "spvasm" to a Language.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "glsl":
		return GLSL, nil
	case "hlsl":
		return HLSL, nil
	case "wgsl":
		return WGSL, nil
	case "spvasm", "spirv-asm", "asm":
		return SPIRVAsm, nil
	}
	return 0, fmt.Errorf("shader: unknown language %q", s)
}

// Stage is a pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StageTessControl
	StageTessEval
	StageGeometry
	StageFragment
	StageCompute
	StageTask
	StageMesh
	StageRayGen
	StageAnyHit
	StageClosestHit
	StageMiss
	StageIntersection
	StageCallable
)

var stageNames = [...]string{
	StageVertex:       "vert",
	StageTessControl:  "tesc",
	StageTessEval:     "tese",
	StageGeometry:     "geom",
	StageFragment:     "frag",
	StageCompute:      "comp",
	StageTask:         "task",
	StageMesh:         "mesh",
	StageRayGen:       "rgen",
	StageAnyHit:       "rahit",
	StageClosestHit:   "rchit",
	StageMiss:         "rmiss",
	StageIntersection: "rint",
	StageCallable:     "rcall",
}

// String returns the short stage name used by glslang (-S).
func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", s)
}

// ParseStage accepts short names ("frag") and long names ("fragment").
func ParseStage(s string) (Stage, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "vertex":
		return StageVertex, nil
	case "fragment":
		return StageFragment, nil
	case "compute":
		return StageCompute, nil
	case "geometry":
		return StageGeometry, nil
	}
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("shader: unknown stage %q", s)
}

// BuildOptions controls how a source is turned into SPIR-V.
type BuildOptions struct {
	// TargetVersion is the SPIR-V version the binary must target.
	TargetVersion spv.Version

	// Debug asks the compiler to keep debug names.
	Debug bool

	// EntryPoint overrides the entry point name (HLSL). Empty means "main".
	EntryPoint string
}

// DefaultBuildOptions targets SPIR-V 1.0, the version every Vulkan
// implementation accepts.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{TargetVersion: spv.V1_0}
}

// Source is one program source: a single shader stage in a high-level
// language, or a SPIR-V assembly module.
type Source struct {
	Language Language
	Stage    Stage
	Code     string
	Options  BuildOptions
}

// Key returns a digest identifying everything that influences the build
// output of s. Identical sources used by different test cases share a key.
func (s Source) Key() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%t\x00%s\x00", s.Language, s.Stage, s.Options.TargetVersion, s.Options.Debug, s.Options.EntryPoint)
	h.Write([]byte(s.Code))
	return hex.EncodeToString(h.Sum(nil))
}
