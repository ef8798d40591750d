package build

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/gogpu/progbuild/shader"
	"github.com/gogpu/progbuild/spv"
)

// ErrUnknownVulkanVersion is returned for Vulkan versions without a known
// SPIR-V ceiling.
var ErrUnknownVulkanVersion = errors.New("build: unknown Vulkan version")

// DefaultVulkanVersion is the API version programs are built for when no
// other is requested.
const DefaultVulkanVersion = "1.1"

// Ceilings are the newest SPIR-V versions a Vulkan version accepts, for
// high-level sources and for assembly independently.
type Ceilings struct {
	HighLevel spv.Version
	Asm       spv.Version
}

var vulkanCeilings = map[uint64]Ceilings{
	0: {HighLevel: spv.V1_0, Asm: spv.V1_0},
	1: {HighLevel: spv.V1_3, Asm: spv.V1_4},
	2: {HighLevel: spv.V1_5, Asm: spv.V1_5},
	3: {HighLevel: spv.V1_6, Asm: spv.V1_6},
}

// ParseVulkanVersion parses a Vulkan version such as "1.2" and checks that
// it has ceilings.
func ParseVulkanVersion(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVulkanVersion, s)
	}
	if _, err := CeilingsForVulkan(v); err != nil {
		return nil, err
	}
	return v, nil
}

// CeilingsForVulkan returns the SPIR-V ceilings of Vulkan version v.
func CeilingsForVulkan(v *semver.Version) (Ceilings, error) {
	if v == nil || v.Major() != 1 {
		return Ceilings{}, fmt.Errorf("%w: %v", ErrUnknownVulkanVersion, v)
	}
	c, ok := vulkanCeilings[v.Minor()]
	if !ok {
		return Ceilings{}, fmt.Errorf("%w: %v", ErrUnknownVulkanVersion, v)
	}
	return c, nil
}

// Allows reports whether src targets a version within its ceiling.
func (c Ceilings) Allows(src shader.Source) bool {
	limit := c.Asm
	if src.Language.HighLevel() {
		limit = c.HighLevel
	}
	return src.Options.TargetVersion.LessOrEqual(limit)
}
