// Package progbuild builds the shader programs of a conformance test package
// ahead of time.
//
// # Overview
//
// A test package is a tree of groups and test cases. Every case can declare
// shader programs (GLSL, HLSL, WGSL or SPIR-V assembly) through its
// InitPrograms callback. progbuild walks the tree, turns every declared
// source into a build task, compiles the tasks on a fixed pool of workers,
// optionally validates the resulting SPIR-V, and writes every successful
// binary into an on-disk registry keyed by (case path, program name).
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/progbuild/build"
//		"github.com/gogpu/progbuild/registry"
//		"github.com/gogpu/progbuild/testpkg"
//		"github.com/gogpu/progbuild/toolchain"
//	)
//
//	root, err := testpkg.LoadManifests(ctx, "dEQP-VK", []string{"vk.yaml"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	tc, release, err := toolchain.Default(toolchain.Config{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer release()
//
//	b := build.New(tc,
//		build.WithValidation(true),
//		build.WithRegistry(registry.NewWriter("out")),
//	)
//	res, err := b.BuildPrograms(ctx, root)
//	if err != nil {
//		log.Fatal(err)
//	}
//	build.WriteReport(os.Stdout, res, build.PlainStyle())
//
// # Architecture
//
// The module is organized into:
//   - Pipeline: build (arena, tasks, driver, report)
//   - Scheduling: internal/parallel (bounded queue, worker pool, drain barrier)
//   - Collaborators: testpkg (hierarchy), toolchain (compilers, validators),
//     registry (binary storage)
//   - Support: spv (SPIR-V binaries), shader (source model), cache (compile memo)
//
// # Logging
//
// progbuild is silent by default. See [SetLogger].
package progbuild

// Version information
const (
	// Version is the current version of the module
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
