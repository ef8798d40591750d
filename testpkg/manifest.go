package testpkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/progbuild/shader"
	"github.com/gogpu/progbuild/spv"
)

// ErrUnknownFormat is returned for manifest files that are neither YAML
// nor TOML.
var ErrUnknownFormat = errors.New("testpkg: unknown manifest format")

// Manifest is the on-disk description of a group of test cases.
//
//	name: api
//	groups:
//	  - name: smoke
//	    cases:
//	      - name: triangle
//	        programs:
//	          - name: vert
//	            lang: glsl
//	            stage: vert
//	            file: shaders/triangle.vert
type Manifest struct {
	Name   string          `yaml:"name" toml:"name"`
	Groups []ManifestGroup `yaml:"groups" toml:"groups"`
	Cases  []ManifestCase  `yaml:"cases" toml:"cases"`
}

// ManifestGroup is a nested group.
type ManifestGroup struct {
	Name   string          `yaml:"name" toml:"name"`
	Groups []ManifestGroup `yaml:"groups" toml:"groups"`
	Cases  []ManifestCase  `yaml:"cases" toml:"cases"`
}

// ManifestCase is a test case.
type ManifestCase struct {
	Name string `yaml:"name" toml:"name"`

	// MinVulkan declines the case when building for an older API version.
	MinVulkan string `yaml:"min_vulkan" toml:"min_vulkan"`

	// Unsupported always declines the case with the given reason.
	Unsupported string `yaml:"unsupported" toml:"unsupported"`

	Programs []ManifestProgram `yaml:"programs" toml:"programs"`
}

// ManifestProgram is a program source, given inline or by file.
type ManifestProgram struct {
	Name   string `yaml:"name" toml:"name"`
	Lang   string `yaml:"lang" toml:"lang"`
	Stage  string `yaml:"stage" toml:"stage"`
	Target string `yaml:"target" toml:"target"`
	Debug  bool   `yaml:"debug" toml:"debug"`
	Entry  string `yaml:"entry" toml:"entry"`
	Source string `yaml:"source" toml:"source"`
	File   string `yaml:"file" toml:"file"`
}

// DecodeManifest parses data as YAML or TOML depending on the extension of
// name. Unknown fields are rejected.
func DecodeManifest(name string, data []byte) (*Manifest, error) {
	var m Manifest
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("testpkg: %s: %w", name, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("testpkg: %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	return &m, nil
}

// LoadManifests reads the manifest files concurrently and returns a root
// group named rootName holding one child group per manifest, in argument
// order. Program files are resolved relative to their manifest and read
// eagerly, so InitPrograms never touches the filesystem.
func LoadManifests(ctx context.Context, rootName string, paths []string) (*Group, error) {
	groups := make([]*Group, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("testpkg: reading manifest: %w", err)
			}
			m, err := DecodeManifest(path, data)
			if err != nil {
				return err
			}
			if m.Name == "" {
				m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			grp, err := m.build(filepath.Dir(path))
			if err != nil {
				return fmt.Errorf("testpkg: %s: %w", path, err)
			}
			groups[i] = grp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	root := NewGroup(rootName)
	for _, grp := range groups {
		root.Add(grp)
	}
	return root, nil
}

func (m *Manifest) build(baseDir string) (*Group, error) {
	return buildGroup(m.Name, m.Groups, m.Cases, baseDir)
}

func buildGroup(name string, groups []ManifestGroup, cases []ManifestCase, baseDir string) (*Group, error) {
	if name == "" {
		return nil, errors.New("group without a name")
	}
	grp := NewGroup(name)
	seen := make(map[string]struct{})
	claim := func(n string) error {
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%s: duplicate child %q", name, n)
		}
		seen[n] = struct{}{}
		return nil
	}

	for _, mg := range groups {
		if err := claim(mg.Name); err != nil {
			return nil, err
		}
		child, err := buildGroup(mg.Name, mg.Groups, mg.Cases, baseDir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		grp.Add(child)
	}
	for _, mc := range cases {
		if err := claim(mc.Name); err != nil {
			return nil, err
		}
		tc, err := buildCase(mc, baseDir)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, mc.Name, err)
		}
		grp.Add(tc)
	}
	return grp, nil
}

// manifestCase is a TestCase described by a manifest.
type manifestCase struct {
	name        string
	minVulkan   *semver.Constraints
	unsupported string
	programs    []ProgramSource
}

func buildCase(mc ManifestCase, baseDir string) (*manifestCase, error) {
	if mc.Name == "" {
		return nil, errors.New("case without a name")
	}
	tc := &manifestCase{name: mc.Name, unsupported: mc.Unsupported}
	if mc.MinVulkan != "" {
		c, err := semver.NewConstraint(">= " + mc.MinVulkan)
		if err != nil {
			return nil, fmt.Errorf("invalid min_vulkan %q: %w", mc.MinVulkan, err)
		}
		tc.minVulkan = c
	}

	for _, mp := range mc.Programs {
		src, err := buildSource(mp, baseDir)
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", mp.Name, err)
		}
		tc.programs = append(tc.programs, ProgramSource{Name: mp.Name, Source: src})
	}
	return tc, nil
}

func buildSource(mp ManifestProgram, baseDir string) (shader.Source, error) {
	var src shader.Source
	if mp.Name == "" {
		return src, errors.New("program without a name")
	}

	lang, err := shader.ParseLanguage(mp.Lang)
	if err != nil {
		return src, err
	}
	src.Language = lang

	switch {
	case mp.Stage != "":
		if src.Stage, err = shader.ParseStage(mp.Stage); err != nil {
			return src, err
		}
	case lang.HighLevel() && lang != shader.WGSL:
		return src, fmt.Errorf("%s program needs a stage", lang)
	}

	src.Options = shader.DefaultBuildOptions()
	if mp.Target != "" {
		if src.Options.TargetVersion, err = spv.ParseVersion(mp.Target); err != nil {
			return src, err
		}
	}
	src.Options.Debug = mp.Debug
	src.Options.EntryPoint = mp.Entry

	switch {
	case mp.Source != "" && mp.File != "":
		return src, errors.New("source and file are mutually exclusive")
	case mp.File != "":
		path := mp.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return src, err
		}
		src.Code = string(data)
	case mp.Source != "":
		src.Code = mp.Source
	default:
		return src, errors.New("program has neither source nor file")
	}
	return src, nil
}

func (c *manifestCase) Name() string { return c.name }

func (c *manifestCase) InitPrograms(ctx *Context, programs *SourceCollections) error {
	if c.unsupported != "" {
		return NotSupported("%s", c.unsupported)
	}
	if c.minVulkan != nil && ctx != nil && ctx.VulkanVersion != nil && !c.minVulkan.Check(ctx.VulkanVersion) {
		return NotSupported("requires Vulkan %s", c.minVulkan)
	}
	for _, p := range c.programs {
		if err := programs.Add(p.Name, p.Source); err != nil {
			return err
		}
	}
	return nil
}
