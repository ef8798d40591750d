// Command progbuild builds the shader programs of a test package ahead of
// time and stores the binaries in a registry directory.
//
//	progbuild -d out -t 1.2 -v suites/api.yaml suites/compute.toml
//
// The exit status is 0 when every program built (and validated, with -v),
// and -1 otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/gogpu/progbuild"
	"github.com/gogpu/progbuild/build"
	"github.com/gogpu/progbuild/cache"
	"github.com/gogpu/progbuild/registry"
	"github.com/gogpu/progbuild/testpkg"
	"github.com/gogpu/progbuild/toolchain"
)

const exitFailure = -1

// rootName is the name of the group holding every loaded manifest.
const rootName = "dEQP-VK"

// errFailures reports that some programs failed; the report already says
// which.
var errFailures = errors.New("some programs failed")

type options struct {
	dstPath     string
	caseFilter  string
	validate    bool
	vulkan      string
	jobs        int
	configPath  string
	deviceCheck bool
	logLevel    string
	noColor     bool
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.dstPath, "dst-path", "d", "out", "registry directory for built binaries")
	fs.StringVarP(&o.caseFilter, "deqp-case", "n", "", "case path, subtree or glob to build")
	fs.BoolVarP(&o.validate, "validate-spv", "v", false, "validate built SPIR-V")
	fs.StringVarP(&o.vulkan, "target-vulkan-version", "t", build.DefaultVulkanVersion, "Vulkan version to build for (1.0-1.3)")
	fs.IntVarP(&o.jobs, "jobs", "j", 0, "worker count (default: logical CPUs)")
	fs.StringVar(&o.configPath, "config", "", "YAML or TOML config file")
	fs.BoolVar(&o.deviceCheck, "device-check", false, "also create every binary as a shader module on a HAL device")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	fs.BoolVar(&o.noColor, "no-color", false, "disable colored output")
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "progbuild [flags] <manifest>...",
		Short:         "Build the shader programs of a test package",
		Version:       progbuild.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.Flags(), o, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	bindFlags(cmd.Flags(), o)
	return cmd
}

// applyConfig fills every option the command line left unset from cfg.
func applyConfig(fs *pflag.FlagSet, o *options, cfg *fileConfig) {
	set := func(name string, apply func()) {
		if !fs.Changed(name) {
			apply()
		}
	}
	set("dst-path", func() {
		if cfg.DstPath != "" {
			o.dstPath = cfg.DstPath
		}
	})
	set("deqp-case", func() {
		if cfg.Case != "" {
			o.caseFilter = cfg.Case
		}
	})
	set("validate-spv", func() { o.validate = cfg.Validate })
	set("target-vulkan-version", func() {
		if cfg.TargetVulkan != "" {
			o.vulkan = cfg.TargetVulkan
		}
	})
	set("jobs", func() {
		if cfg.Jobs != 0 {
			o.jobs = cfg.Jobs
		}
	})
	set("log-level", func() {
		if cfg.LogLevel != "" {
			o.logLevel = cfg.LogLevel
		}
	})
	set("device-check", func() { o.deviceCheck = cfg.Toolchain.DeviceCheck })
}

func run(ctx context.Context, fs *pflag.FlagSet, o *options, manifests []string, stdout, stderr io.Writer) error {
	cfg := &fileConfig{}
	if o.configPath != "" {
		var err error
		if cfg, err = loadConfig(o.configPath); err != nil {
			return err
		}
		applyConfig(fs, o, cfg)
	}
	if len(manifests) == 0 {
		manifests = cfg.Manifests
	}
	if len(manifests) == 0 {
		return errors.New("no manifests given")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", o.logLevel)
	}
	progbuild.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	vulkan, err := build.ParseVulkanVersion(o.vulkan)
	if err != nil {
		return err
	}
	filter, err := testpkg.ParseFilter(o.caseFilter)
	if err != nil {
		return err
	}

	root, err := testpkg.LoadManifests(ctx, rootName, manifests)
	if err != nil {
		return err
	}

	tcfg := cfg.Toolchain
	tcfg.DeviceCheck = o.deviceCheck
	tc, release, err := toolchain.Default(tcfg)
	if err != nil {
		return err
	}
	defer release()

	b := build.New(tc,
		build.WithWorkers(o.jobs),
		build.WithValidation(o.validate),
		build.WithVulkanVersion(vulkan),
		build.WithFilter(filter),
		build.WithRegistry(registry.NewWriter(o.dstPath)),
		build.WithCache(cache.NewOutcomes(cfg.CacheCapacity)),
	)
	res, err := b.BuildPrograms(ctx, root)
	if err != nil {
		return err
	}

	if err := build.WriteReport(stdout, res, reportStyle(stdout, o.noColor)); err != nil {
		return err
	}
	if res.Stats.NumFailed > 0 {
		return errFailures
	}
	return nil
}

// reportStyle colors the report only when stdout is a terminal.
func reportStyle(w io.Writer, noColor bool) build.Style {
	f, ok := w.(*os.File)
	if noColor || !ok || !term.IsTerminal(int(f.Fd())) {
		return build.PlainStyle()
	}
	return build.TermStyle(termenv.NewOutput(f))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFailures) {
			fmt.Fprintln(os.Stderr, "progbuild:", err)
		}
		os.Exit(exitFailure)
	}
}
