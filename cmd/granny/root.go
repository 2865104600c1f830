package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spachava753/granny/internal/config"
	"github.com/spachava753/granny/internal/log"
	"github.com/spachava753/granny/internal/models"
	"github.com/spachava753/granny/internal/promote"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	pypirc     string
	verbose    bool
}

type promoteOptions struct {
	repository string
	pkg        string
	version    string
	json       bool
}

func newRootCmd() *cobra.Command {
	globals := &globalOptions{}
	opts := &promoteOptions{}

	cmd := &cobra.Command{
		Use:   "granny -r REPOSITORY (-p PACKAGE [-v VERSION] | URI)",
		Short: "Promote a package release from PyPI into another index",
		Long: `granny mirrors one release from a PyPI-compatible index into a private index.
It downloads the distribution, builds a wheel unless the download is already one,
registers the project on the destination when it is missing, and uploads the artifact.

The destination is a repository alias from ~/.pypirc.`,
		Example: `  granny -r internal -p requests
  granny -r internal -p requests -v 2.32.3
  granny -r internal https://files.example.com/requests-2.32.3.tar.gz`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := specFromFlags(opts.pkg, opts.version, args)
			if err != nil {
				return err
			}
			if opts.repository == "" {
				return models.NewError(models.ErrInvalidSpec, "please specify a repository with -r")
			}
			return runPromote(cmd, globals, opts, spec)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&globals.configPath, "config", "", "tool configuration file (default $XDG_CONFIG_HOME/granny/config.toml)")
	pf.StringVar(&globals.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&globals.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&globals.pypirc, "pypirc", "", "repository configuration file (default ~/.pypirc)")
	pf.BoolVar(&globals.verbose, "verbose", false, "debug logging and build output on stderr")

	f := cmd.Flags()
	f.StringVarP(&opts.repository, "repository", "r", "", "destination repository alias from .pypirc")
	f.StringVarP(&opts.pkg, "package", "p", "", "package name to promote")
	f.StringVarP(&opts.version, "version", "v", "", "package version (default: latest)")
	f.BoolVar(&opts.json, "json", false, "print the promotion result as JSON")

	cmd.AddCommand(newBatchCmd(globals))
	cmd.AddCommand(newCleanCmd(globals))
	return cmd
}

// specFromFlags builds the PackageSpec for exactly one of a package name,
// optionally versioned, or a URI argument.
func specFromFlags(pkg, version string, args []string) (models.PackageSpec, error) {
	var spec models.PackageSpec
	switch {
	case len(args) > 0 && (pkg != "" || version != ""):
		return spec, models.NewError(models.ErrInvalidSpec, "cannot combine a URI with -p or -v")
	case len(args) > 0:
		spec = models.NewURISpec(args[0])
	case version != "" && pkg == "":
		return spec, models.NewError(models.ErrInvalidSpec, "a version (-v) requires a package (-p)")
	default:
		spec = models.NewNameSpec(pkg, version)
	}
	return spec, spec.Validate()
}

// loadToolConfig reads the tool configuration and applies the global flag
// overrides, then installs the logger.
func loadToolConfig(globals *globalOptions, logOutput io.Writer) (models.ToolConfig, error) {
	path, explicit := globals.configPath, globals.configPath != ""
	if !explicit {
		path = config.DefaultToolConfigPath()
	}
	cfg, err := config.LoadToolConfigFile(path, !explicit)
	if err != nil {
		return cfg, fmt.Errorf("loading tool config: %w", err)
	}

	if globals.pypirc != "" {
		cfg.Publish.PyPIRC = config.ExpandHome(globals.pypirc)
	}
	if globals.logLevel != "" {
		cfg.Log.Level = globals.logLevel
	}
	if globals.logFormat != "" {
		cfg.Log.Format = globals.logFormat
	}
	if globals.verbose {
		cfg.Log.Level = "debug"
	}

	format := log.Format(cfg.Log.Format)
	switch format {
	case log.FormatText, log.FormatJSON:
	default:
		return cfg, models.NewError(models.ErrConfig, "unsupported log format %q (want text or json)", cfg.Log.Format)
	}
	log.Setup(log.Options{Level: cfg.Log.Level, Format: format, Output: logOutput})
	return cfg, nil
}

// newPromoter loads the configuration the promotion commands share.
func newPromoter(globals *globalOptions, stderr io.Writer) (*promote.Promoter, error) {
	cfg, err := loadToolConfig(globals, stderr)
	if err != nil {
		return nil, err
	}
	resolver, err := config.LoadPyPIRC(cfg.Publish.PyPIRC)
	if err != nil {
		return nil, err
	}
	var buildOutput io.Writer
	if globals.verbose {
		buildOutput = stderr
	}
	return promote.NewFromConfig(cfg, resolver, buildOutput)
}

func runPromote(cmd *cobra.Command, globals *globalOptions, opts *promoteOptions, spec models.PackageSpec) error {
	promoter, err := newPromoter(globals, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	result, err := promoter.Promote(cmd.Context(), spec, opts.repository)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.json {
		return writeJSON(out, result)
	}
	registration := "skipped (already registered)"
	if result.Registered {
		registration = "performed"
	}
	fmt.Fprintf(out, "Promoted %s %s to %s\n", result.Project, result.Version, result.Repository)
	fmt.Fprintf(out, "Artifact: %s\n", result.Artifact)
	fmt.Fprintf(out, "Registration: %s\n", registration)
	fmt.Fprintf(out, "Duration: %.2fs\n", result.Durations.TotalSec)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
