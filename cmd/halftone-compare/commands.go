package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"halftone-compare/internal/config"
)

type options struct {
	configPath string
	baseDir    string
	name       string
	output     string
	toolPath   string
	renderer   string
	timeout    time.Duration
	parallel   bool
	keepStale  bool
	show       bool
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   AppName,
		Short: "Run the halftone tool with several settings and compare the results in one figure",
		Long: `halftone-compare invokes the image_print tool once per configured variant
(ordered dithering, error diffusion, MBVQ, and their grayscale versions),
then composes the original and every result into a labelled 2x3 grid.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompare(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (defaults reproduce the demo)")
	pf.StringVar(&opts.baseDir, "base-dir", "", "directory holding the input image and variants")
	pf.StringVar(&opts.name, "name", "", "image name without extension")
	pf.StringVarP(&opts.output, "output", "o", "", "path of the comparison figure")
	pf.StringVar(&opts.toolPath, "tool", "", "path of the image_print executable")
	pf.StringVar(&opts.renderer, "renderer", "", "figure renderer: opencv or go")
	pf.DurationVar(&opts.timeout, "timeout", 0, "limit for each tool invocation (0 = none)")
	pf.BoolVar(&opts.parallel, "parallel", false, "run the variants concurrently")
	pf.BoolVar(&opts.keepStale, "keep-stale", false, "do not delete old variant files before running")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default from LOG_LEVEL)")
	pf.StringVar(&opts.logFormat, "log-format", "console", "console or json")

	run := &cobra.Command{
		Use:   "run",
		Short: "Generate the variants and the comparison figure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompare(cmd, opts)
		},
	}
	for _, c := range []*cobra.Command{root, run} {
		c.Flags().BoolVar(&opts.show, "show", false, "open the figure in a preview window")
	}

	plan := &cobra.Command{
		Use:   "plan",
		Short: "Print the paths and tool command lines without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printPlan(cmd, opts)
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", AppName, AppVersion)
		},
	}

	root.AddCommand(run, plan, version)
	return root
}

// loadConfig starts from the file or the defaults and applies only the flags
// the user actually set.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("base-dir") {
		cfg.BaseDir = opts.baseDir
	}
	if flags.Changed("name") {
		cfg.ImageName = opts.name
	}
	if flags.Changed("output") {
		cfg.OutputPath = opts.output
	}
	if flags.Changed("tool") {
		cfg.ToolPath = opts.toolPath
	}
	if flags.Changed("renderer") {
		cfg.Renderer = opts.renderer
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("parallel") {
		cfg.Parallel = opts.parallel
	}
	if flags.Changed("keep-stale") {
		cfg.CleanStale = !opts.keepStale
	}

	return cfg, cfg.Validate()
}
