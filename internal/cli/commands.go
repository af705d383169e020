package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollup/plugins-sub001/internal/app"
	"github.com/rollup/plugins-sub001/internal/output"
	"github.com/rollup/plugins-sub001/internal/report"
)

func (c *CLI) newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "cjsesm",
		Short: "Convert CommonJS module graphs to ES modules",
		Long: `cjsesm rewrites the CommonJS modules reachable from a set of entry
modules into ES modules.

Modules whose require order cannot be preserved by hoisting imports are
wrapped in lazily evaluated factories. Dynamic requires with a static
prefix are expanded against the file system.`,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			output.SetupLoggingTo(c.Err, flags.verbose)
			output.Debug("cjsesm started", "version", versionString())
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.Out)
	root.SetErr(c.Err)

	persistent := root.PersistentFlags()
	persistent.StringVar(&flags.root, "root", ".", "project root")
	persistent.StringVarP(&flags.config, "config", "c", "", "path to config file (env: "+configEnv+")")
	persistent.BoolVarP(&flags.verbose, "verbose", "v", false, "increase output verbosity")

	root.AddCommand(c.newBuildCmd(flags))
	root.AddCommand(c.newAnalyzeCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

func (c *CLI) newBuildCmd(flags *globalFlags) *cobra.Command {
	var (
		format string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "build <entry>...",
		Short: "Transform the module graph and write it to the output directory",
		Long: `Transform every module reachable from the entries and write the result,
with one proxy file per required module, below the output directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(app.ModeBuild, args, format)
			if err != nil {
				return err
			}
			req.OutDir = outDir
			return c.execute(cmd, req)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatTable), "report format: table|json|sarif")
	cmd.Flags().StringVarP(&outDir, "out", "o", app.DefaultRequest().OutDir, "output directory, relative to the root")
	return cmd
}

func (c *CLI) newAnalyzeCmd(flags *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "analyze <entry>...",
		Short: "Report how every module in the graph would be transformed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(app.ModeAnalyze, args, format)
			if err != nil {
				return err
			}
			return c.execute(cmd, req)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatTable), "report format: table|json|sarif")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return nil
		},
	}
}
