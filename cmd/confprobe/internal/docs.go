package internal

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petsc/confprobe/internal/ctxlog"
	"github.com/petsc/confprobe/internal/docs"
)

var docsJobs int

var docsCmd = &cobra.Command{
	Use:   "docs LOC [clean]",
	Short: "Install the website pages into LOC/docs",
	Long: `Docs copies the pages under LOC/docs/website/documentation into LOC/docs,
keeping only their marked header and body and turning absolute links into
links relative to the docs tree. With "clean" the installed pages are removed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := docs.Options{Jobs: docsJobs}
		if len(args) == 2 {
			if args[1] != "clean" {
				return &ExitError{Code: 2, Message: fmt.Sprintf("unknown docs action %q; only \"clean\" is accepted", args[1])}
			}
			opts.Clean = true
		}
		ctx := ctxlog.WithLogger(cmd.Context(), ctxlog.New(os.Stderr, "info", "text"))
		return docs.UpdateTree(ctx, args[0], opts)
	},
}

func init() {
	docsCmd.Flags().IntVarP(&docsJobs, "jobs", "j", 4, "Pages processed at once")
	rootCmd.AddCommand(docsCmd)
}
