package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petsc/confprobe/internal/cache"
)

var (
	showDir  string
	showJSON bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration of the last successful run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := showDir
		if dir == "" {
			var err error
			if dir, err = os.Getwd(); err != nil {
				return err
			}
		}
		return show(cmd.OutOrStdout(), dir, showJSON)
	},
}

func init() {
	showCmd.Flags().StringVarP(&showDir, "dir", "d", "", "PETSc directory holding the snapshot (default: working directory)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the raw snapshot")
	rootCmd.AddCommand(showCmd)
}

func show(w io.Writer, dir string, raw bool) error {
	snap, err := cache.Load(cache.Path(dir))
	if errors.Is(err, cache.ErrNoSnapshot) {
		return &ExitError{Code: 1, Message: fmt.Sprintf("no configuration in %s; run confprobe configure first", dir)}
	}
	if err != nil {
		return err
	}
	if raw {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	fmt.Fprintf(w, "%s %s\n", bold("Run:"), snap.RunID)
	fmt.Fprintf(w, "%s %s (confprobe %s)\n", bold("Date:"), snap.Time.Local().Format(time.RFC1123), snap.Version)
	fmt.Fprintf(w, "%s %s\n", bold("Options:"), strings.Join(snap.Args, " "))
	fmt.Fprintf(w, "%s %d\n", bold("Passes:"), snap.Passes)
	fmt.Fprintf(w, "%s %s (%d defines, %d substitutions)\n", bold("Header:"), snap.State.Header,
		len(snap.State.Defines), len(snap.State.Substitutions))
	for _, s := range snap.Summaries {
		fmt.Fprintln(w, s)
	}
	return nil
}
