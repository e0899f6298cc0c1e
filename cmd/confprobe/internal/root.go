package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is stamped at link time with -ldflags "-X ...internal.Version=v1.2.3".
var Version = "dev"

var (
	red  = color.New(color.FgRed, color.Bold).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "confprobe",
	Short:         "confprobe configures PETSc for the host system",
	Long:          `confprobe checks compilers, system headers, libraries and external packages, then writes the header and make fragments the PETSc build uses.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError ends the process with Code after printing Message, if any.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Message
}

// Execute adds all child commands to the root command and returns the
// process exit code. This is called by main.main().
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		if exit.Message != "" {
			fmt.Fprintln(os.Stderr, exit.Message)
		}
		return exit.Code
	}
	fmt.Fprintln(os.Stderr, red("error:"), err)
	return 1
}
