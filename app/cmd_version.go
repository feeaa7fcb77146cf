package app

import (
	"fmt"
	"io"
	"runtime"

	"github.com/JiscSD/ammolib/request"
	"github.com/JiscSD/ammolib/version"

	"github.com/spf13/cobra"
)

func NewCmdVersion(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(out, "%s (request envelope v%d, %s)\n", version.VERSION, request.Version, runtime.Version())
			return err
		},
	}
}
