package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func NewCmdConfig(out io.Writer, config *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(out, "%s", config)
			return err
		},
	}
}
