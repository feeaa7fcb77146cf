package app

import (
	"fmt"
	"io"

	"github.com/JiscSD/ammolib/types"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type validateOptions struct {
	schema string
	file   string
}

func NewCmdValidate(out io.Writer) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a structured payload against a JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doValidate(out, afero.NewOsFs(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.schema, "schema", "s", "", "JSON schema document")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Payload document")

	return cmd
}

func doValidate(out io.Writer, fs afero.Fs, opts *validateOptions) error {
	if opts.schema == "" || opts.file == "" {
		return errors.New("both --schema and --file are required")
	}
	schema, err := afero.ReadFile(fs, opts.schema)
	if err != nil {
		return errors.Wrap(err, "cannot read schema")
	}
	doc, err := afero.ReadFile(fs, opts.file)
	if err != nil {
		return errors.Wrap(err, "cannot read file")
	}
	var vs types.Values
	if err := vs.UnmarshalJSON(doc); err != nil {
		return errors.Wrap(err, "payload is not a flat JSON object")
	}
	err = types.ValidateValues(schema, vs)
	if verr, ok := err.(types.ValidationError); ok {
		fmt.Fprintln(out, "The payload is invalid!")
		for _, issue := range verr.Errors {
			fmt.Fprintf(out, "%s: %s\n", issue.Path, issue.Message)
		}
		return errors.Errorf("%d validation issues", len(verr.Errors))
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "The payload is valid.")
	return nil
}
