package app

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/JiscSD/ammolib/request"

	"github.com/go-logfmt/logfmt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	formatJSON   = "json"
	formatLogfmt = "logfmt"
)

type inspectOptions struct {
	file   string
	format string
}

func NewCmdInspect(out io.Writer, logger logrus.FieldLogger) *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Decode an encoded request and print its fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doInspect(out, logger, afero.NewOsFs(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Encoded request")
	cmd.Flags().StringVar(&opts.format, "format", formatJSON, "Output format (json, logfmt)")

	return cmd
}

func doInspect(out io.Writer, logger logrus.FieldLogger, fs afero.Fs, opts *inspectOptions) error {
	if opts.file == "" {
		return errors.New("parameter --file is empty")
	}
	data, err := afero.ReadFile(fs, opts.file)
	if err != nil {
		return errors.Wrap(err, "cannot read file")
	}
	req, err := request.Decode(data, logger)
	if err != nil {
		return err
	}
	fields := requestFields(req)

	switch opts.format {
	case formatJSON:
		m := make(map[string]string, len(fields))
		for _, f := range fields {
			m[f.key] = f.value
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case formatLogfmt:
		enc := logfmt.NewEncoder(out)
		for _, f := range fields {
			if err := enc.EncodeKeyval(f.key, f.value); err != nil {
				return err
			}
		}
		return enc.EndRecord()
	default:
		return errors.Errorf("unknown format %q", opts.format)
	}
}

type field struct {
	key   string
	value string
}

// requestFields lists the fields that are set, in wire order.
func requestFields(req *request.Request) []field {
	fields := []field{
		{"uuid", req.UUID},
		{"action", req.Action.String()},
	}
	add := func(key, value string) {
		if value != "" {
			fields = append(fields, field{key, value})
		}
	}
	addInt := func(key string, v *int32) {
		if v != nil {
			add(key, strconv.Itoa(int(*v)))
		}
	}
	add("uid", req.UID)
	if req.Provider != nil {
		add("provider", req.Provider.AsString())
	}
	if req.Payload != nil {
		add("payload_type", req.Payload.Type().String())
		add("payload", req.Payload.AsString())
	}
	add("moment", req.Moment.String())
	if req.Topic != nil {
		add("topic", req.Topic.AsString())
	}
	if req.Subtopic != nil {
		add("subtopic", req.Subtopic.AsString())
	}
	addInt("downsample", req.Downsample)
	addInt("durability", req.Durability)
	add("priority", strconv.Itoa(int(req.Priority)))
	add("order", req.Order.String())
	if req.Start != nil {
		add("start", req.Start.String())
	}
	if req.Expire != nil {
		add("expire", req.Expire.String())
	}
	if req.Limit != nil {
		add("limit", req.Limit.String())
	}
	add("scope", req.Scope.String())
	addInt("throttle", req.Throttle)
	add("worth", strconv.Itoa(int(req.Worth)))
	if req.Notice != nil {
		add("notice", req.Notice.String())
	}
	if req.Selection != nil {
		add("select", req.Selection.AsString())
	}
	if len(req.Projection) > 0 {
		add("project", strings.Join(req.Projection, ","))
	}
	return fields
}
