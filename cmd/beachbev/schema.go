package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/beachbev/beachbev-site/internal/errors"
	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/packets"
)

func schemaCmd(g *globals) *cobra.Command {
	var (
		file string
		out  string
	)

	cmd := &cobra.Command{
		Use:   "schema [key...]",
		Short: "List packet keys and their message schemas",
		Long: `List every packet key with the message it is bound to and the
message's fields.

With --out the built-in schema is written as a FileDescriptorSet that
client.schema_file can load.

Examples:
  beachbev schema
  beachbev schema E1 E3
  beachbev schema --file=packets.pb
  beachbev schema --out=packets.pb`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out != "" {
				return writeDescriptorSet(out)
			}
			if file == "" {
				file = g.cfg.Client.SchemaFile
			}
			reg, err := loadRegistry(file)
			if err != nil {
				return err
			}

			keys := reg.Keys()
			if len(args) > 0 {
				keys = keys[:0]
				for _, arg := range args {
					key := packet.Key(arg)
					if !reg.Bound(key) {
						return errors.New(errors.CodeUnknownKey).WithDetail(fmt.Sprintf("key %q", arg))
					}
					keys = append(keys, key)
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tMESSAGE\tFIELDS")
			for _, key := range keys {
				md, _ := reg.Schema(key)
				fmt.Fprintf(w, "%s\t%s\t%s\n", key, md.FullName(), describeFields(md))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "FileDescriptorSet to load instead of the built-in schema")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the built-in schema as a FileDescriptorSet")

	return cmd
}

// loadRegistry returns the built-in registry, or one loaded from file.
func loadRegistry(file string) (*packet.Registry, error) {
	if file == "" {
		return packets.Registry(), nil
	}
	reg, err := packet.LoadRegistry(file, packets.Bindings())
	if err != nil {
		return nil, errors.New(errors.CodeSchemaLoad).WithDetail(file).Wrap(err)
	}
	return reg, nil
}

func describeFields(md protoreflect.MessageDescriptor) string {
	fields := md.Fields()
	if fields.Len() == 0 {
		return "-"
	}
	parts := make([]string, 0, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		kind := fd.Kind().String()
		if fd.IsList() {
			kind = "repeated " + kind
		}
		parts = append(parts, fmt.Sprintf("%s:%s", fd.Name(), kind))
	}
	return strings.Join(parts, " ")
}

func writeDescriptorSet(path string) error {
	set := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{packets.FileDescriptorProto()},
	}
	raw, err := proto.Marshal(set)
	if err != nil {
		return errors.New(errors.CodeSchemaLoad).Wrap(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.New(errors.CodeInvalidArgument).WithDetail(path).Wrap(err)
	}
	return nil
}
