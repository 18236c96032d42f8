// Command tabledump lists the table directory of a model store or dumps one
// table snapshot in a chosen wire format. The store backend is selected with
// the TABLECORE_STORE_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"tablecore/internal/engine"
	"tablecore/pkg/tabular/codec"
)

var exitFunc = os.Exit

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tabledump:", err)
		exitFunc(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tabledump", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		list     = fs.Bool("list", false, "list available tables and exit")
		obsolete = fs.Bool("obsolete", false, "list obsolete tables and exit")
		tableKey = fs.String("table", "", "table key to dump")
		format   = fs.String("format", string(codec.FormatDelimited), "output format: array|delimited|markup")
		sep      = fs.String("sep", ",", "field separator for delimited output")
		fields   = fs.String("fields", "", "comma-separated field keys (default all)")
		group    = fs.String("group", "", "restrict rows to a named group")
		outPath  = fs.String("out", "", "write output to file instead of stdout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := engine.OpenModelStore()
	if err != nil {
		return err
	}
	svc := engine.NewService(store)
	ctx := context.Background()

	if *list {
		tables, err := svc.ListTables(ctx)
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Fprintf(out, "%s\t%s\t%s\n", t.Key, t.Import, t.DisplayName)
		}
		return nil
	}
	if *obsolete {
		tables, err := svc.ListObsoleteTables(ctx)
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Fprintf(out, "%s\t%s\n", t.Key, t.MigrationNote)
		}
		return nil
	}

	if *tableKey == "" {
		return fmt.Errorf("either -list, -obsolete or -table is required")
	}
	f, err := codec.ParseFormat(*format)
	if err != nil {
		return err
	}
	separator, err := parseSeparator(*sep)
	if err != nil {
		return err
	}

	var fieldKeys []string
	if *fields != "" {
		for _, k := range strings.Split(*fields, ",") {
			if k = strings.TrimSpace(k); k != "" {
				fieldKeys = append(fieldKeys, k)
			}
		}
	}

	payload, err := svc.ReadForDisplay(ctx, *tableKey, fieldKeys, *group, f)
	if err != nil {
		return err
	}

	text := payload.Encoded
	if f == codec.FormatArray {
		encoded, err := json.MarshalIndent(payload.Snapshot, "", "  ")
		if err != nil {
			return err
		}
		text = string(encoded) + "\n"
	} else if separator != codec.DefaultSeparator && f == codec.FormatDelimited {
		text, err = codec.EncodeDelimited(codec.Table{
			FieldKeys: payload.Snapshot.FieldKeys,
			Rows:      payload.Snapshot.Rows,
		}, separator)
		if err != nil {
			return err
		}
	}

	if *outPath != "" {
		return os.WriteFile(*outPath, []byte(text), 0o644)
	}
	_, err = io.WriteString(out, text)
	return err
}

func parseSeparator(s string) (rune, error) {
	switch s {
	case "", ",":
		return codec.DefaultSeparator, nil
	case "\\t", "tab":
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("separator must be a single character, got %q", s)
	}
	return runes[0], nil
}
