package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// printResult writes v as indented JSON, or as aligned key/value text.
func printResult(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	fields, err := flatten(v)
	if err != nil {
		return err
	}
	if items, ok := fields["items"].([]any); ok {
		return printPage(w, fields, items)
	}
	return printFields(w, fields)
}

func printFields(w io.Writer, fields map[string]any) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%v\n", k, fields[k])
	}
	return tw.Flush()
}

// printPage prints one row per item with its id and a label column.
func printPage(w io.Writer, page map[string]any, items []any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUPDATED")
	for _, it := range items {
		row, _ := it.(map[string]any)
		fmt.Fprintf(tw, "%v\t%v\t%v\n", row["id"], label(row), row["updated_at"])
	}
	fmt.Fprintf(tw, "\npage %v of %v (%v total)\n", page["page"], page["total_pages"], page["total_count"])
	return tw.Flush()
}

func label(row map[string]any) any {
	for _, k := range []string{"name", "order_number", "tracking_number"} {
		if v, ok := row[k]; ok {
			return v
		}
	}
	return ""
}

func flatten(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return out, nil
}
