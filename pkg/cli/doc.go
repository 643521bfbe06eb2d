// Package cli provides output helpers shared by the globalmem commands.
//
// This package includes:
//   - Output formatting (YAML, JSON, table, raw) with an optional jq query
//   - Hex dumps of buffer contents
//   - Terminal styles
//
// Example usage:
//
//	cli.Output(stat, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".writes",
//	})
//
//	fmt.Print(cli.Hexdump(data, 0, cli.NewStyles(cli.DefaultTheme)))
package cli
