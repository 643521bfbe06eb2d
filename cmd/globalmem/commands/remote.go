package commands

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/globalmem/pkg/chrdev"
	"github.com/haivivi/globalmem/pkg/cli"
	"github.com/haivivi/globalmem/pkg/globalmem"
)

var (
	flagMinor   int
	flagHex     bool
	flagFile    string
	flagTimeout time.Duration
	flagPlain   bool
	flagOut     string
)

type writeResult struct {
	Minor  int   `json:"minor" yaml:"minor"`
	Offset int64 `json:"offset" yaml:"offset"`
	N      int   `json:"written" yaml:"written"`
}

type readResult struct {
	Minor  int    `json:"minor" yaml:"minor"`
	Offset int64  `json:"offset" yaml:"offset"`
	N      int    `json:"read" yaml:"read"`
	Text   string `json:"text" yaml:"text"`
	Hex    string `json:"hex" yaml:"hex"`
}

var writeCmd = &cobra.Command{
	Use:   "write <offset> [data]",
	Short: "Write bytes at an offset",
	Long: `Write bytes at an offset and wake every blocked reader.

Data comes from the argument, or from --file (use - for stdin). With --hex
the data is hex encoded. Bytes past the end of the buffer are dropped; the
written count says how many landed.

Examples:
  globalmem write 0 hello
  globalmem write 0x10 --hex deadbeef
  globalmem write 0 --file payload.bin`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, err := parseOffset(args[0])
		if err != nil {
			return err
		}
		data, err := writeData(cmd, args[1:])
		if err != nil {
			return err
		}

		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		ctx := cmd.Context()
		f, err := c.Open(ctx, flagMinor)
		if err != nil {
			return err
		}
		defer f.Close()

		n, err := f.Write(ctx, offset, data)
		if err != nil {
			return err
		}
		return output(writeResult{Minor: flagMinor, Offset: offset, N: n})
	},
}

var readCmd = &cobra.Command{
	Use:   "read <offset> <length>",
	Short: "Read bytes at an offset, waiting for a write",
	Long: `Read bytes at an offset. The read blocks until the wait protocol lets
it through: after the first write in latched mode, after the next write in
unconditional mode. --timeout gives up and cancels the read on the server.

Examples:
  globalmem read 0 5
  globalmem read 0 16 --timeout 10s -o raw > out.bin
  globalmem read 0 16 --out out.bin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, err := parseOffset(args[0])
		if err != nil {
			return err
		}
		length, err := strconv.Atoi(args[1])
		if err != nil || length < 0 {
			return fmt.Errorf("invalid length %q", args[1])
		}

		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		ctx := cmd.Context()
		f, err := c.Open(ctx, flagMinor)
		if err != nil {
			return err
		}
		defer f.Close()

		readCtx := ctx
		if flagTimeout > 0 {
			var cancel context.CancelFunc
			readCtx, cancel = context.WithTimeout(ctx, flagTimeout)
			defer cancel()
		}
		cli.PrintVerbose(verbose, "waiting for a write on minor %d", flagMinor)

		p := make([]byte, length)
		n, err := f.Read(readCtx, offset, p)
		if err != nil {
			return err
		}
		p = p[:n]
		if flagOut != "" {
			return saveBytes(p, flagOut)
		}
		if formatOutput == string(cli.FormatRaw) && queryExpr == "" {
			return output(p)
		}
		return output(readResult{
			Minor:  flagMinor,
			Offset: offset,
			N:      n,
			Text:   printableText(p),
			Hex:    hex.EncodeToString(p),
		})
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump [offset] [length]",
	Short: "Hex dump the buffer without waiting",
	Long: `Hex dump the buffer. Unlike read, dump never waits for a write.

Examples:
  globalmem dump
  globalmem dump 0x100 64
  globalmem dump --plain
  globalmem dump 0 64 --out snapshot.bin`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var offset int64
		length := -1
		if len(args) > 0 {
			o, err := parseOffset(args[0])
			if err != nil {
				return err
			}
			offset = o
		}
		if len(args) > 1 {
			l, err := strconv.Atoi(args[1])
			if err != nil || l < 0 {
				return fmt.Errorf("invalid length %q", args[1])
			}
			length = l
		}

		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		ctx := cmd.Context()
		if length < 0 {
			st, err := c.Stat(ctx)
			if err != nil {
				return err
			}
			if offset < 0 || offset >= int64(st.Capacity) {
				return fmt.Errorf("%w: %d not in [0, %d)", globalmem.ErrOffsetOutOfRange, offset, st.Capacity)
			}
			length = st.Capacity - int(offset)
		}

		var data []byte
		for len(data) < length {
			chunk, err := c.Peek(ctx, offset+int64(len(data)), length-len(data))
			if err != nil {
				if len(data) > 0 && errors.Is(err, globalmem.ErrOffsetOutOfRange) {
					break
				}
				return err
			}
			if len(chunk) == 0 {
				break
			}
			data = append(data, chunk...)
		}

		if flagOut != "" {
			return saveBytes(data, flagOut)
		}
		if formatOutput == string(cli.FormatRaw) {
			return output(data)
		}
		styles := cli.NewStyles(cli.DefaultTheme)
		if flagPlain {
			styles = cli.PlainStyles()
		}
		fmt.Print(cli.Hexdump(data, offset, styles))
		return nil
	},
}

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show capacity, wait mode and counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		st, err := c.Stat(cmd.Context())
		if err != nil {
			return err
		}
		return outputTabular(st, statTable(st))
	},
}

var dmesgCmd = &cobra.Command{
	Use:   "dmesg",
	Short: "Show the kernel log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		entries, err := c.Dmesg(cmd.Context())
		if err != nil {
			return err
		}
		if formatOutput == "" && queryExpr == "" {
			for _, e := range entries {
				fmt.Println(e.String())
			}
			return nil
		}
		if entries == nil {
			entries = []chrdev.Entry{}
		}
		return outputTabular(entries, dmesgTable(entries))
	},
}

func init() {
	for _, c := range []*cobra.Command{writeCmd, readCmd} {
		c.Flags().IntVarP(&flagMinor, "minor", "m", 0, "minor to open")
	}
	writeCmd.Flags().BoolVar(&flagHex, "hex", false, "data is hex encoded")
	writeCmd.Flags().StringVarP(&flagFile, "file", "f", "", "read data from file (- for stdin)")
	readCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "give up after this long (0 waits forever)")
	dumpCmd.Flags().BoolVar(&flagPlain, "plain", false, "no colors")
	for _, c := range []*cobra.Command{readCmd, dumpCmd} {
		c.Flags().StringVar(&flagOut, "out", "", "write the bytes to this file")
	}

	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(dmesgCmd)
}

// parseOffset accepts decimal, 0x hex and 0o octal.
func parseOffset(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return n, nil
}

func writeData(cmd *cobra.Command, args []string) ([]byte, error) {
	var data []byte
	switch {
	case flagFile != "" && len(args) > 0:
		return nil, fmt.Errorf("give data or --file, not both")
	case flagFile == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		data = b
	case flagFile != "":
		b, err := os.ReadFile(flagFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		data = b
	case len(args) > 0:
		data = []byte(args[0])
	default:
		return nil, fmt.Errorf("no data: give it as an argument or with --file")
	}

	if flagHex {
		b, err := hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
		if err != nil {
			return nil, fmt.Errorf("invalid hex data: %w", err)
		}
		data = b
	}
	return data, nil
}

func saveBytes(data []byte, path string) error {
	if err := cli.OutputBytes(data, path); err != nil {
		return err
	}
	cli.PrintSuccess("Wrote %d bytes to %s", len(data), path)
	return nil
}

func printableText(p []byte) string {
	var sb strings.Builder
	for _, c := range p {
		if c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

func statTable(st globalmem.Stat) cli.Table {
	return cli.Table{
		Header: []string{"CAPACITY", "WAIT", "WRITES", "WAITERS", "CLOSED"},
		Rows: [][]string{{
			cli.FormatBytesInt(st.Capacity),
			st.WaitMode.String(),
			strconv.FormatUint(st.Writes, 10),
			strconv.Itoa(st.Waiters),
			strconv.FormatBool(st.Closed),
		}},
	}
}

func dmesgTable(entries []chrdev.Entry) cli.Table {
	t := cli.Table{Header: []string{"SEQ", "TIME", "LEVEL", "TEXT"}}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{
			strconv.FormatUint(e.Seq, 10),
			e.Time.Format(time.TimeOnly),
			e.Level,
			e.Text,
		})
	}
	return t
}
