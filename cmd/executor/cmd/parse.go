package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"ai-trading-challenge/internal/sheet"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

var parseJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse [sheet-file|-]",
	Short: "Parse a trade sheet without touching the account",
	Long: `Parse extracts and validates a trade sheet and prints the resulting
instructions and rejected rows. No broker credentials are needed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print the parse result as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	text, err := readSheet(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	res := sheet.Parse(text)

	out := cmd.OutOrStdout()
	if parseJSON {
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		_, err = out.Write(pretty.Pretty(b))
		return err
	}
	printParse(out, res)
	return nil
}

func printParse(out io.Writer, res sheet.Result) {
	fmt.Fprintf(out, "Parser: %s\n", res.Diagnostic)
	for _, r := range res.Rejections {
		fmt.Fprintf(out, "   Skipping %s\n", r)
	}
	if len(res.Instructions) == 0 {
		fmt.Fprintln(out, "No trade instructions found.")
		return
	}
	fmt.Fprintf(out, "Found %d instruction(s):\n", len(res.Instructions))
	for _, ins := range res.Instructions {
		fmt.Fprintf(out, "   %d. %s\n", ins.Row, ins)
	}
}
