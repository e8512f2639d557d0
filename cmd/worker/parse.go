package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mn-address-parser/app/bootstrap"
	"github.com/mn-address-parser/app/requests"
	"github.com/mn-address-parser/app/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func createParseCmd() *cobra.Command {
	var (
		workers     int
		explain     bool
		trustedOnly bool
		column      string
		xlsxOut     string
	)

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse one address per line and print NDJSON",
		Long: `Parse addresses from a file (or stdin when no file is given) and write one JSON result per line.
An .xlsx input is read from its first sheet; --xlsx writes the results to a workbook instead of stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addresses, err := loadAddresses(args, column)
			if err != nil {
				return err
			}

			table, err := bootstrap.LoadTable(cfg, logger)
			if err != nil {
				return err
			}
			p, err := bootstrap.NewParser(cfg, table, logger)
			if err != nil {
				return err
			}
			svc := services.NewAddressService(p, services.NoopCacheService{}, nil, nil,
				services.ServiceOptions{
					TrustedMinConfidence: cfg.Parser.TrustedMinConfidence,
					Workers:              cfg.Batch.Workers,
				}, logger)

			start := time.Now()
			outcomes, err := svc.ParseAll(cmd.Context(), addresses,
				requests.ParseOptions{Explain: explain}, workers, nil)
			if err != nil {
				return err
			}

			var written int
			if xlsxOut != "" {
				written, err = writeXLSX(xlsxOut, outcomes, trustedOnly)
			} else {
				written, err = writeNDJSON(cmd.OutOrStdout(), outcomes, trustedOnly)
			}
			if err != nil {
				return err
			}

			stats := svc.GetStats()
			logger.Info("parse finished",
				zap.Int("addresses", len(addresses)),
				zap.Int("written", written),
				zap.Int64("trusted", stats.Trusted),
				zap.Duration("duration", time.Since(start)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel workers (default: batch.workers)")
	cmd.Flags().BoolVar(&explain, "explain", false, "include the parse trace")
	cmd.Flags().BoolVar(&trustedOnly, "trusted-only", false, "only print trusted results")
	cmd.Flags().StringVar(&column, "column", "", "header of the address column in an .xlsx input (default: first column)")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "write results to this .xlsx file")
	return cmd
}

func loadAddresses(args []string, column string) ([]string, error) {
	if len(args) == 0 {
		return readLines(os.Stdin)
	}
	if isXLSX(args[0]) {
		return readXLSX(args[0], column)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("cannot open input: %w", err)
	}
	defer f.Close()
	return readLines(f)
}

// readLines returns the non-blank lines of r with surrounding whitespace
// removed.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}

func writeNDJSON(w io.Writer, outcomes []*services.ParseOutcome, trustedOnly bool) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	written := 0
	for _, o := range outcomes {
		if trustedOnly && !o.Trusted {
			continue
		}
		if err := enc.Encode(o); err != nil {
			return written, err
		}
		written++
	}
	return written, bw.Flush()
}
