package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/sticktoon/go-invoice/adapters/invoiceapi"
	"github.com/sticktoon/go-invoice/command"
	"github.com/sticktoon/go-invoice/invoice"
	"github.com/sticktoon/go-invoice/query"
)

func newHistoryCmd(e *env) *cobra.Command {
	var (
		filter  invoice.HistoryFilter
		format  string
		since   time.Duration
		token   string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generated invoice files (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			auth, err := a.auth(token)
			if err != nil {
				return err
			}
			filter.Format = invoice.Format(strings.ToLower(format))
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			records, err := query.NewExportHistoryHandler(a.service).Query(cmd.Context(), query.ExportHistory{
				Auth:   auth,
				Filter: filter,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(invoiceapi.NewHistoryResponse(records))
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "no exports recorded")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tINVOICE\tFORMAT\tSIZE\tREQUESTED BY\tCREATED")
			for _, entry := range invoiceapi.NewHistoryResponse(records).Records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					entry.ID,
					entry.Invoice,
					entry.Format,
					humanize.Bytes(uint64(entry.Bytes)),
					dashIfEmpty(entry.RequestedBy),
					humanize.Time(entry.CreatedAt),
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Invoice, "invoice", "", "only show this invoice number")
	cmd.Flags().StringVar(&format, "format", "", "only show this format (pdf, xlsx)")
	cmd.Flags().DurationVar(&since, "since", 0, "only show exports newer than this, e.g. 72h")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of records")
	cmd.Flags().StringVar(&token, "token", "", "admin bearer token")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func newDownloadCmd(e *env) *cobra.Command {
	var (
		outDir string
		token  string
	)
	cmd := &cobra.Command{
		Use:   "download <export-id>",
		Short: "Write an archived export back to disk (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			auth, err := a.auth(token)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			result, err := a.service.Archived(cmd.Context(), auth, args[0], &buf)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			target := filepath.Join(outDir, result.Filename)
			if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", target, humanize.Bytes(uint64(result.Bytes)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the file into")
	cmd.Flags().StringVar(&token, "token", "", "admin bearer token")
	return cmd
}

func newPruneCmd(e *env) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archived invoice files past their retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			retention := a.cfg.Archive.Retention
			if olderThan > 0 {
				retention = olderThan
			}
			var removed int
			handler := command.NewPruneArchiveHandler(a.service, retention)
			if err := handler.Execute(cmd.Context(), command.PruneArchive{Result: &removed}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s archived %s\n", humanize.Comma(int64(removed)), plural(removed, "file", "files"))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override the configured retention")
	return cmd
}

func dashIfEmpty(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
