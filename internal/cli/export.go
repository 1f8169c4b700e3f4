package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/sticktoon/go-invoice/command"
	"github.com/sticktoon/go-invoice/invoice"
)

func newExportCmd(e *env) *cobra.Command {
	var (
		outDir string
		format string
		token  string
	)
	cmd := &cobra.Command{
		Use:   "export <invoice-id>",
		Short: "Export an invoice as a PDF or spreadsheet",
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

			var (
				buf    bytes.Buffer
				result invoice.ExportResult
			)
			switch invoice.Format(strings.ToLower(format)) {
			case invoice.FormatPDF:
				msg := command.ExportInvoice{Auth: auth, InvoiceID: args[0], Output: &buf, Result: &result}
				if err := msg.Validate(); err != nil {
					return err
				}
				if err := command.NewExportInvoiceHandler(a.service).Execute(cmd.Context(), msg); err != nil {
					return err
				}
			case invoice.FormatXLSX:
				msg := command.ExportWorkbook{Auth: auth, InvoiceID: args[0], Output: &buf, Result: &result}
				if err := msg.Validate(); err != nil {
					return err
				}
				if err := command.NewExportWorkbookHandler(a.service).Execute(cmd.Context(), msg); err != nil {
					return err
				}
			default:
				return invoice.NewError(invoice.KindValidation, fmt.Sprintf("unsupported format %q", format), nil)
			}

			out := cmd.OutOrStdout()
			if result.Skipped {
				fmt.Fprintf(out, "invoice %s has no document to capture, nothing written\n", args[0])
				return nil
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			target := filepath.Join(outDir, result.Filename)
			if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s (%s)\n", target, humanize.Bytes(uint64(result.Bytes)))
			if result.Artifact != nil {
				fmt.Fprintf(out, "archived as %s\n", result.Artifact.Key)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the file into")
	cmd.Flags().StringVar(&format, "format", string(invoice.FormatPDF), "output format: pdf or xlsx")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for the storefront API")
	return cmd
}

func newPrintCmd(e *env) *cobra.Command {
	var (
		output string
		token  string
	)
	cmd := &cobra.Command{
		Use:   "print <invoice-id>",
		Short: "Run the print pipeline and write the printed PDF",
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

			var (
				buf    bytes.Buffer
				result invoice.PrintResult
			)
			msg := command.PrintInvoice{Auth: auth, InvoiceID: args[0], Output: &buf, Result: &result}
			if err := msg.Validate(); err != nil {
				return err
			}
			if err := command.NewPrintInvoiceHandler(a.service).Execute(cmd.Context(), msg); err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "printed %s to %s (%s)\n", result.Invoice, output, humanize.Bytes(uint64(result.Bytes)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write, stdout when empty")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for the storefront API")
	return cmd
}
