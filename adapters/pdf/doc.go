// Package invoicepdf turns rendered invoice pages into PDF output.
//
// ChromiumEngine loads a page into a shared headless Chromium instance. It
// screenshots the capture node for exports (invoice.Rasterizer) and runs the
// native print pipeline for print output (invoice.Printer). Writer embeds a
// captured PNG into millimetre pages with fpdf (invoice.DocumentWriter).
// WKHTMLTOPDFPrinter is a print fallback for hosts without Chromium.
package invoicepdf
