// Package invoicetemplate renders invoice documents as HTML pages.
//
// New returns a Renderer over the embedded html/template page. Deployments that
// restyle the page can supply a Pongo2Executor loading Django-style templates
// from a directory instead. Every template receives TemplateData and must give
// the document fragment the capture id (Meta.CaptureID) so exports can find it.
// Action controls belong in an element with the "no-print" class, which the
// page hides under @media print.
package invoicetemplate
