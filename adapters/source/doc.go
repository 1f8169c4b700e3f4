// Package invoicesource resolves invoices for rendering.
//
// Client calls the storefront REST API with the caller's bearer token and maps
// upstream status codes to invoice error kinds. Dir reads captured JSON
// documents from disk.
package invoicesource
