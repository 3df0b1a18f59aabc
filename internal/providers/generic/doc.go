// Package generic implements providers for HTML-based reading sites. One
// extraction routine walks the document with goquery; everything specific to
// a site (selectors, where the chapter number lives, how the listing is
// paginated) is data in a Rules table.
package generic
