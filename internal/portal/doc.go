// Package portal talks to the enrollment scraper endpoint.
//
// Three outcomes are distinguished: a decoded snapshot, ErrBlocked when the
// portal's anti-automation defense answers with the configured block status,
// and *UpstreamError for everything else (including bodies that are not a
// JSON array of sections, which wrap ErrMalformedResponse).
package portal
