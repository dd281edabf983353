// Package gsc defines the domain types, contracts and error taxonomy shared by
// the Search Console sync engine.
//
// The package has no dependencies on transport or storage. Clients, stores,
// limiters and the orchestrator all speak in terms of the types declared here:
//
//   - Property, DimensionSet, AnalyticsRow and StatRecord model the analytics data.
//   - InspectionResult, IndexingResult and Sitemap model the on-demand operations.
//   - UsageEntry and RateLimitState model quota accounting.
//
// Errors are either sentinels (ErrNoValidToken, ErrRateLimitExceeded, ...) or
// typed values (RemoteAPIError, TransportError, NotIndexableError) and are
// classified with errors.Is and errors.As.
package gsc
