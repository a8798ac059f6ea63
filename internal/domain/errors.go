package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidListing is returned when an ingested row lacks required fields
	ErrInvalidListing = errors.New("invalid listing")

	// ErrProductNotFound is returned when a canonical product id is not live
	ErrProductNotFound = errors.New("canonical product not found")

	// ErrListingNotFound is returned when a raw listing id is unknown
	ErrListingNotFound = errors.New("listing not found")

	// ErrAlreadyMerged is returned when a product id was absorbed by an earlier merge
	ErrAlreadyMerged = errors.New("product already merged")

	// ErrListingResolved is returned when attaching a listing that already belongs to a product
	ErrListingResolved = errors.New("listing already resolved")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrClassifierUnavailable is returned when no classification service is configured
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrClassifierFailure is returned when the classification service request fails
	ErrClassifierFailure = errors.New("classifier request failed")

	// ErrSearchIndexFailure is returned when the search index cannot be queried or updated
	ErrSearchIndexFailure = errors.New("search index request failed")

	// ErrPartitionViolation is returned when a listing is orphaned or doubly represented
	ErrPartitionViolation = errors.New("listing partition violated")
)
