package secrets

import (
	"context"
	"time"
)

// Failure reason codes surfaced per secret.
const (
	ReasonNotFound      = "not-found"
	ReasonAccessDenied  = "access-denied"
	ReasonEmptySecret   = "empty-secret"
	ReasonMalformedJSON = "malformed-json"
	ReasonMissingField  = "missing-field"
	ReasonMalformedPEM  = "malformed-pem"
	ReasonFetchError    = "fetch-error"
)

// FetchFailure describes a single secret that could not be turned into a
// Record. Failures never abort the batch they belong to.
type FetchFailure struct {
	Name   string
	Reason string
	Detail string
}

// Result carries everything one fetch produced: usable records plus per-item
// failures.
type Result struct {
	Records  []Record
	Failures []FetchFailure
}

// SecretInfo is secret metadata without the payload, served by the status
// endpoints.
type SecretInfo struct {
	Name            string            `json:"name"`
	ARN             string            `json:"arn,omitempty"`
	Description     string            `json:"description,omitempty"`
	CreatedDate     *time.Time        `json:"created_date,omitempty"`
	LastChangedDate *time.Time        `json:"last_changed_date,omitempty"`
	Tags            map[string]string `json:"tags,omitempty"`
}

// Source fetches certificate material from the remote secret store. A non-nil
// error is a wholesale failure: the store could not be reached or queried at
// all, and the caller records zero changes for the cycle.
type Source interface {
	// FetchByNames retrieves the given secrets. Individual misses become
	// Failures; the rest of the batch is unaffected.
	FetchByNames(ctx context.Context, names []string) (Result, error)

	// FetchByTag retrieves every secret carrying the exact tag key/value pair.
	FetchByTag(ctx context.Context, key, value string) (Result, error)

	// List returns metadata for all secrets in the store.
	List(ctx context.Context) ([]SecretInfo, error)

	// Describe returns metadata for the named secrets, skipping ones that do
	// not exist.
	Describe(ctx context.Context, names []string) ([]SecretInfo, error)
}
