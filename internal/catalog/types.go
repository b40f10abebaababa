// Package catalog provides the canonical anime catalog: record types, the
// persistent store, and the aggregator that reconciles provider results into it.
package catalog

import "time"

// Kind classifies a catalog record.
type Kind string

const (
	KindTV      Kind = "TV"
	KindMovie   Kind = "MOVIE"
	KindOVA     Kind = "OVA"
	KindONA     Kind = "ONA"
	KindSpecial Kind = "SPECIAL"
	KindUnknown Kind = "UNKNOWN"
)

// Status is the lifecycle status of a title.
type Status string

const (
	StatusOngoing   Status = "ONGOING"
	StatusFinished  Status = "FINISHED"
	StatusAnnounced Status = "ANNOUNCED"
	StatusUnknown   Status = "UNKNOWN"
)

// Record is a canonical catalog record. ID is the stable store-assigned
// identity; Source/ExternalID identify the provider-native record it was
// synced from. A record with an empty ExternalID is locally authored and
// is never overwritten by sync.
type Record struct {
	ID              string     `json:"id"`
	Source          string     `json:"source,omitempty"`
	ExternalID      string     `json:"externalId,omitempty"`
	Title           string     `json:"title"`
	AlternateTitle  string     `json:"alternateTitle,omitempty"`
	Synopsis        string     `json:"synopsis,omitempty"`
	Kind            Kind       `json:"kind"`
	Status          Status     `json:"status"`
	Episodes        int        `json:"episodes"`
	EpisodeDuration int        `json:"episodeDurationMinutes"`
	CoverImageURL   string     `json:"coverImageUrl,omitempty"`
	Rating          float64    `json:"rating"`
	ReleaseDate     *time.Time `json:"releaseDate,omitempty"`
	Genres          []string   `json:"genres,omitempty"`
	LastSyncedAt    time.Time  `json:"lastSyncedAt"`
}

// Page is the paginated response envelope returned by catalog operations.
type Page struct {
	Items   []Record `json:"items"`
	Total   int      `json:"total"`
	HasMore bool     `json:"hasMore"`
}

// SearchFilters narrow a catalog search.
type SearchFilters struct {
	Genres []string
	Year   int
	Season string
	Status Status
}
