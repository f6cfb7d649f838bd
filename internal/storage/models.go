/*
Package storage provides data models for the registration and match history.
*/
package storage

import "time"

// Registration records one accepted tool registration.
type Registration struct {
	// ToolName is the registered tool's name.
	ToolName string `json:"tool_name"`

	// FragmentCount is the number of fragments the registration inserted.
	FragmentCount int `json:"fragment_count"`

	// Timestamp is when the tool was registered.
	Timestamp time.Time `json:"timestamp"`
}

// MatchRecord records one match query and its outcome.
type MatchRecord struct {
	// SearchID is a unique identifier for this query (UUID).
	SearchID string `json:"search_id"`

	// QueryHash is the SHA256 hash of the task text for privacy.
	QueryHash string `json:"query_hash"`

	// MatchedName is the resolved tool name, empty when nothing matched.
	MatchedName string `json:"matched_name"`

	// Found reports whether a registered tool was returned.
	Found bool `json:"found"`

	// Timestamp is when the query was answered.
	Timestamp time.Time `json:"timestamp"`
}

// MatchStats summarises recorded match outcomes.
type MatchStats struct {
	Total    int `json:"total"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
}
