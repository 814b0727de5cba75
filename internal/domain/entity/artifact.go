package entity

import "time"

// ArtifactSummary carries the aggregate counts stamped onto an Artifact at
// materialisation time.
type ArtifactSummary struct {
	TotalSources      int       `json:"total_sources"`
	SuccessfulSources int       `json:"successful_sources"`
	FailedSources     int       `json:"failed_sources"`
	TotalArticles     int       `json:"total_articles"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Artifact is the daily-materialised cache document consumed by the RSS
// tools. Articles are globally sorted by PubDate descending and capped at a
// fixed bound before being written.
type Artifact struct {
	Summary  ArtifactSummary `json:"summary"`
	Articles []Article       `json:"articles"`
}
