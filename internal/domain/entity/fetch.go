package entity

import "time"

// FetchOutcome is the per-source record produced by a parallel fetch batch.
// Success=false implies Articles is empty and Error is non-empty; success=true
// implies Error is empty.
type FetchOutcome struct {
	URL       string    `json:"url"`
	Success   bool      `json:"success"`
	Articles  []Article `json:"articles"`
	Error     string    `json:"error,omitempty"`
	FetchTime time.Time `json:"fetch_time"`
}

// AggregatedResult summarises a batch of FetchOutcomes.
type AggregatedResult struct {
	TotalSources      int            `json:"total_sources"`
	SuccessfulSources int            `json:"successful_sources"`
	FailedSources     int            `json:"failed_sources"`
	TotalArticles     int            `json:"total_articles"`
	Outcomes          []FetchOutcome `json:"outcomes"`
	FetchTime         time.Time      `json:"fetch_time"`
}

// Articles flattens every article across the batch's successful outcomes, in
// outcome order.
func (r AggregatedResult) SuccessfulArticles() []Article {
	articles := make([]Article, 0, r.TotalArticles)
	for _, o := range r.Outcomes {
		if o.Success {
			articles = append(articles, o.Articles...)
		}
	}
	return articles
}
