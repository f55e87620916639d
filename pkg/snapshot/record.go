// Package snapshot reads and writes the newline-delimited JSON files that
// hold the last known state of all fetched articles.
package snapshot

// Record is one article in a snapshot. Volume, Start and End are the span
// of constituent page indices the article was composed from; they are nil
// when the article carries no usable page markers.
type Record struct {
	Page    string `json:"page"`
	PageID  int64  `json:"pageid"`
	RevID   int64  `json:"revid"`
	Content string `json:"content"`
	Volume  *int   `json:"volume"`
	Start   *int   `json:"start"`
	End     *int   `json:"end"`
}

// HasRange reports whether any range field has been set. Records written
// by older tool versions predate range tracking and have none.
func (r *Record) HasRange() bool {
	return r.Volume != nil || r.Start != nil || r.End != nil
}
