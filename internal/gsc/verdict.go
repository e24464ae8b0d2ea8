package gsc

import (
	"strings"

	"github.com/voralis/indexwatch/internal/indexer"
)

// IndexStatusResult is the raw diagnostic payload returned by the inspection
// endpoint for one URL.
type IndexStatusResult struct {
	Verdict         string `json:"verdict"`
	CoverageState   string `json:"coverageState"`
	RobotsTxtState  string `json:"robotsTxtState"`
	IndexingState   string `json:"indexingState"`
	PageFetchState  string `json:"pageFetchState"`
	GoogleCanonical string `json:"googleCanonical"`
	LastCrawlTime   string `json:"lastCrawlTime"`
}

// MapVerdict classifies a raw index status into a stored verdict. Blocking
// states take precedence over the coverage verdict; a missing payload maps
// to unknown.
func MapVerdict(res *IndexStatusResult) indexer.Verdict {
	if res == nil {
		return indexer.VerdictUnknown
	}
	switch res.IndexingState {
	case "BLOCKED_BY_META_TAG", "BLOCKED_BY_HTTP_HEADER":
		return indexer.VerdictNoindex
	}
	if res.RobotsTxtState == "DISALLOWED" {
		return indexer.VerdictBlockedRobots
	}
	switch res.Verdict {
	case "PASS":
		return indexer.VerdictIndexed
	case "FAIL":
		return indexer.VerdictError
	case "NEUTRAL":
		coverage := strings.ToLower(res.CoverageState)
		switch {
		case strings.Contains(coverage, "crawled"):
			return indexer.VerdictCrawledNotIndexed
		case strings.Contains(coverage, "discovered"):
			return indexer.VerdictDiscoveredNotIndexed
		default:
			return indexer.VerdictNotIndexed
		}
	}
	return indexer.VerdictUnknown
}
