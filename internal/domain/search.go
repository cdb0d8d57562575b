package domain

// SearchHit is a ticket matched by semantic search.
type SearchHit struct {
	Ticket        Ticket
	Score         float64
	MatchedFields []string
}

// SearchResult is a ranked, capped list of hits ordered by descending score.
// Unavailable is set when the search service could not be reached; the hits are then
// either empty or keyword fallback matches.
type SearchResult struct {
	Query       string
	Hits        []SearchHit
	Unavailable bool
	Fallback    bool
	Message     string
}

// SearchUnavailableMessage is shown when the search service degrades.
const SearchUnavailableMessage = "search unavailable"
