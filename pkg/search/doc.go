// Package search provides the web search collaborator used when composing a
// reply.
//
// DuckDuckGo queries the instant answer API and the HTML results page in
// parallel and needs no API key. Manager sits in front of a Backend and adds
// trigger detection, a TTL-bounded LRU cache of formatted results and
// collapsing of concurrent identical queries:
//
//	mgr := search.NewManager(search.NewDuckDuckGo(), cfg.Search,
//		search.WithMetrics(collector))
//	if mgr.ShouldSearch(message) {
//		text, err := mgr.Search(ctx, message)
//		...
//	}
package search
