// Package ranking runs independent candidate producers and orders their
// candidates.
//
// Runner executes response or prompt producers concurrently and stops early
// once a decisive candidate (StrongContinue or ForceStart) makes waiting
// pointless. Rank turns the resulting outcomes into RankedResults, which the
// orchestrator pops from until a candidate passes the safety check.
package ranking
