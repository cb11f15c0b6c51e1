package jobqueue

import "fmt"

// Dedupe keys. One durable row per key; versioned stages bake the stage
// version into the key so bumping a version naturally re-enqueues work.

func KeyFetch(accession string) string {
	return "FETCH|" + accession
}

func KeyIngest(accession string) string {
	return "INGEST|" + accession
}

func KeyParse(accession string, parseVersion int) string {
	return fmt.Sprintf("PARSE|%s|%d", accession, parseVersion)
}

func KeyAggregate(accession string, parseVersion int) string {
	return fmt.Sprintf("AGG|%s|%d", accession, parseVersion)
}

func KeyPrices(issuerCIK string) string {
	return "PRICES|" + issuerCIK
}

func KeyMarketCap(ticker string) string {
	return "MCAP|" + ticker
}

func KeyBenchmark(symbol string) string {
	return "BENCH|" + symbol
}

func KeyTrend(issuerCIK, ownerKey, accession string, trendVersion int) string {
	return fmt.Sprintf("TREND|%s|%s|%s|%d", issuerCIK, ownerKey, accession, trendVersion)
}

func KeyOutcomes(issuerCIK, ownerKey, accession string, outcomesVersion int) string {
	return fmt.Sprintf("OUT|%s|%s|%s|%d", issuerCIK, ownerKey, accession, outcomesVersion)
}

func KeyStats(issuerCIK, ownerKey string, statsVersion int) string {
	return fmt.Sprintf("STATS|%s|%s|%d", issuerCIK, ownerKey, statsVersion)
}

func KeyClusters(ticker string, clusterVersion int) string {
	return fmt.Sprintf("CLUSTERS|%s|%d", ticker, clusterVersion)
}

func KeyAI(issuerCIK, ownerKey, accession string, promptVersion int) string {
	return fmt.Sprintf("AI|%s|%s|%s|%d", issuerCIK, ownerKey, accession, promptVersion)
}

func KeyBackfillDiscover(issuerCIK string) string {
	return "BACKFILL_DISCOVER|" + issuerCIK
}

func KeyBackfillBatch(issuerCIK string, year, parseVersion int) string {
	return fmt.Sprintf("BACKFILL_BATCH|%s|%d|%d", issuerCIK, year, parseVersion)
}

func KeyReparse(ticker string, parseVersion int) string {
	return fmt.Sprintf("REPARSE|%s|%d", ticker, parseVersion)
}
