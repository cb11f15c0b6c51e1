package jobqueue

// Payload shapes stored in jobs.payload. Kept flat and additive so old rows
// stay readable after a deploy.

type AccessionPayload struct {
	AccessionNumber string `json:"accession_number"`
	IssuerCIK       string `json:"issuer_cik"`
	FilingDate      string `json:"filing_date,omitempty"`
	FormType        string `json:"form_type,omitempty"`
	AIRequested     bool   `json:"ai_requested,omitempty"`
	Force           bool   `json:"force,omitempty"`
}

type IssuerPayload struct {
	IssuerCIK string `json:"issuer_cik"`
}

type TickerPayload struct {
	Ticker string `json:"ticker"`
}

type EventPayload struct {
	IssuerCIK       string `json:"issuer_cik"`
	OwnerKey        string `json:"owner_key"`
	AccessionNumber string `json:"accession_number"`
	AIRequested     bool   `json:"ai_requested,omitempty"`
	Force           bool   `json:"force,omitempty"`
}

type OwnerIssuerPayload struct {
	IssuerCIK string `json:"issuer_cik"`
	OwnerKey  string `json:"owner_key"`
}

type BenchmarkPayload struct {
	Symbol string `json:"symbol"`
}

type BackfillBatchPayload struct {
	IssuerCIK string `json:"issuer_cik"`
	Year      int    `json:"year"`
}
