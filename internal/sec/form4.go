package sec

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"insiderlens/internal/models"
)

// ParsedForm4 is the usable content of one ownership document: issuer
// identity plus flat transaction rows, one row per (owner, leg).
type ParsedForm4 struct {
	IssuerCIK     string
	IssuerName    string
	TradingSymbol string
	Rows          []models.Form4Row
}

type xmlValue struct {
	Value string `xml:"value"`
}

type ownershipDocument struct {
	Issuer struct {
		CIK           string `xml:"issuerCik"`
		Name          string `xml:"issuerName"`
		TradingSymbol string `xml:"issuerTradingSymbol"`
	} `xml:"issuer"`
	ReportingOwners []struct {
		ID struct {
			CIK  string `xml:"rptOwnerCik"`
			Name string `xml:"rptOwnerName"`
		} `xml:"reportingOwnerId"`
		Relationship struct {
			IsDirector        string `xml:"isDirector"`
			IsOfficer         string `xml:"isOfficer"`
			IsTenPercentOwner string `xml:"isTenPercentOwner"`
			OfficerTitle      string `xml:"officerTitle"`
		} `xml:"reportingOwnerRelationship"`
	} `xml:"reportingOwner"`
	NonDerivativeTable struct {
		Transactions []form4Transaction `xml:"nonDerivativeTransaction"`
	} `xml:"nonDerivativeTable"`
	DerivativeTable struct {
		Transactions []form4Transaction `xml:"derivativeTransaction"`
	} `xml:"derivativeTable"`
	Footnotes struct {
		Items []struct {
			Text string `xml:",chardata"`
		} `xml:"footnote"`
	} `xml:"footnotes"`
}

type form4Transaction struct {
	TransactionDate xmlValue `xml:"transactionDate"`
	Coding          struct {
		Code string `xml:"transactionCode"`
	} `xml:"transactionCoding"`
	Amounts struct {
		Shares        xmlValue `xml:"transactionShares"`
		PricePerShare xmlValue `xml:"transactionPricePerShare"`
	} `xml:"transactionAmounts"`
	PostAmounts struct {
		SharesOwnedFollowing xmlValue `xml:"sharesOwnedFollowingTransaction"`
	} `xml:"postTransactionAmounts"`
}

// ParseForm4 flattens an ownership document. Joint filings list several
// reporting owners; every owner gets a copy of each leg so that per-owner
// events can be derived independently.
func ParseForm4(accession, content string) (*ParsedForm4, error) {
	var doc ownershipDocument
	if err := xml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse ownership document: %w", err)
	}
	issuerCIK := strings.TrimLeft(strings.TrimSpace(doc.Issuer.CIK), "0")
	if issuerCIK == "" {
		return nil, fmt.Errorf("ownership document without issuer cik")
	}
	parsed := &ParsedForm4{
		IssuerCIK:     issuerCIK,
		IssuerName:    strings.TrimSpace(doc.Issuer.Name),
		TradingSymbol: normalizeTicker(doc.Issuer.TradingSymbol),
	}
	var footnotes []string
	for _, note := range doc.Footnotes.Items {
		if text := strings.Join(strings.Fields(note.Text), " "); text != "" {
			footnotes = append(footnotes, text)
		}
	}
	for _, owner := range doc.ReportingOwners {
		ownerCIK := strings.TrimLeft(strings.TrimSpace(owner.ID.CIK), "0")
		ownerName := strings.TrimSpace(owner.ID.Name)
		key := OwnerKey(ownerCIK, ownerName)
		if key == "" {
			continue
		}
		relationship := models.ReportingOwner{
			OfficerTitle:      strings.TrimSpace(owner.Relationship.OfficerTitle),
			IsOfficer:         xmlBool(owner.Relationship.IsOfficer),
			IsDirector:        xmlBool(owner.Relationship.IsDirector),
			IsTenPercentOwner: xmlBool(owner.Relationship.IsTenPercentOwner),
			Footnotes:         footnotes,
		}
		rawPayload, err := json.Marshal(relationship)
		if err != nil {
			return nil, err
		}
		seq := 0
		appendRows := func(transactions []form4Transaction, derivative bool) {
			for _, tx := range transactions {
				row := models.Form4Row{
					AccessionNumber: accession,
					IssuerCIK:       issuerCIK,
					OwnerKey:        key,
					RowSeq:          seq,
					OwnerName:       ownerName,
					TransactionCode: strings.TrimSpace(tx.Coding.Code),
					IsDerivative:    derivative,
					RawPayload:      rawPayload,
				}
				if ownerCIK != "" {
					row.OwnerCIK = &ownerCIK
				}
				if date := strings.TrimSpace(tx.TransactionDate.Value); date != "" {
					row.TransactionDate = &date
				}
				row.Shares = parseDecimal(tx.Amounts.Shares.Value)
				row.Price = parseDecimal(tx.Amounts.PricePerShare.Value)
				row.SharesOwnedFollowing = parseDecimal(tx.PostAmounts.SharesOwnedFollowing.Value)
				parsed.Rows = append(parsed.Rows, row)
				seq++
			}
		}
		appendRows(doc.NonDerivativeTable.Transactions, false)
		appendRows(doc.DerivativeTable.Transactions, true)
	}
	return parsed, nil
}

var ownerKeyCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// OwnerKey identifies a reporting owner stably across filings: the owner CIK
// when present, otherwise the normalized name.
func OwnerKey(ownerCIK, ownerName string) string {
	if ownerCIK != "" {
		return ownerCIK
	}
	name := ownerKeyCleaner.ReplaceAllString(strings.ToLower(strings.TrimSpace(ownerName)), "_")
	return strings.Trim(name, "_")
}

func normalizeTicker(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	switch ticker {
	case "", "NONE", "N/A", "NA":
		return ""
	}
	return ticker
}

func xmlBool(raw string) bool {
	raw = strings.ToLower(strings.TrimSpace(raw))
	return raw == "1" || raw == "true"
}

func parseDecimal(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &value
}
