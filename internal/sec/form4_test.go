package sec

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"insiderlens/internal/models"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

const jointForm4XML = `<?xml version="1.0"?>
<ownershipDocument>
  <issuer>
    <issuerCik>0000320193</issuerCik>
    <issuerName>Apple Inc.</issuerName>
    <issuerTradingSymbol>aapl</issuerTradingSymbol>
  </issuer>
  <reportingOwner>
    <reportingOwnerId>
      <rptOwnerCik>0001214156</rptOwnerCik>
      <rptOwnerName>DOE JANE</rptOwnerName>
    </reportingOwnerId>
    <reportingOwnerRelationship>
      <isDirector>0</isDirector>
      <isOfficer>1</isOfficer>
      <isTenPercentOwner>false</isTenPercentOwner>
      <officerTitle>Chief Financial Officer</officerTitle>
    </reportingOwnerRelationship>
  </reportingOwner>
  <reportingOwner>
    <reportingOwnerId>
      <rptOwnerCik></rptOwnerCik>
      <rptOwnerName>Doe Family Trust</rptOwnerName>
    </reportingOwnerId>
    <reportingOwnerRelationship>
      <isTenPercentOwner>1</isTenPercentOwner>
    </reportingOwnerRelationship>
  </reportingOwner>
  <nonDerivativeTable>
    <nonDerivativeTransaction>
      <transactionDate><value>2024-03-05</value></transactionDate>
      <transactionCoding><transactionCode>P</transactionCode></transactionCoding>
      <transactionAmounts>
        <transactionShares><value>1000</value></transactionShares>
        <transactionPricePerShare><value>172.50</value></transactionPricePerShare>
      </transactionAmounts>
      <postTransactionAmounts>
        <sharesOwnedFollowingTransaction><value>5000</value></sharesOwnedFollowingTransaction>
      </postTransactionAmounts>
    </nonDerivativeTransaction>
  </nonDerivativeTable>
  <derivativeTable>
    <derivativeTransaction>
      <transactionDate><value>2024-03-04</value></transactionDate>
      <transactionCoding><transactionCode>M</transactionCode></transactionCoding>
      <transactionAmounts>
        <transactionShares><value>500</value></transactionShares>
        <transactionPricePerShare><value></value></transactionPricePerShare>
      </transactionAmounts>
      <postTransactionAmounts>
        <sharesOwnedFollowingTransaction><value></value></sharesOwnedFollowingTransaction>
      </postTransactionAmounts>
    </derivativeTransaction>
  </derivativeTable>
  <footnotes>
    <footnote id="F1">Price reflects the weighted average of
      multiple executions.</footnote>
  </footnotes>
</ownershipDocument>`

func TestParseForm4JointFiling(t *testing.T) {
	parsed, err := ParseForm4("0001-24-000001", jointForm4XML)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if parsed.IssuerCIK != "320193" {
		t.Fatalf("issuerCIK=%s want=320193", parsed.IssuerCIK)
	}
	if parsed.IssuerName != "Apple Inc." || parsed.TradingSymbol != "AAPL" {
		t.Fatalf("issuer=%s symbol=%s", parsed.IssuerName, parsed.TradingSymbol)
	}
	// Two owners get a copy of each of the two legs.
	if len(parsed.Rows) != 4 {
		t.Fatalf("rows=%d want=4", len(parsed.Rows))
	}

	first := parsed.Rows[0]
	if first.OwnerKey != "1214156" {
		t.Fatalf("ownerKey=%s want=1214156", first.OwnerKey)
	}
	if first.TransactionCode != "P" || first.IsDerivative {
		t.Fatalf("code=%s derivative=%v", first.TransactionCode, first.IsDerivative)
	}
	if first.TransactionDate == nil || *first.TransactionDate != "2024-03-05" {
		t.Fatalf("date=%v want=2024-03-05", first.TransactionDate)
	}
	if first.Shares == nil || !first.Shares.Equal(mustDecimal(t, "1000")) {
		t.Fatalf("shares=%v want=1000", first.Shares)
	}
	if first.Price == nil || !first.Price.Equal(mustDecimal(t, "172.50")) {
		t.Fatalf("price=%v want=172.50", first.Price)
	}
	if first.SharesOwnedFollowing == nil || !first.SharesOwnedFollowing.Equal(mustDecimal(t, "5000")) {
		t.Fatalf("sof=%v want=5000", first.SharesOwnedFollowing)
	}

	second := parsed.Rows[1]
	if !second.IsDerivative || second.TransactionCode != "M" {
		t.Fatalf("code=%s derivative=%v want derivative M leg", second.TransactionCode, second.IsDerivative)
	}
	if second.Shares == nil || second.Price != nil || second.SharesOwnedFollowing != nil {
		t.Fatalf("shares=%v price=%v sof=%v want blanks parsed as nil", second.Shares, second.Price, second.SharesOwnedFollowing)
	}
	if second.RowSeq != 1 {
		t.Fatalf("rowSeq=%d want=1", second.RowSeq)
	}

	// The trust has no CIK, so its key falls back to the normalized name.
	trust := parsed.Rows[2]
	if trust.OwnerKey != "doe_family_trust" {
		t.Fatalf("ownerKey=%s want=doe_family_trust", trust.OwnerKey)
	}
	if trust.OwnerCIK != nil {
		t.Fatalf("ownerCIK=%v want=nil", trust.OwnerCIK)
	}

	var relationship models.ReportingOwner
	if err := json.Unmarshal(first.RawPayload, &relationship); err != nil {
		t.Fatalf("rawPayload: %v", err)
	}
	if !relationship.IsOfficer || relationship.IsDirector || relationship.IsTenPercentOwner {
		t.Fatalf("relationship=%+v", relationship)
	}
	if relationship.OfficerTitle != "Chief Financial Officer" {
		t.Fatalf("officerTitle=%s", relationship.OfficerTitle)
	}
	if len(relationship.Footnotes) != 1 ||
		relationship.Footnotes[0] != "Price reflects the weighted average of multiple executions." {
		t.Fatalf("footnotes=%v want whitespace-collapsed footnote", relationship.Footnotes)
	}

	var trustRel models.ReportingOwner
	if err := json.Unmarshal(trust.RawPayload, &trustRel); err != nil {
		t.Fatalf("rawPayload: %v", err)
	}
	// Footnotes are document-wide: every owner's payload carries them.
	if !trustRel.IsTenPercentOwner || len(trustRel.Footnotes) != 1 {
		t.Fatalf("trust relationship=%+v", trustRel)
	}
}

func TestParseForm4MissingIssuerCIK(t *testing.T) {
	if _, err := ParseForm4("0001-24-000001", `<ownershipDocument><issuer></issuer></ownershipDocument>`); err == nil {
		t.Fatalf("err=nil want error without issuer cik")
	}
}

func TestOwnerKey(t *testing.T) {
	if got := OwnerKey("1214156", "DOE JANE"); got != "1214156" {
		t.Fatalf("got=%s want=1214156", got)
	}
	if got := OwnerKey("", "Doe Family Trust, L.P."); got != "doe_family_trust_l_p" {
		t.Fatalf("got=%s want=doe_family_trust_l_p", got)
	}
	if got := OwnerKey("", ""); got != "" {
		t.Fatalf("got=%q want empty", got)
	}
}

func TestNormalizeTicker(t *testing.T) {
	if got := normalizeTicker(" aapl "); got != "AAPL" {
		t.Fatalf("got=%s want=AAPL", got)
	}
	for _, placeholder := range []string{"", "none", "N/A", "NA"} {
		if got := normalizeTicker(placeholder); got != "" {
			t.Fatalf("got=%q want empty for %q", got, placeholder)
		}
	}
}

func TestPadCIK(t *testing.T) {
	if got := PadCIK("320193"); got != "0000320193" {
		t.Fatalf("got=%s want=0000320193", got)
	}
	if got := PadCIK("0000320193"); got != "0000320193" {
		t.Fatalf("got=%s want unchanged", got)
	}
}
