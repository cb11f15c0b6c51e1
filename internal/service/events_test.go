package service

import (
	"testing"

	"insiderlens/internal/models"
)

func ratedEvent(accession, ownerKey, ownerName string, buyRating, sellRating *float64) models.InsiderEvent {
	return models.InsiderEvent{
		IssuerCIK:       "320193",
		AccessionNumber: accession,
		OwnerKey:        ownerKey,
		OwnerName:       ownerName,
		AIBuyRating:     buyRating,
		AISellRating:    sellRating,
	}
}

func rptr(v float64) *float64 { return &v }

func TestGroupByFilingCollapsesJointFilings(t *testing.T) {
	events := []models.InsiderEvent{
		ratedEvent("acc-1", "owner-a", "DOE JANE", nil, nil),
		ratedEvent("acc-1", "owner-b", "Doe Family Trust", nil, nil),
		ratedEvent("acc-2", "owner-c", "SMITH JOHN", nil, nil),
	}
	groups := groupByFiling(events)
	if len(groups) != 2 {
		t.Fatalf("groups=%d want=2", len(groups))
	}
	joint := groups[0]
	if joint.OwnerCount != 2 || len(joint.OwnerKeys) != 2 || len(joint.OwnerNames) != 2 {
		t.Fatalf("group=%+v want both owners collected", joint)
	}
	// No ratings anywhere: the first-seen row keeps the slot.
	if joint.Event.OwnerKey != "owner-a" {
		t.Fatalf("representative=%s want=owner-a", joint.Event.OwnerKey)
	}
	if groups[1].OwnerCount != 1 || groups[1].Event.OwnerKey != "owner-c" {
		t.Fatalf("group=%+v", groups[1])
	}
}

func TestGroupByFilingPicksHighestRatedRepresentative(t *testing.T) {
	events := []models.InsiderEvent{
		ratedEvent("acc-1", "owner-a", "DOE JANE", rptr(6.5), nil),
		ratedEvent("acc-1", "owner-b", "Doe Family Trust", nil, rptr(8.0)),
		ratedEvent("acc-1", "owner-c", "SMITH JOHN", rptr(7.0), rptr(5.0)),
	}
	groups := groupByFiling(events)
	if len(groups) != 1 {
		t.Fatalf("groups=%d want=1", len(groups))
	}
	// owner-b's sell rating 8.0 is the best rating in the filing.
	if groups[0].Event.OwnerKey != "owner-b" {
		t.Fatalf("representative=%s want=owner-b", groups[0].Event.OwnerKey)
	}
}

func TestGroupByFilingRatedBeatsUnrated(t *testing.T) {
	events := []models.InsiderEvent{
		ratedEvent("acc-1", "owner-a", "DOE JANE", nil, nil),
		ratedEvent("acc-1", "owner-b", "SMITH JOHN", rptr(4.0), nil),
	}
	groups := groupByFiling(events)
	if groups[0].Event.OwnerKey != "owner-b" {
		t.Fatalf("representative=%s want=owner-b", groups[0].Event.OwnerKey)
	}
}

func TestGroupByFilingTieKeepsFirstSeen(t *testing.T) {
	events := []models.InsiderEvent{
		ratedEvent("acc-1", "owner-a", "DOE JANE", rptr(7.0), nil),
		ratedEvent("acc-1", "owner-b", "SMITH JOHN", rptr(7.0), nil),
	}
	groups := groupByFiling(events)
	if groups[0].Event.OwnerKey != "owner-a" {
		t.Fatalf("representative=%s want=owner-a on tie", groups[0].Event.OwnerKey)
	}
}

func TestBestRating(t *testing.T) {
	event := ratedEvent("acc-1", "owner-a", "DOE JANE", nil, nil)
	if event.BestRating() != nil {
		t.Fatalf("bestRating=%v want=nil", event.BestRating())
	}
	event.AIBuyRating = rptr(6.0)
	if got := event.BestRating(); got == nil || *got != 6.0 {
		t.Fatalf("bestRating=%v want=6.0", got)
	}
	event.AISellRating = rptr(8.5)
	if got := event.BestRating(); got == nil || *got != 8.5 {
		t.Fatalf("bestRating=%v want=8.5", got)
	}
}
