package worker

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"insiderlens/internal/jobqueue"
	"insiderlens/internal/models"
)

func TestJobTypesFor(t *testing.T) {
	if got := jobTypesFor("api"); !reflect.DeepEqual(got, jobqueue.APITypes) {
		t.Fatalf("api mode: got=%v", got)
	}
	if got := jobTypesFor("compute"); !reflect.DeepEqual(got, jobqueue.ComputeTypes) {
		t.Fatalf("compute mode: got=%v", got)
	}
	if got := jobTypesFor("all"); !reflect.DeepEqual(got, jobqueue.AllTypes) {
		t.Fatalf("all mode: got=%v", got)
	}
	if got := jobTypesFor(""); !reflect.DeepEqual(got, jobqueue.AllTypes) {
		t.Fatalf("empty mode: got=%v", got)
	}
}

func TestDeferJobMatchesViaErrorsAs(t *testing.T) {
	err := deferJob("waiting on prices for %s", "0000320193")

	var deferred *deferError
	if !errors.As(err, &deferred) {
		t.Fatalf("errors.As did not match deferError")
	}
	if deferred.reason != "waiting on prices for 0000320193" {
		t.Fatalf("reason got=%q", deferred.reason)
	}
	if err.Error() != deferred.reason {
		t.Fatalf("Error() got=%q want=%q", err.Error(), deferred.reason)
	}
}

func TestDeferJobWrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("stage failed: %w", deferJob("no event yet"))

	var deferred *deferError
	if !errors.As(err, &deferred) {
		t.Fatalf("wrapped deferError not matched")
	}
	if deferred.reason != "no event yet" {
		t.Fatalf("reason got=%q", deferred.reason)
	}
}

func TestPlainErrorIsNotDeferred(t *testing.T) {
	err := errors.New("upstream 500")

	var deferred *deferError
	if errors.As(err, &deferred) {
		t.Fatalf("plain error matched deferError")
	}
}

func TestDecodePayload(t *testing.T) {
	job := &models.Job{
		JobType: jobqueue.TypeFetchAccessionDocs,
		Payload: []byte(`{"accession_number":"0000320193-24-000001","issuer_cik":"320193","ai_requested":true}`),
	}
	payload, err := decodePayload[jobqueue.AccessionPayload](job)
	if err != nil {
		t.Fatalf("decodePayload: %v", err)
	}
	if payload.AccessionNumber != "0000320193-24-000001" {
		t.Fatalf("accession got=%q", payload.AccessionNumber)
	}
	if payload.IssuerCIK != "320193" {
		t.Fatalf("cik got=%q", payload.IssuerCIK)
	}
	if !payload.AIRequested {
		t.Fatalf("ai_requested not decoded")
	}
}

func TestDecodePayloadBadJSON(t *testing.T) {
	job := &models.Job{
		JobType: jobqueue.TypeParseAccessionDocs,
		Payload: []byte(`{"accession_number":`),
	}
	if _, err := decodePayload[jobqueue.AccessionPayload](job); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}
