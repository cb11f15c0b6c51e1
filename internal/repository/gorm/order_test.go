package gormrepository

import "testing"

func TestOrderColumnAllowsKnownColumns(t *testing.T) {
	if got := orderColumn("priority", "updated_at"); got != "priority" {
		t.Fatalf("got=%q want=priority", got)
	}
	if got := orderColumn(" created_at ", "updated_at"); got != "created_at" {
		t.Fatalf("got=%q want=created_at", got)
	}
}

func TestOrderColumnRejectsUnknownInput(t *testing.T) {
	for _, input := range []string{
		"",
		"nonexistent",
		"updated_at; DROP TABLE jobs",
		"updated_at desc, pg_sleep(10)",
	} {
		if got := orderColumn(input, "updated_at"); got != "updated_at" {
			t.Fatalf("input=%q got=%q want fallback", input, got)
		}
	}
}
