package gmail

import (
	"reflect"
	"testing"
	"time"
)

func TestBuildQuery(t *testing.T) {
	after := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter SearchFilter
		want   string
	}{
		{"empty", SearchFilter{}, ""},
		{"query only", SearchFilter{Query: "subject:RFQ"}, "subject:RFQ"},
		{"labels", SearchFilter{LabelIDs: []string{"INBOX", "Label_7"}}, "label:INBOX label:Label_7"},
		{
			"full",
			SearchFilter{Query: "subject:RFQ", LabelIDs: []string{"INBOX"}, After: &after, Before: &before},
			"subject:RFQ label:INBOX after:2024/03/01 before:2024/04/01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.BuildQuery(); got != tt.want {
				t.Fatalf("BuildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitLabels(t *testing.T) {
	got := splitLabels("INBOX, Deals/RFQ ,, IMPORTANT")
	want := []string{"INBOX", "Deals/RFQ", "IMPORTANT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitLabels = %v, want %v", got, want)
	}

	if splitLabels("") != nil {
		t.Fatal("expected nil for empty header")
	}
}
