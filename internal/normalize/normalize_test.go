package normalize

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/rcliao/memos-daily-review/internal/model"
)

func TestNormalize_NameFallback(t *testing.T) {
	m, ok := Normalize(model.RawMemo{
		Name:       "memos/42",
		CreateTime: json.RawMessage(`"2024-03-01T08:30:00Z"`),
		Content:    "reading notes #books",
	})
	if !ok {
		t.Fatal("expected memo to normalize")
	}
	if m.ID != "42" {
		t.Errorf("expected id 42, got %q", m.ID)
	}
	want := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	if !m.CreateTime.Equal(want) {
		t.Errorf("expected %v, got %v", want, m.CreateTime)
	}
	if !reflect.DeepEqual(m.Tags, []string{"books"}) {
		t.Errorf("expected [books], got %v", m.Tags)
	}
}

func TestNormalize_RejectsMissingID(t *testing.T) {
	if _, ok := Normalize(model.RawMemo{Content: "orphan"}); ok {
		t.Fatal("expected record without id to be rejected")
	}
	if _, ok := Normalize(model.RawMemo{Name: "memos/"}); ok {
		t.Fatal("expected record with empty name segment to be rejected")
	}
}

func TestNormalize_MalformedFields(t *testing.T) {
	m, ok := Normalize(model.RawMemo{
		UID:        "abc",
		CreateTime: json.RawMessage(`{"nope":true}`),
	})
	if !ok {
		t.Fatal("expected uid to be accepted")
	}
	if !m.CreateTime.IsZero() {
		t.Errorf("expected zero time, got %v", m.CreateTime)
	}
	if m.Content != "" || len(m.Tags) != 0 || len(m.Attachments) != 0 {
		t.Errorf("expected empty memo, got %+v", m)
	}
}

func TestNormalize_UnixSeconds(t *testing.T) {
	m, _ := Normalize(model.RawMemo{ID: "1", CreateTime: json.RawMessage(`1700000000`)})
	if m.CreateTime.Unix() != 1700000000 {
		t.Errorf("expected unix 1700000000, got %d", m.CreateTime.Unix())
	}
}

func TestNormalize_ResourcesAsAttachments(t *testing.T) {
	m, _ := Normalize(model.RawMemo{
		ID:        "1",
		Resources: []model.RawAttachment{{Name: "resources/9", Filename: "a.png", Type: "image/png"}},
	})
	if len(m.Attachments) != 1 || m.Attachments[0].Filename != "a.png" {
		t.Errorf("expected legacy resources as attachments, got %+v", m.Attachments)
	}
	if !Eligible(m) {
		t.Error("memo with attachment should be eligible")
	}
}

func TestNormalizePage_SkipsUnusable(t *testing.T) {
	memos := NormalizePage([]model.RawMemo{
		{ID: "1", Content: "a"},
		{Content: "no id"},
		{Name: "memos/3", Content: "c"},
	})
	if len(memos) != 2 {
		t.Fatalf("expected 2 memos, got %d", len(memos))
	}
	if memos[0].ID != "1" || memos[1].ID != "3" {
		t.Errorf("unexpected ids %q %q", memos[0].ID, memos[1].ID)
	}
}

func TestEligible(t *testing.T) {
	if Eligible(model.Memo{ID: "1", Content: "   \n"}) {
		t.Error("whitespace-only memo should not be eligible")
	}
	if !Eligible(model.Memo{ID: "1", Content: "x"}) {
		t.Error("memo with content should be eligible")
	}
}

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"simple", "#go is fun", []string{"go"}},
		{"multiple dedup", "#a then #b and #a again", []string{"a", "b"}},
		{"nested path", "filed under #work/projects/", []string{"work/projects"}},
		{"heading ignored", "# Title\n## Sub\nbody #real", []string{"real"}},
		{"mid-word ignored", "issue#12 and C#", nil},
		{"inline code ignored", "run `#notatag` then #yes", []string{"yes"}},
		{"fence ignored", "```\n#inside\n```\n#outside", []string{"outside"}},
		{"unicode", "#読書 memo", []string{"読書"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTags(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractTags(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}
