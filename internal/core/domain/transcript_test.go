package domain

import "testing"

func TestTranscript_Append(t *testing.T) {
	var combined Transcript

	combined.Append(Transcript{
		Text:     "Hello world.",
		Segments: []Segment{{Text: "Hello world.", Start: 0, End: 15}},
	})
	combined.Append(Transcript{}) // empty segment contributes nothing
	combined.Append(Transcript{
		Text:     "This is a test.",
		Segments: []Segment{{Text: "This is a test.", Start: 15, End: 30}},
	})

	if combined.Text != "Hello world. This is a test." {
		t.Errorf("unexpected combined text: %q", combined.Text)
	}
	if len(combined.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(combined.Segments))
	}
	if combined.Segments[1].End != 30 {
		t.Errorf("expected last segment end 30, got %f", combined.Segments[1].End)
	}
}

func TestTranscript_Empty(t *testing.T) {
	if !(Transcript{}).Empty() {
		t.Error("expected zero transcript to be empty")
	}
	if (Transcript{Text: "a"}).Empty() {
		t.Error("expected transcript with text to be non-empty")
	}
}
