package domain

// Segment is one provider-timestamped span of a transcript.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the combined output of transcribing one media file.
// Segments may be empty for providers that return plain text only.
type Transcript struct {
	Text     string    `json:"transcript"`
	Segments []Segment `json:"segments,omitempty"`
}

// Append extends the transcript with another transcript's text and segments.
// Empty segment transcripts contribute nothing.
func (t *Transcript) Append(other Transcript) {
	if other.Text == "" {
		return
	}
	if t.Text == "" {
		t.Text = other.Text
	} else {
		t.Text += " " + other.Text
	}
	t.Segments = append(t.Segments, other.Segments...)
}

// Empty reports whether the transcript carries no text at all.
func (t Transcript) Empty() bool {
	return t.Text == ""
}

// TimedChunk is one chunk of transcript text with its covered time range.
// The time range is the min start / max end of the segments the chunk
// absorbed; overlap text from the previous chunk does not widen it.
type TimedChunk struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
