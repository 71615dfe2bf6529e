package model

// Document is a previously fetched transcript: a JSON object whose key order is kept.
type Document struct {
	Keys   []string
	Fields map[string]any
}

// TextMode selects how transcript text is rendered.
type TextMode string

const (
	TextBlock      TextMode = "block"
	TextSentences  TextMode = "sentences"
	TextParagraphs TextMode = "paragraphs"
)

// Filename is where a rendered text view is saved.
func (m TextMode) Filename() string {
	switch m {
	case TextSentences:
		return "sentences.json"
	case TextParagraphs:
		return "paragraphs.json"
	}
	return "text.json"
}

// Segment is one indexed piece of transcript text.
type Segment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// TextView is either a single block of text or indexed segments.
type TextView struct {
	Mode     TextMode  `json:"mode"`
	Text     string    `json:"text,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}
