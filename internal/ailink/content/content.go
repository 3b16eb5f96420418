package content

// ContentType identifies a content block using IANA media types.
type ContentType string

const (
	ContentTypeText ContentType = "text/plain"
	// ContentTypeImage blocks carry an image reference in URL, either an
	// http(s) URL or a base64 data URL.
	ContentTypeImage ContentType = "image/*"
)

// ContentBlock is a single piece of message content.
type ContentBlock struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
	URL  string      `json:"url,omitempty"`
}

// Message is a chat message.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Text builds a text block.
func Text(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// Image builds an image block.
func Image(url string) ContentBlock {
	return ContentBlock{Type: ContentTypeImage, URL: url}
}

// UserMessage builds a user message with images first and the prompt last.
func UserMessage(imageURLs []string, prompt string) Message {
	blocks := make([]ContentBlock, 0, len(imageURLs)+1)
	for _, url := range imageURLs {
		blocks = append(blocks, Image(url))
	}
	blocks = append(blocks, Text(prompt))
	return Message{Role: "user", Content: blocks}
}

// JoinText concatenates the text blocks.
func JoinText(blocks []ContentBlock) string {
	var out string
	for _, b := range blocks {
		if b.Type == ContentTypeText {
			out += b.Text
		}
	}
	return out
}
