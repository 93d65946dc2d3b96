package message

import "strings"

// ContentBlock is a flat union representing one piece of content inside a
// message. The Type field discriminates which fields are meaningful.
//
// Media blocks carry their bytes in Data once the channel has downloaded
// them; URL is the platform reference they were fetched from.
type ContentBlock struct {
	Type     BlockType `json:"type"`
	Text     string    `json:"text,omitempty"`
	URL      string    `json:"url,omitempty"`
	MIMEType string    `json:"mime_type,omitempty"`
	FileName string    `json:"file_name,omitempty"`
	Caption  string    `json:"caption,omitempty"`
	IsVoice  bool      `json:"is_voice,omitempty"`
	Data     []byte    `json:"data,omitempty"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewImageBlock creates an image content block.
func NewImageBlock(data []byte, mimeType, caption string) ContentBlock {
	return ContentBlock{Type: BlockImage, Data: data, MIMEType: mimeType, Caption: caption}
}

// NewAudioBlock creates an audio content block. Set isVoice for voice notes.
func NewAudioBlock(data []byte, mimeType string, isVoice bool) ContentBlock {
	return ContentBlock{Type: BlockAudio, Data: data, MIMEType: mimeType, IsVoice: isVoice}
}

// NewFileBlock creates a file content block.
func NewFileBlock(data []byte, mimeType, fileName string) ContentBlock {
	return ContentBlock{Type: BlockFile, Data: data, MIMEType: mimeType, FileName: fileName}
}

// IsMedia reports whether the block carries non-text content.
func (b ContentBlock) IsMedia() bool {
	return b.Type == BlockImage || b.Type == BlockAudio || b.Type == BlockFile
}

func textContent(blocks []ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func firstMedia(blocks []ContentBlock) (ContentBlock, bool) {
	for _, b := range blocks {
		if b.IsMedia() {
			return b, true
		}
	}
	return ContentBlock{}, false
}
