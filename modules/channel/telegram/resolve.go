package telegram

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/flemzord/majlis/pkg/message"
)

// downloadMedia replaces tg://file_id/ references in media blocks with the
// file bytes. Missing MIME types and file names are inferred from the
// Telegram file path.
func downloadMedia(ctx context.Context, client *Client, msg *message.InboundMessage, limit int64) error {
	for i := range msg.Blocks {
		block := &msg.Blocks[i]
		if !block.IsMedia() || !strings.HasPrefix(block.URL, fileIDPrefix) {
			continue
		}

		fileID := strings.TrimPrefix(block.URL, fileIDPrefix)
		file, err := client.GetFile(ctx, fileID)
		if err != nil {
			return fmt.Errorf("telegram: resolve file %s: %w", fileID, err)
		}
		if file.FileSize > limit {
			return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, file.FileSize)
		}

		data, err := client.Download(ctx, file.FilePath, limit)
		if err != nil {
			return err
		}
		block.Data = data
		if block.MIMEType == "" {
			block.MIMEType = guessMIME(block.Type, file.FilePath)
		}
		if block.FileName == "" && block.Type == message.BlockFile {
			block.FileName = path.Base(file.FilePath)
		}
	}
	return nil
}

// guessMIME infers a MIME type from the file extension, falling back to a
// per-kind default.
func guessMIME(kind message.BlockType, filePath string) string {
	ext := strings.ToLower(path.Ext(filePath))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".oga", ".ogg":
		return "audio/ogg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		t, _, _ = strings.Cut(t, ";")
		return t
	}
	switch kind {
	case message.BlockImage:
		return "image/jpeg"
	case message.BlockAudio:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
