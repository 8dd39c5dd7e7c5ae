package trainer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

var (
	// ErrUnknownFormat indicates a JSON file that is not a chat export.
	ErrUnknownFormat = errors.New("unrecognized export format")
	// ErrNoExports indicates an empty training directory.
	ErrNoExports = errors.New("no exports found")
)

// minContentLength drops reactions like "ok" that say nothing about style.
const minContentLength = 3

// ExportMessage is one message of a DiscordChatExporter JSON export.
type ExportMessage struct {
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Content   string       `json:"content"`
	Author    ExportAuthor `json:"author"`
}

// ExportAuthor is the author block of an exported message.
type ExportAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Export is a parsed chat export.
type Export struct {
	Channel  string
	Messages []ExportMessage
}

type exportFile struct {
	Channel struct {
		Name string `json:"name"`
	} `json:"channel"`
	Messages *[]ExportMessage `json:"messages"`
}

// ParseExport decodes an export. Both the full exporter document and a bare
// array of messages are accepted.
func ParseExport(data []byte) (*Export, error) {
	data = bytes.TrimSpace(data)

	if bytes.HasPrefix(data, []byte("[")) {
		var messages []ExportMessage
		if err := sonic.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownFormat, err)
		}

		return &Export{Messages: messages}, nil
	}

	var file exportFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownFormat, err)
	}

	if file.Messages == nil {
		return nil, fmt.Errorf("%w: missing messages", ErrUnknownFormat)
	}

	return &Export{Channel: file.Channel.Name, Messages: *file.Messages}, nil
}

// LoadExport reads and parses one export file.
func LoadExport(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	return ParseExport(data)
}

// UserMessages returns the trimmed texts written by one user.
func (e *Export) UserMessages(userID string) []string {
	var texts []string

	for _, msg := range e.Messages {
		if msg.Author.ID != userID {
			continue
		}

		content := strings.TrimSpace(msg.Content)
		if utf8.RuneCountInString(content) < minContentLength {
			continue
		}

		texts = append(texts, content)
	}

	return texts
}

// LoadDir collects the messages of a user from every export in dir. Files
// that fail to parse are logged and skipped.
func LoadDir(dir, userID string, logger *zap.Logger) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoExports, dir)
	}

	slices.Sort(files)

	var texts []string
	for _, path := range files {
		export, err := LoadExport(path)
		if err != nil {
			logger.Warn("Skipping export", zap.String("file", filepath.Base(path)), zap.Error(err))
			continue
		}

		found := export.UserMessages(userID)
		logger.Info("Processed export",
			zap.String("file", filepath.Base(path)),
			zap.String("channel", export.Channel),
			zap.Int("messages", len(found)))

		texts = append(texts, found...)
	}

	return texts, nil
}
