package media

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
)

// Collection names a group of attachments on an owner and the files it accepts.
type Collection struct {
	Name string
	// Single collections hold at most one file; storing replaces the previous one.
	Single bool
	// MimeTypes lists the accepted sniffed types; empty accepts anything.
	MimeTypes []string
	// MaxSize overrides the service wide limit when positive.
	MaxSize int64
}

var ImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Source is the content of a new attachment: an uploaded file or a base64 payload.
type Source struct {
	FileName string
	Reader   io.Reader
	Base64   string
}

// SourceFromFile opens a multipart upload.
func SourceFromFile(fh *multipart.FileHeader) (Source, error) {
	f, err := fh.Open()
	if err != nil {
		return Source{}, internal.NewValidationFieldError("file", "The %s is invalid.", internal.ErrCodeInvalidFile).WithCause(err)
	}
	return Source{FileName: fh.Filename, Reader: f}, nil
}

// Options are extra settings of an attach call.
type Options struct {
	// Name is the display name; defaults to the file name without extension.
	Name       string
	Properties map[string]any
}

// payload is a source read into memory and checked against its collection.
type payload struct {
	fileName string
	mimeType string
	data     []byte
}

// read decodes and sniffs src. Failures are field errors under pointer.
func read(src Source, coll Collection, maxSize int64, pointer string) (*payload, *internal.ValidationError) {
	if coll.MaxSize > 0 {
		maxSize = coll.MaxSize
	}

	name := SanitizeFileName(src.FileName)
	if name == "" {
		if strings.TrimSpace(src.FileName) != "" {
			return nil, fileError(pointer+"/filename", "INVALID", "The %s is invalid.", "filename")
		}
		return nil, fileError(pointer+"/filename", "REQUIRED", "The %s field is required.", "filename")
	}

	var data []byte
	switch {
	case src.Reader != nil:
		if c, ok := src.Reader.(io.Closer); ok {
			defer func() { _ = c.Close() }()
		}
		b, err := io.ReadAll(io.LimitReader(src.Reader, maxSize+1))
		if err != nil {
			return nil, fileError(pointer, string(internal.ErrCodeInvalidFile), "The %s is invalid.", "file")
		}
		data = b
	case src.Base64 != "":
		b, err := decodeBase64(src.Base64)
		if err != nil {
			return nil, fileError(pointer+"/content", string(internal.ErrCodeInvalidFile), "The base64 content could not be decoded.")
		}
		data = b
	default:
		return nil, fileError(pointer, "REQUIRED", "A file or a base64 payload with a filename is required.")
	}

	if int64(len(data)) > maxSize {
		return nil, fileError(pointer, "MAX_SIZE", "The file may not be greater than %d bytes.", maxSize)
	}

	mt := DetectMimeType(data)
	if len(coll.MimeTypes) > 0 && !slices.Contains(coll.MimeTypes, mt) {
		return nil, fileError(pointer, "MIME_TYPE", "The file type %s is not allowed.", mt)
	}

	return &payload{fileName: name, mimeType: mt, data: data}, nil
}

func (p *payload) reader() io.Reader { return bytes.NewReader(p.data) }

// decodeBase64 accepts plain base64 and data URIs.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// DetectMimeType sniffs data and drops media type parameters.
func DetectMimeType(data []byte) string {
	detected := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(detected); err == nil {
		return mt
	}
	return detected
}

// SanitizeFileName keeps the base name and replaces characters unsafe in paths and archives.
// Names made only of dots come back empty.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if strings.Trim(name, ". ") == "" || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '-'
		}
		return r
	}, name)
}

// renamed returns the file name that goes with the display name, keeping the extension.
// An empty result means the display name cannot name a file.
func renamed(displayName, current string) string {
	ext := path.Ext(current)
	name := SanitizeFileName(displayName)
	if name == "" {
		return ""
	}
	if ext != "" && !strings.EqualFold(path.Ext(name), ext) {
		name += ext
	}
	return name
}

func baseName(fileName string) string {
	return strings.TrimSuffix(fileName, path.Ext(fileName))
}

func fileError(pointer, code, message string, args ...any) *internal.ValidationError {
	return &internal.ValidationError{
		Field:   path.Base(pointer),
		Message: message,
		Args:    args,
		Code:    code,
		Pointer: pointer,
	}
}
