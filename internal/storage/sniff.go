package storage

import (
	"bytes"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

var ErrUnsupportedType = errors.New("unsupported file type")

var allowedTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"application/pdf": ".pdf",
}

// Sniff detects the content type of r from its leading bytes and returns a
// reader that still yields the full content.
func Sniff(r io.Reader) (contentType, ext string, body io.Reader, err error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", nil, err
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	for m := mt; m != nil; m = m.Parent() {
		if e, ok := allowedTypes[m.String()]; ok {
			return m.String(), e, io.MultiReader(bytes.NewReader(head), r), nil
		}
	}
	return mt.String(), mt.Extension(), nil, ErrUnsupportedType
}
