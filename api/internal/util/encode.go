package util

import (
	"encoding/base64"
	"fmt"
	"io"
)

// Payload is an image prepared for embedding in a request body.
type Payload struct {
	Data     string // base64, standard alphabet
	MIMEType string
	Size     int
}

func (p Payload) DataURL() string {
	return MakeDataURL(p.MIMEType, p.Data)
}

// EncodeImage reads the whole image into memory and base64-encodes it.
// Screenshots are small, so no streaming is attempted.
func EncodeImage(r io.Reader, declaredMIME string) (Payload, error) {
	if r == nil {
		return Payload{}, fmt.Errorf("encode image: nil reader")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, fmt.Errorf("encode image: %w", err)
	}
	return Payload{
		Data:     base64.StdEncoding.EncodeToString(b),
		MIMEType: PickMIME(declaredMIME, "", b),
		Size:     len(b),
	}, nil
}
