package fingerprint

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/fogleman/gg"

	"github.com/DovakiinZ/Sin-City-sub001/pkg/hash"
)

// Canvas renders text onto an off-screen bitmap and serializes it as a data URL.
type Canvas interface {
	DataURL(text string, width, height int) (string, error)
}

// CanvasChecksum renders CanvasText and hashes the resulting data URL. A nil
// canvas yields NoCanvas; an error or panic yields CanvasError.
func CanvasChecksum(c Canvas) (checksum string) {
	if c == nil {
		return NoCanvas
	}
	defer func() {
		if r := recover(); r != nil {
			checksum = CanvasError
		}
	}()

	url, err := c.DataURL(CanvasText, CanvasWidth, CanvasHeight)
	if err != nil || url == "" {
		return CanvasError
	}
	return hash.RollingHex(url)
}

// GGCanvas draws with fogleman/gg using its built-in bitmap font, so output
// only depends on the gg and image/png versions in use.
type GGCanvas struct{}

func (GGCanvas) DataURL(text string, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", errors.New("canvas: invalid dimensions")
	}

	dc := gg.NewContext(width, height)
	dc.SetHexColor("#f60")
	dc.DrawRectangle(125, 1, 62, 20)
	dc.Fill()
	dc.SetHexColor("#069")
	dc.DrawString(text, 2, 15)
	dc.SetRGBA(102.0/255, 204.0/255, 0, 0.7)
	dc.DrawString(text, 4, 17)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return "", fmt.Errorf("canvas: encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
