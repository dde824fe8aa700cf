package analysis

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"
)

// thumbnailMax bounds the longer edge of history thumbnails.
const thumbnailMax = 128

// thumbnail downscales an image and returns it as base64 JPEG. Best effort:
// an undecodable image yields an empty thumbnail, never an error, so a
// history entry is kept even when the preview cannot be.
func thumbnail(data []byte) string {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return ""
	}
	scale := 1.0
	if w > h {
		if w > thumbnailMax {
			scale = float64(thumbnailMax) / float64(w)
		}
	} else {
		if h > thumbnailMax {
			scale = float64(thumbnailMax) / float64(h)
		}
	}
	tw := int(float64(w) * scale)
	th := int(float64(h) * scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	// Nearest-neighbor is plenty for a 128px preview.
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	for y := 0; y < th; y++ {
		sy := bounds.Min.Y + y*h/th
		for x := 0; x < tw; x++ {
			sx := bounds.Min.X + x*w/tw
			dst.Set(x, y, src.At(sx, sy))
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 70}); err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
