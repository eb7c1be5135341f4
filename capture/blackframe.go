package capture

import (
	"image"

	"golang.org/x/image/draw"
)

// thumbnailEdge is the long-edge size used for the luminance check. Small
// enough to make the scan cheap per tick, large enough that a mostly-black
// screen with a thin visible sliver isn't averaged away.
const thumbnailEdge = 64

// isBlackFrame reports whether img's average luminance, computed on a
// downsampled grayscale thumbnail, falls below threshold (0-255). A
// threshold of 0 disables the check: nothing is ever darker than 0. A
// threshold of 255 doesn't catch a pure-white screen either, since the
// comparison is strict: avg < threshold, never <=.
func isBlackFrame(img image.Image, threshold int) bool {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return true
	}

	scale := float64(thumbnailEdge) / float64(max(w, h))
	tw, th := int(float64(w)*scale), int(float64(h)*scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	thumb := image.NewGray(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(thumb, thumb.Bounds(), img, b, draw.Over, nil)

	var sum int64
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			c := thumb.GrayAt(x, y)
			sum += int64(c.Y)
		}
	}
	avg := sum / int64(tw*th)
	return avg < int64(threshold)
}
