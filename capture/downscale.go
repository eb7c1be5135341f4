package capture

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/deletexiumu/screen-analyzer/models"
)

// downscale resizes img to fit within the resolution policy's long-edge
// target, preserving aspect ratio. It never upscales: a source already
// smaller than the target, or policy "original", is returned unchanged.
func downscale(img image.Image, policy models.ResolutionPolicy) image.Image {
	target, ok := resolutionTargets[policy]
	if !ok {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longEdge := w
	if h > longEdge {
		longEdge = h
	}
	if longEdge <= target {
		return img
	}

	scale := float64(target) / float64(longEdge)
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
