package ocr

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Preprocess converts img to grayscale and upscales it 2× with Lanczos
// resampling, returning a single-channel image ready for recognition.
func Preprocess(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := imaging.Grayscale(img)
	scaled := imaging.Resize(gray, b.Dx()*2, b.Dy()*2, imaging.Lanczos)

	out := image.NewGray(scaled.Bounds())
	draw.Draw(out, out.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	return out
}
