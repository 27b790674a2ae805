package embedding

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// imageInputSize is the square side length expected by the vision encoder.
const imageInputSize = 224

// CLIP-style per-channel normalization constants.
var (
	imageMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	imageStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// PreprocessImage decodes the image at path, resizes it to the encoder's
// input size, and returns normalized pixel data in CHW order
// (3 * imageInputSize * imageInputSize floats).
func PreprocessImage(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return pixelsCHW(img), nil
}

// pixelsCHW samples img at imageInputSize^2 points and normalizes each
// channel. Nearest-neighbor sampling is enough here: the encoder is robust to
// resampling quality and this avoids an interpolation dependency.
func pixelsCHW(img image.Image) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := imageInputSize * imageInputSize
	out := make([]float32, 3*plane)
	for y := 0; y < imageInputSize; y++ {
		srcY := bounds.Min.Y + y*h/imageInputSize
		for x := 0; x < imageInputSize; x++ {
			srcX := bounds.Min.X + x*w/imageInputSize
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			i := y*imageInputSize + x
			out[i] = (float32(r)/65535 - imageMean[0]) / imageStd[0]
			out[plane+i] = (float32(g)/65535 - imageMean[1]) / imageStd[1]
			out[2*plane+i] = (float32(b)/65535 - imageMean[2]) / imageStd[2]
		}
	}
	return out
}
