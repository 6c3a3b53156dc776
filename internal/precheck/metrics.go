package precheck

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// LaplacianVariance is the variance of the 4-neighbour Laplacian over the
// interior pixels. Low values mean few edges, which in a phone photo of a
// glass almost always means motion blur or a missed focus.
func LaplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	data := make([]float64, 0, (width-2)*(height-2))
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	return stat.Variance(data, nil)
}
