package train

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"

	"github.com/drift-ml/drift/internal/tensor"
)

// Grid layout constants: 8 tiles per row with 2px separators.
const (
	gridColumns = 8
	gridPadding = 2
	jpegQuality = 85
)

// SaveImageGrid tiles every frame of a sampled clip batch into one
// JPEG. clips is [count, channels, frames, height, width] uint8; the
// frames are laid out row-major, gridColumns per row, on a black
// canvas with gridPadding pixels between and around the cells.
func SaveImageGrid[B tensor.Backend](path string, clips *tensor.Tensor[uint8, B]) error {
	img, err := renderGrid(clips)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("images: %w", err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		out.Close()
		return fmt.Errorf("images: encode %s: %w", path, err)
	}
	return out.Close()
}

// renderGrid draws the frame tiles onto a single canvas.
func renderGrid[B tensor.Backend](clips *tensor.Tensor[uint8, B]) (image.Image, error) {
	shape := clips.Shape()
	if len(shape) != 5 {
		return nil, fmt.Errorf("images: clips must be 5D [N,C,F,H,W], got shape %v", shape)
	}
	count, channels, frames, height, width := shape[0], shape[1], shape[2], shape[3], shape[4]
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("images: cannot render %d-channel frames (want 1 or 3)", channels)
	}

	tiles := count * frames
	cols := gridColumns
	if tiles < cols {
		cols = tiles
	}
	rows := (tiles + cols - 1) / cols

	canvas := image.NewRGBA(image.Rect(0, 0,
		cols*(width+gridPadding)+gridPadding,
		rows*(height+gridPadding)+gridPadding))

	data := clips.Raw().AsUint8()
	frameVol := height * width

	for tile := 0; tile < tiles; tile++ {
		n := tile / frames
		f := tile % frames
		originX := gridPadding + (tile%cols)*(width+gridPadding)
		originY := gridPadding + (tile/cols)*(height+gridPadding)
		base := n * channels * frames * frameVol

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pixel := y*width + x
				var c color.RGBA
				if channels == 1 {
					v := data[base+f*frameVol+pixel]
					c = color.RGBA{R: v, G: v, B: v, A: 255}
				} else {
					c = color.RGBA{
						R: data[base+(0*frames+f)*frameVol+pixel],
						G: data[base+(1*frames+f)*frameVol+pixel],
						B: data[base+(2*frames+f)*frameVol+pixel],
						A: 255,
					}
				}
				canvas.SetRGBA(originX+x, originY+y, c)
			}
		}
	}
	return canvas, nil
}
