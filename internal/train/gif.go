package train

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"

	"github.com/drift-ml/drift/internal/tensor"
)

// gifFrameDelay is the inter-frame delay in hundredths of a second.
const gifFrameDelay = 20

// SaveGIF renders the first clip of a sampled batch as a looping
// animated GIF, one GIF frame per clip frame. Frames are quantized to
// the Plan9 palette with Floyd-Steinberg dithering.
func SaveGIF[B tensor.Backend](path string, clips *tensor.Tensor[uint8, B]) error {
	shape := clips.Shape()
	if len(shape) != 5 {
		return fmt.Errorf("gif: clips must be 5D [N,C,F,H,W], got shape %v", shape)
	}
	channels, frames, height, width := shape[1], shape[2], shape[3], shape[4]
	if channels != 1 && channels != 3 {
		return fmt.Errorf("gif: cannot render %d-channel frames (want 1 or 3)", channels)
	}

	data := clips.Raw().AsUint8()
	frameVol := height * width

	anim := &gif.GIF{}
	for f := 0; f < frames; f++ {
		frame := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pixel := y*width + x
				var c color.RGBA
				if channels == 1 {
					v := data[f*frameVol+pixel]
					c = color.RGBA{R: v, G: v, B: v, A: 255}
				} else {
					c = color.RGBA{
						R: data[(0*frames+f)*frameVol+pixel],
						G: data[(1*frames+f)*frameVol+pixel],
						B: data[(2*frames+f)*frameVol+pixel],
						A: 255,
					}
				}
				frame.SetRGBA(x, y, c)
			}
		}

		paletted := image.NewPaletted(frame.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, frame.Bounds(), frame, image.Point{})
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, gifFrameDelay)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gif: %w", err)
	}
	if err := gif.EncodeAll(out, anim); err != nil {
		out.Close()
		return fmt.Errorf("gif: encode %s: %w", path, err)
	}
	return out.Close()
}
