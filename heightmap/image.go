package heightmap

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Image renders the texture of the block as a grayscale image scaled to
// width x height. Values are normalized to the maximum of the texture and
// low frequencies are at the bottom.
func (b *Block) Image(width, height int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	b.Texture(func(t *Texture) {
		if t == nil || t.Width == 0 || t.Height == 0 {
			return
		}
		var peak float32
		for _, v := range t.Data {
			if v > peak {
				peak = v
			}
		}
		src := image.NewGray(image.Rect(0, 0, t.Width, t.Height))
		if peak > 0 {
			for y := 0; y < t.Height; y++ {
				row := t.Data[y*t.Width : (y+1)*t.Width]
				for x, v := range row {
					if v < 0 {
						v = 0
					}
					src.SetGray(x, t.Height-1-y, color.Gray{Y: uint8(v / peak * 255)})
				}
			}
		}
		if src.Bounds() == dst.Bounds() {
			draw.Copy(dst, image.Point{}, src, src.Bounds(), draw.Src, nil)
			return
		}
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	})
	return dst
}
