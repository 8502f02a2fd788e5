package video

// Rotate returns a copy of f rotated clockwise by a multiple of 90 degrees.
// Other angles (and 0) return f unchanged.
func Rotate(f Frame, deg int) Frame {
	r := ((deg % 360) + 360) % 360
	switch r {
	case 90:
		return rotate90(f)
	case 180:
		return rotate90(rotate90(f))
	case 270:
		return rotate90(rotate90(rotate90(f)))
	default:
		return f
	}
}

// rotate90 rotates clockwise: destination (x, y) reads source (y, H-1-x).
func rotate90(f Frame) Frame {
	if f.Empty() {
		return f
	}
	out := Frame{
		Width:  f.Height,
		Height: f.Width,
		Stride: f.Height * 3,
	}
	out.Pix = make([]byte, out.Height*out.Stride)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			sx := y
			sy := f.Height - 1 - x
			si := sy*f.Stride + sx*3
			di := y*out.Stride + x*3
			copy(out.Pix[di:di+3], f.Pix[si:si+3])
		}
	}
	return out
}
