package gdi

import "image"

// FromBGRA copies a top-down 32bpp BGRA buffer into a new RGBA image.
func FromBGRA(src []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := width * height * 4
	if len(src) < n {
		n = len(src) - len(src)%4
	}
	for i := 0; i < n; i += 4 {
		img.Pix[i] = src[i+2]
		img.Pix[i+1] = src[i+1]
		img.Pix[i+2] = src[i]
		img.Pix[i+3] = src[i+3]
	}
	return img
}

// ToBGRARect writes the pixels of img inside r into a top-down 32bpp BGRA
// buffer of the same size as img, leaving the rest of dst untouched. It
// returns r clipped to the image. img must have a zero origin.
func ToBGRARect(dst []byte, img *image.RGBA, r image.Rectangle) image.Rectangle {
	r = r.Intersect(img.Bounds())
	w := img.Bounds().Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := img.Pix[y*img.Stride+r.Min.X*4 : y*img.Stride+r.Max.X*4]
		out := dst[(y*w+r.Min.X)*4 : (y*w+r.Max.X)*4]
		for i := 0; i < len(row); i += 4 {
			out[i] = row[i+2]
			out[i+1] = row[i+1]
			out[i+2] = row[i]
			out[i+3] = row[i+3]
		}
	}
	return r
}

// ForceOpaque sets alpha to 255 when no pixel carries alpha. GDI leaves the
// alpha byte zero for most window content.
func ForceOpaque(img *image.RGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return
		}
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}
