package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"runtime"
)

const iconSize = 32

var (
	frameColor  = color.RGBA{R: 0, G: 120, B: 215, A: 255}
	handleColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	fillColor   = color.RGBA{R: 0, G: 120, B: 215, A: 60}
)

// renderIcon draws a dashed selection frame with corner handles.
func renderIcon(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	inset := size / 8
	frame := image.Rect(inset, inset, size-inset, size-inset)
	draw.Draw(img, frame, image.NewUniform(fillColor), image.Point{}, draw.Src)

	dash := size / 8
	for x := frame.Min.X; x < frame.Max.X; x++ {
		if (x/dash)%2 == 0 {
			img.SetRGBA(x, frame.Min.Y, frameColor)
			img.SetRGBA(x, frame.Max.Y-1, frameColor)
		}
	}
	for y := frame.Min.Y; y < frame.Max.Y; y++ {
		if (y/dash)%2 == 0 {
			img.SetRGBA(frame.Min.X, y, frameColor)
			img.SetRGBA(frame.Max.X-1, y, frameColor)
		}
	}

	h := size / 8
	for _, c := range []image.Point{frame.Min, {frame.Max.X, frame.Min.Y}, {frame.Min.X, frame.Max.Y}, frame.Max} {
		r := image.Rect(c.X-h/2-1, c.Y-h/2-1, c.X+h/2+1, c.Y+h/2+1).Intersect(img.Bounds())
		draw.Draw(img, r, image.NewUniform(frameColor), image.Point{}, draw.Src)
		draw.Draw(img, r.Inset(1), image.NewUniform(handleColor), image.Point{}, draw.Src)
	}
	return img
}

// wrapICO wraps PNG data in a single-image ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	buf.Write([]byte{dim, dim, 0, 0})
	binary.Write(&buf, binary.LittleEndian, [2]uint16{1, 32})
	binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(len(pngData)), 22})
	buf.Write(pngData)
	return buf.Bytes()
}

// iconData returns the tray icon in the format the platform tray expects.
func iconData() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, renderIcon(iconSize)); err != nil {
		return nil, err
	}
	if runtime.GOOS == "windows" {
		return wrapICO(buf.Bytes(), iconSize), nil
	}
	return buf.Bytes(), nil
}
