package gdi

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeReleasesInReverseOrder(t *testing.T) {
	var order []int
	s := NewScope()
	for i := 1; i <= 3; i++ {
		i := i
		s.Defer(func() { order = append(order, i) })
	}
	s.Release()
	s.Release()
	assert.Equal(t, []int{3, 2, 1}, order)

	s.Defer(func() { order = append(order, 4) })
	assert.Equal(t, []int{3, 2, 1, 4}, order)
}

func TestBGRARoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	copy(img.Pix, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	buf := make([]byte, 8)
	ToBGRARect(buf, img, img.Bounds())
	assert.Equal(t, []byte{3, 2, 1, 4, 7, 6, 5, 8}, buf)

	back := FromBGRA(buf, 2, 1)
	assert.Equal(t, img.Pix, back.Pix)
}

func TestForceOpaque(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	ForceOpaque(img)
	for i := 3; i < len(img.Pix); i += 4 {
		assert.Equal(t, uint8(0xff), img.Pix[i])
	}

	img = image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Pix[3] = 10
	ForceOpaque(img)
	assert.Equal(t, uint8(0), img.Pix[7], "existing alpha is kept")
}

func TestToBGRARectTouchesOnlyDirtyArea(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	buf := make([]byte, len(img.Pix))
	for i := range buf {
		buf[i] = 0xEE
	}

	got := ToBGRARect(buf, img, image.Rect(1, 1, 10, 10))
	assert.Equal(t, image.Rect(1, 1, 3, 2), got, "dirty area is clipped to the frame")
	assert.Equal(t, []byte{18, 17, 16, 19, 22, 21, 20, 23}, buf[16:24])
	for i := 0; i < 16; i++ {
		assert.Equal(t, byte(0xEE), buf[i], "byte %d outside the dirty area changed", i)
	}

	assert.True(t, ToBGRARect(buf, img, image.Rect(5, 5, 8, 8)).Empty())
}
