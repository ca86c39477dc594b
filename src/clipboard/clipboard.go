package clipboard

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log"
	"sync"

	"golang.design/x/clipboard"
	_ "golang.org/x/image/bmp"
)

// ErrInvalidImage is returned when bytes handed to WriteImage do not decode.
var ErrInvalidImage = errors.New("clipboard: data is not a decodable image")

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// backend is the system clipboard surface used by this package.
type backend interface {
	Read(clipboard.Format) []byte
	Write(clipboard.Format, []byte)
}

type systemBackend struct{}

func (systemBackend) Read(f clipboard.Format) []byte { return clipboard.Read(f) }

func (systemBackend) Write(f clipboard.Format, b []byte) { <-clipboard.Write(f, b) }

var (
	writeMu sync.Mutex
	current backend = systemBackend{}
)

func Init() error {
	return clipboard.Init()
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	current.Write(clipboard.FmtText, []byte(text))
	return nil
}

// HasImage reports whether the clipboard currently holds an image.
func HasImage() bool {
	return len(ReadImage()) > 0
}

// ReadImage returns the clipboard image as PNG, or nil when there is none.
// Images other applications left as JPEG or BMP are re-encoded.
func ReadImage() []byte {
	writeMu.Lock()
	data := current.Read(clipboard.FmtImage)
	writeMu.Unlock()
	if len(data) == 0 {
		return nil
	}
	pngData, err := toPNG(data)
	if err != nil {
		log.Printf("clipboard: unreadable image on clipboard: %v", err)
		return nil
	}
	return pngData
}

// WriteImage places data on the clipboard as PNG. JPEG and BMP input is
// re-encoded; anything else is rejected before the clipboard is touched.
func WriteImage(data []byte) error {
	pngData, err := toPNG(data)
	if err != nil {
		return err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	current.Write(clipboard.FmtImage, pngData)
	return nil
}

// Clear empties the clipboard.
func Clear() error {
	writeMu.Lock()
	defer writeMu.Unlock()
	current.Write(clipboard.FmtText, nil)
	return nil
}

func toPNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	if bytes.HasPrefix(data, pngMagic) {
		if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return data, nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("re-encode %s as png: %w", format, err)
	}
	return buf.Bytes(), nil
}
