// Package imaging normalizes uploaded images into web-ready JPEG renditions:
// bounded-size optimized originals and fixed-size square thumbnails.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"path/filepath"
	"strings"

	// Registered decoders for the accepted upload formats.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ContentTypeJPEG is the content type of every rendition produced here.
const ContentTypeJPEG = "image/jpeg"

var (
	// ErrDecode is matched by every DecodeError.
	ErrDecode = errors.New("imaging: cannot decode image")

	// ErrTooSmall is matched by a DimensionError for an undersized image.
	ErrTooSmall = errors.New("imaging: image below minimum dimensions")

	// ErrTooLarge is matched by a DimensionError for an image whose declared
	// canvas exceeds the pixel limit.
	ErrTooLarge = errors.New("imaging: image above maximum pixel count")
)

// DecodeLimit caps the pixel count Optimize and Thumbnail will decode,
// whatever the caller's own limits are. A compressed file can declare a
// canvas far larger than its byte size.
var DecodeLimit = 8192 * 8192

// File is an in-memory image file.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the length of the file contents in bytes.
func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// Reader returns a reader over the file contents.
func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// DecodeError reports image bytes that could not be decoded.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("imaging: decode %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) hold for any DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// DimensionError reports an image smaller than the configured minimum, or
// one with more than MaxPixels pixels when MaxPixels is set.
type DimensionError struct {
	Width, Height       int
	MinWidth, MinHeight int
	MaxPixels           int
}

func (e *DimensionError) tooLarge() bool {
	return e.MaxPixels > 0 && int64(e.Width)*int64(e.Height) > int64(e.MaxPixels)
}

func (e *DimensionError) Error() string {
	if e.tooLarge() {
		return fmt.Sprintf("Image must be at most %d pixels. Uploaded image is %dx%d.",
			e.MaxPixels, e.Width, e.Height)
	}
	return fmt.Sprintf("Image must be at least %dx%d pixels. Uploaded image is %dx%d.",
		e.MinWidth, e.MinHeight, e.Width, e.Height)
}

// Is matches ErrTooLarge or ErrTooSmall depending on which bound failed.
func (e *DimensionError) Is(target error) bool {
	if e.tooLarge() {
		return target == ErrTooLarge
	}
	return target == ErrTooSmall
}

// Dimensions reads only the image header and returns width, height and format.
func Dimensions(f *File) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(f.Reader())
	if err != nil {
		return 0, 0, "", &DecodeError{Name: f.Name, Err: err}
	}
	return cfg.Width, cfg.Height, format, nil
}

// ValidateDimensions fails with a *DimensionError when the image is narrower
// than minWidth or shorter than minHeight.
func ValidateDimensions(f *File, minWidth, minHeight int) error {
	return CheckDimensions(f, minWidth, minHeight, 0)
}

// CheckDimensions is ValidateDimensions plus an upper bound on width*height.
// maxPixels <= 0 disables the upper bound. Only the header is read.
func CheckDimensions(f *File, minWidth, minHeight, maxPixels int) error {
	w, h, _, err := Dimensions(f)
	if err != nil {
		return err
	}
	dimErr := &DimensionError{Width: w, Height: h, MinWidth: minWidth, MinHeight: minHeight, MaxPixels: maxPixels}
	if dimErr.tooLarge() || w < minWidth || h < minHeight {
		return dimErr
	}
	return nil
}

// Optimize decodes f, flattens it to opaque RGB, scales it down to fit within
// maxWidth x maxHeight (never up) and re-encodes it as JPEG. The result is
// named after f with a .jpg extension.
func Optimize(f *File, maxWidth, maxHeight, quality int) (*File, error) {
	src, err := decode(f)
	if err != nil {
		return nil, err
	}

	w, h := Fit(src.Bounds().Dx(), src.Bounds().Dy(), maxWidth, maxHeight)
	out := resize(src, w, h)

	return encode(out, baseName(f.Name)+".jpg", quality)
}

// Thumbnail decodes f, scales it to fit a size x size square and centers it
// on a white canvas of exactly that size. The result is named
// "thumb_<base>.jpg".
func Thumbnail(f *File, size, quality int) (*File, error) {
	src, err := decode(f)
	if err != nil {
		return nil, err
	}

	w, h := Fit(src.Bounds().Dx(), src.Bounds().Dy(), size, size)
	fitted := resize(src, w, h)

	canvas := whiteCanvas(size, size)
	draw.Draw(canvas, centered(size, size, w, h), fitted, image.Point{}, draw.Src)

	return encode(canvas, "thumb_"+baseName(f.Name)+".jpg", quality)
}

// Fit returns the largest size with the aspect ratio of width x height that
// fits within maxWidth x maxHeight. Sizes already inside the box are
// returned unchanged.
func Fit(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}

	scale := math.Min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	w := clamp(int(math.Round(float64(width)*scale)), 1, maxWidth)
	h := clamp(int(math.Round(float64(height)*scale)), 1, maxHeight)
	return w, h
}

// centered returns the w x h rectangle centered in a canvasW x canvasH
// canvas. Odd leftover pixels go to the bottom/right margin.
func centered(canvasW, canvasH, w, h int) image.Rectangle {
	x := (canvasW - w) / 2
	y := (canvasH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func decode(f *File) (*image.RGBA, error) {
	w, h, _, err := Dimensions(f)
	if err != nil {
		return nil, err
	}
	if int64(w)*int64(h) > int64(DecodeLimit) {
		return nil, &DimensionError{Width: w, Height: h, MaxPixels: DecodeLimit}
	}

	img, _, err := image.Decode(f.Reader())
	if err != nil {
		return nil, &DecodeError{Name: f.Name, Err: err}
	}
	return flatten(img), nil
}

// flatten composites img over white, dropping alpha and palette modes.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := whiteCanvas(b.Dx(), b.Dy())
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func whiteCanvas(w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	return dst
}

func resize(src *image.RGBA, w, h int) *image.RGBA {
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func encode(img image.Image, name string, quality int) (*File, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("imaging: encode %q: %w", name, err)
	}
	return &File{Name: name, ContentType: ContentTypeJPEG, Data: buf.Bytes()}, nil
}

// baseName strips directories and the extension from name.
func baseName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
