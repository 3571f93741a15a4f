package avatars

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
)

// OutputSize is the side of the rendered head in pixels
const OutputSize = 128

var InvalidTextureImage = errors.New("invalid texture image")

// Canonical skin geometry for a 64 pixels wide texture
var (
	faceRegion    = image.Rect(8, 8, 16, 16)
	overlayRegion = image.Rect(40, 8, 48, 16)
)

type Renderer struct {
}

// Render builds the head thumbnail from the skin image. The width and height are the
// dimensions recorded for the texture; zero values mean "take them from the image".
func (r *Renderer) Render(src []byte, width int, height int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Join(InvalidTextureImage, err)
	}

	bounds := img.Bounds()
	if width == 0 && height == 0 {
		width, height = bounds.Dx(), bounds.Dy()
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: degenerate size %dx%d", InvalidTextureImage, width, height)
	}

	if width != bounds.Dx() || height != bounds.Dy() {
		return nil, fmt.Errorf("%w: expected %dx%d, got %dx%d", InvalidTextureImage, width, height, bounds.Dx(), bounds.Dy())
	}

	head, err := composeHead(img, width, height)
	if err != nil {
		return nil, err
	}

	out := image.NewNRGBA(image.Rect(0, 0, OutputSize, OutputSize))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), head, head.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	err = png.Encode(&buf, out)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// FaceRect returns the face crop rectangle for an image of the given width
func FaceRect(width int) image.Rectangle {
	return scaleRect(faceRegion, float64(width)/64)
}

// OverlayRect returns the hat layer crop rectangle for an image of the given width
func OverlayRect(width int) image.Rectangle {
	return scaleRect(overlayRegion, float64(width)/64)
}

func composeHead(img image.Image, width int, height int) (*image.NRGBA, error) {
	origin := img.Bounds().Min
	faceRect := FaceRect(width)
	if faceRect.Empty() || !faceRect.In(image.Rect(0, 0, width, height)) {
		return nil, fmt.Errorf("%w: the image is too small", InvalidTextureImage)
	}

	face := crop(img, faceRect.Add(origin))
	if height < 64 {
		return face, nil
	}

	overlayRect := OverlayRect(width)
	if overlayRect.Empty() || !overlayRect.In(image.Rect(0, 0, width, height)) {
		return face, nil
	}

	overlay := crop(img, overlayRect.Add(origin))
	if overlay.Bounds().Size() != face.Bounds().Size() {
		resized := image.NewNRGBA(face.Bounds())
		xdraw.NearestNeighbor.Scale(resized, resized.Bounds(), overlay, overlay.Bounds(), xdraw.Src, nil)
		overlay = resized
	}

	// The overlay pixels replace the face pixels in the proportion of their own alpha
	opaque, mask := splitAlpha(overlay)
	draw.DrawMask(face, face.Bounds(), opaque, image.Point{}, mask, image.Point{}, draw.Over)

	return face, nil
}

func crop(img image.Image, rect image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)

	return dst
}

func splitAlpha(img *image.NRGBA) (*image.RGBA, *image.Alpha) {
	bounds := img.Bounds()
	opaque := image.NewRGBA(bounds)
	mask := image.NewAlpha(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			opaque.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
			mask.SetAlpha(x, y, color.Alpha{A: c.A})
		}
	}

	return opaque, mask
}

func scaleRect(rect image.Rectangle, scale float64) image.Rectangle {
	return image.Rect(
		int(math.Round(float64(rect.Min.X)*scale)),
		int(math.Round(float64(rect.Min.Y)*scale)),
		int(math.Round(float64(rect.Max.X)*scale)),
		int(math.Round(float64(rect.Max.Y)*scale)),
	)
}
