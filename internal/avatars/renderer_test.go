package avatars

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	red         = color.NRGBA{R: 0xff, A: 0xff}
	blue        = color.NRGBA{B: 0xff, A: 0xff}
	transparent = color.NRGBA{}
)

func createSkin(t *testing.T, width int, height int, paint func(img *image.NRGBA)) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	paint(img)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func fill(img *image.NRGBA, rect image.Rectangle, c color.NRGBA) {
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

func decode(t *testing.T, data []byte) *image.NRGBA {
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, OutputSize, OutputSize), img.Bounds())

	result := image.NewNRGBA(img.Bounds())
	draw.Draw(result, result.Bounds(), img, image.Point{}, draw.Src)

	return result
}

func TestFaceRect(t *testing.T) {
	require.Equal(t, image.Rect(8, 8, 16, 16), FaceRect(64))
	require.Equal(t, image.Rect(4, 4, 8, 8), FaceRect(32))
	require.Equal(t, image.Rect(16, 16, 32, 32), FaceRect(128))
	require.Equal(t, image.Rect(40, 8, 48, 16), OverlayRect(64))
	require.Equal(t, image.Rect(80, 16, 96, 32), OverlayRect(128))
}

func TestRenderer_Render(t *testing.T) {
	renderer := &Renderer{}

	t.Run("64x64 skin with overlay", func(t *testing.T) {
		skin := createSkin(t, 64, 64, func(img *image.NRGBA) {
			fill(img, image.Rect(0, 0, 64, 64), blue)
			fill(img, image.Rect(8, 8, 16, 16), red)
			fill(img, image.Rect(40, 8, 48, 16), transparent)
			img.SetNRGBA(40, 8, blue)
		})

		result, err := renderer.Render(skin, 64, 64)
		require.NoError(t, err)

		avatar := decode(t, result)
		// Every source pixel becomes a 16x16 block
		require.Equal(t, blue, avatar.NRGBAAt(0, 0))
		require.Equal(t, blue, avatar.NRGBAAt(15, 15))
		require.Equal(t, red, avatar.NRGBAAt(16, 16))
		require.Equal(t, red, avatar.NRGBAAt(127, 127))
	})

	t.Run("overlay with partial alpha is blended", func(t *testing.T) {
		skin := createSkin(t, 64, 64, func(img *image.NRGBA) {
			fill(img, image.Rect(8, 8, 16, 16), red)
			fill(img, image.Rect(40, 8, 48, 16), color.NRGBA{B: 0xff, A: 0x80})
		})

		result, err := renderer.Render(skin, 64, 64)
		require.NoError(t, err)

		pixel := decode(t, result).NRGBAAt(64, 64)
		require.InDelta(t, 0x7f, int(pixel.R), 1)
		require.InDelta(t, 0x80, int(pixel.B), 1)
		require.Equal(t, uint8(0xff), pixel.A)
	})

	t.Run("32x32 skin uses the scaled face", func(t *testing.T) {
		skin := createSkin(t, 32, 32, func(img *image.NRGBA) {
			fill(img, image.Rect(0, 0, 32, 32), blue)
			fill(img, image.Rect(4, 4, 8, 8), red)
		})

		result, err := renderer.Render(skin, 32, 32)
		require.NoError(t, err)

		avatar := decode(t, result)
		require.Equal(t, red, avatar.NRGBAAt(0, 0))
		require.Equal(t, red, avatar.NRGBAAt(127, 127))
	})

	t.Run("64x32 legacy skin has no overlay", func(t *testing.T) {
		skin := createSkin(t, 64, 32, func(img *image.NRGBA) {
			fill(img, image.Rect(8, 8, 16, 16), red)
			fill(img, image.Rect(40, 8, 48, 16), blue)
		})

		result, err := renderer.Render(skin, 64, 32)
		require.NoError(t, err)

		avatar := decode(t, result)
		require.Equal(t, red, avatar.NRGBAAt(0, 0))
		require.Equal(t, red, avatar.NRGBAAt(64, 64))
	})

	t.Run("128x128 skin", func(t *testing.T) {
		skin := createSkin(t, 128, 128, func(img *image.NRGBA) {
			fill(img, image.Rect(16, 16, 32, 32), red)
			img.SetNRGBA(80, 16, blue)
		})

		result, err := renderer.Render(skin, 128, 128)
		require.NoError(t, err)

		avatar := decode(t, result)
		require.Equal(t, blue, avatar.NRGBAAt(0, 0))
		require.Equal(t, red, avatar.NRGBAAt(8, 8))
	})

	t.Run("rendering is deterministic", func(t *testing.T) {
		skin := createSkin(t, 64, 64, func(img *image.NRGBA) {
			fill(img, image.Rect(8, 8, 16, 16), red)
		})

		first, err := renderer.Render(skin, 0, 0)
		require.NoError(t, err)
		second, err := renderer.Render(skin, 64, 64)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("not an image", func(t *testing.T) {
		result, err := renderer.Render([]byte("definitely not a png"), 64, 64)
		require.ErrorIs(t, err, InvalidTextureImage)
		require.Nil(t, result)
	})

	t.Run("dimensions don't match the image", func(t *testing.T) {
		skin := createSkin(t, 64, 32, func(img *image.NRGBA) {})

		_, err := renderer.Render(skin, 64, 64)
		require.ErrorIs(t, err, InvalidTextureImage)
	})

	t.Run("degenerate dimensions", func(t *testing.T) {
		skin := createSkin(t, 64, 64, func(img *image.NRGBA) {})

		_, err := renderer.Render(skin, 0, 64)
		require.ErrorIs(t, err, InvalidTextureImage)
	})

	t.Run("image is too small", func(t *testing.T) {
		skin := createSkin(t, 1, 1, func(img *image.NRGBA) {})

		_, err := renderer.Render(skin, 1, 1)
		require.ErrorIs(t, err, InvalidTextureImage)
	})
}
