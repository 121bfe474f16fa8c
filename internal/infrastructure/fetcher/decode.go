package fetcher

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/DRSN-tech/visual-matcher/pkg/e"
)

// DecodeUpload декодирует байты изображения и приводит результат к трёхканальному RGB.
func DecodeUpload(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, e.Wrap(err.Error(), e.ErrDecodeFailed)
	}

	return flattenToRGB(img), nil
}

// flattenToRGB приводит изображение к непрозрачному RGB независимо от исходного режима:
// палитровые изображения и изображения с альфа-каналом компонуются на белый фон
// по альфа-каналу, остальные режимы конвертируются напрямую.
func flattenToRGB(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src.(type) {
	case *image.Paletted, *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	default:
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}

	return dst
}
