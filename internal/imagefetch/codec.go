package imagefetch

import (
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
)

type encodeFunc func(w io.Writer, img image.Image) error

// encoders lists the formats an image can be normalized to. Importing the
// codec packages also registers their decoders with image.Decode.
var encoders = map[string]encodeFunc{
	"jpeg": encodeJPEG,
	"jpg":  encodeJPEG,
	"png":  png.Encode,
	"gif": func(w io.Writer, img image.Image) error {
		return gif.Encode(w, img, nil)
	},
}

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
}
