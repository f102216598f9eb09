// Package orient models EXIF orientation as an explicit enum of the eight
// standard transforms, applied exactly once at decode time so that downstream
// planning always sees true upright dimensions.
package orient

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF orientation tag value (1-8).
type Orientation int

const (
	// TopLeft is the identity orientation: pixel data is already upright.
	TopLeft Orientation = iota + 1
	TopRight
	BottomRight
	BottomLeft
	LeftTop
	RightTop
	RightBottom
	LeftBottom
)

// Valid reports whether o is one of the eight standard transforms.
func (o Orientation) Valid() bool { return o >= TopLeft && o <= LeftBottom }

// SwapsAxes reports whether applying o exchanges width and height.
func (o Orientation) SwapsAxes() bool { return o >= LeftTop }

// FromReader parses the EXIF orientation tag out of r. Missing EXIF, a
// missing tag, or a parse failure all yield TopLeft: non-JPEG sources and
// stripped files are routine, not errors.
func FromReader(r io.Reader) Orientation {
	if r == nil {
		return TopLeft
	}
	x, err := exif.Decode(r)
	if err != nil {
		return TopLeft
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return TopLeft
	}
	v, err := tag.Int(0)
	if err != nil {
		return TopLeft
	}
	o := Orientation(v)
	if !o.Valid() {
		return TopLeft
	}
	return o
}

// Apply returns img transformed to upright. Orientation 1 and unknown values
// return img unchanged. Note that imaging rotations are counter-clockwise,
// so RightTop (6, "rotate 90 CW to display") maps to Rotate270 and vice versa.
func Apply(img image.Image, o Orientation) image.Image {
	switch o {
	case TopRight:
		return imaging.FlipH(img)
	case BottomRight:
		return imaging.Rotate180(img)
	case BottomLeft:
		return imaging.FlipV(img)
	case LeftTop:
		return imaging.Transpose(img)
	case RightTop:
		return imaging.Rotate270(img)
	case RightBottom:
		return imaging.Transverse(img)
	case LeftBottom:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
