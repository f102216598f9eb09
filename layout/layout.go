// Package layout computes print canvas plans and scale-to-fit placements.
// Everything here is a pure function of its inputs so the geometry that the
// rest of the pipeline depends on stays trivially testable.
package layout

import "math"

// CentimetersPerInch converts between physical print units.
const CentimetersPerInch = 2.54

// PhysicalSize is the target print size in centimeters, orientation-free:
// ShortCM and LongCM describe the short and long side of the paper.
type PhysicalSize struct {
	ShortCM float64
	LongCM  float64
}

// Standard10x15 is the 10×15 cm (4×6 in) print format this tool targets.
var Standard10x15 = PhysicalSize{ShortCM: 10, LongCM: 15}

// CanvasPlan is the resolved pixel canvas for one specific image.
type CanvasPlan struct {
	Width     int
	Height    int
	Landscape bool
}

// Policy controls how sources smaller than the canvas are handled.
type Policy string

const (
	// PolicyFit scales the image to fill the canvas as much as possible,
	// upscaling smaller-than-canvas sources.
	PolicyFit Policy = "fit"
	// PolicyShrinkOnly never upscales; small sources are centered as-is.
	PolicyShrinkOnly Policy = "shrink-only"
)

// PlacementPlan places a scaled image centered inside a canvas.
type PlacementPlan struct {
	Scale   float64
	ScaledW int
	ScaledH int
	OffsetX int
	OffsetY int
}

// CMToPixels converts a physical length to pixels at the given DPI using
// round-half-up, matching how print software derives physical size back from
// pixel dimensions.
func CMToPixels(cm float64, dpi int) int {
	return int(math.Round(cm / CentimetersPerInch * float64(dpi)))
}

// PlanCanvas decides the canvas orientation for an upright image and resolves
// its pixel dimensions. Landscape images (width > height) get a long×short
// canvas; portrait and square images get short×long. Treating squares as
// portrait is a fixed tie-break, not a heuristic: repeated runs must produce
// identical output.
func PlanCanvas(imgW, imgH int, phys PhysicalSize, dpi int) CanvasPlan {
	shortPx := CMToPixels(phys.ShortCM, dpi)
	longPx := CMToPixels(phys.LongCM, dpi)
	if imgW > imgH {
		return CanvasPlan{Width: longPx, Height: shortPx, Landscape: true}
	}
	return CanvasPlan{Width: shortPx, Height: longPx}
}

// Fit computes the largest aspect-preserving scale that keeps the whole image
// inside the canvas, plus centered placement offsets. The binding axis is
// whichever produces the smaller scale, so containment holds on both axes by
// construction. Offsets use floor division; scaled dimensions are clamped to
// the canvas so float rounding can never push the bounding box outside it.
func Fit(imgW, imgH int, plan CanvasPlan, policy Policy) PlacementPlan {
	scale := math.Min(
		float64(plan.Width)/float64(imgW),
		float64(plan.Height)/float64(imgH),
	)
	if policy == PolicyShrinkOnly && scale > 1 {
		scale = 1
	}

	scaledW := int(math.Round(float64(imgW) * scale))
	scaledH := int(math.Round(float64(imgH) * scale))
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}
	if scaledW > plan.Width {
		scaledW = plan.Width
	}
	if scaledH > plan.Height {
		scaledH = plan.Height
	}

	return PlacementPlan{
		Scale:   scale,
		ScaledW: scaledW,
		ScaledH: scaledH,
		OffsetX: (plan.Width - scaledW) / 2,
		OffsetY: (plan.Height - scaledH) / 2,
	}
}

// Contained reports whether the placement's bounding box lies fully inside
// the canvas. Used as a defensive check before compositing.
func Contained(p PlacementPlan, plan CanvasPlan) bool {
	return p.OffsetX >= 0 && p.OffsetY >= 0 &&
		p.OffsetX+p.ScaledW <= plan.Width &&
		p.OffsetY+p.ScaledH <= plan.Height
}
