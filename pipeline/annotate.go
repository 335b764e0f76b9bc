package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/model"
)

const (
	labelFontScale = 0.5
	labelHeight    = 20
	boxThickness   = 2
)

var tierColors = map[model.DangerTier]color.RGBA{
	model.TierHigh:   {R: 255, A: 255},
	model.TierMedium: {R: 255, G: 165, A: 255},
	model.TierLow:    {G: 255, A: 255},
	model.TierHuman:  {R: 255, B: 255, A: 255},
}

var (
	unknownTierColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	labelTextColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func annotationLabel(event model.AlertEvent) string {
	dist := "?"
	if event.HasDistance() {
		dist = fmt.Sprintf("%.0fcm", event.DistanceCM)
	}
	return fmt.Sprintf("%s | %s | %s | %.2f",
		event.Category, strings.ToUpper(string(event.Tier)), dist, event.Confidence)
}

// annotate draws the event box and its label onto img. The box is clipped to
// the frame; a box outside the frame draws nothing.
func annotate(img *gocv.Mat, event model.AlertEvent) {
	frame := image.Rect(0, 0, img.Cols(), img.Rows())
	box := image.Rect(event.Box.X, event.Box.Y,
		event.Box.X+event.Box.Width, event.Box.Y+event.Box.Height).Intersect(frame)
	if box.Empty() {
		return
	}

	c, ok := tierColors[event.Tier]
	if !ok {
		c = unknownTierColor
	}
	gocv.Rectangle(img, box, c, boxThickness)

	label := annotationLabel(event)
	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, labelFontScale, 1)
	top := box.Min.Y - labelHeight
	if top < 0 {
		top = box.Min.Y
	}
	background := image.Rect(box.Min.X, top, box.Min.X+size.X, top+labelHeight).Intersect(frame)
	gocv.Rectangle(img, background, c, -1)
	gocv.PutText(img, label, image.Pt(box.Min.X, top+labelHeight-5),
		gocv.FontHersheySimplex, labelFontScale, labelTextColor, 1)
}
