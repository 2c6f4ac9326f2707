package debug

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/gatepass/internal/plate/preprocess"
)

// PlotRotationScores charts edge score against deskew angle and saves it to
// path. The format follows the extension (.png, .svg, .pdf).
func PlotRotationScores(scores []preprocess.AngleScore, title, path string) error {
	if len(scores) == 0 {
		return fmt.Errorf("no rotation scores to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Angle (°)"
	p.Y.Label.Text = "Vertical edge energy"

	pts := make(plotter.XYs, len(scores))
	best := 0
	for i, s := range scores {
		pts[i] = plotter.XY{X: s.Degrees, Y: s.Score}
		if s.Score > scores[best].Score {
			best = i
		}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)

	marks, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	p.Add(marks)

	winner, err := plotter.NewScatter(plotter.XYs{pts[best]})
	if err != nil {
		return err
	}
	winner.Color = color.RGBA{R: 220, A: 255}
	winner.Radius = vg.Points(4)
	p.Add(winner)
	p.Legend.Add(fmt.Sprintf("best %.0f°", scores[best].Degrees), winner)
	p.Legend.Top = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save rotation plot: %w", err)
	}
	return nil
}
