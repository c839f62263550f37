package report

import (
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotImportances writes a bar chart of imps to path. The image format
// follows the file extension (.png, .svg, .pdf).
func PlotImportances(path string, imps []Importance) error {
	if len(imps) == 0 {
		return errors.NewValueError("PlotImportances", "no importances to plot")
	}

	values := make(plotter.Values, len(imps))
	names := make([]string, len(imps))
	for i, imp := range imps {
		values[i] = imp.Value
		names[i] = imp.Feature
	}

	p := plot.New()
	p.Title.Text = "Feature importances"
	p.Y.Label.Text = "importance"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return errors.Wrap(err, "failed to build bar chart")
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -1

	width := vg.Length(len(imps))*40 + 120
	if err := p.Save(width, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}
