package report

import (
	"image/color"
	"path/filepath"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	colorOverall = color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}
	colorWorse   = color.RGBA{R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff}
	colorBetter  = color.RGBA{R: 0x2e, G: 0xcc, B: 0x71, A: 0xff}
)

// RenderPlots 输出三张 KM 生存曲线图: 整体、按订阅档位、按活跃度
func (r *Renderer) RenderPlots(runID string, overall, free, premium, low, high *biz.KMEstimate) ([]string, error) {
	dir, err := r.ensureDir(plotSubdir)
	if err != nil {
		return nil, err
	}

	type curve struct {
		est *biz.KMEstimate
		col color.Color
	}
	plots := []struct {
		filename string
		title    string
		curves   []curve
	}{
		{
			filename: "km_overall.png",
			title:    "Kaplan-Meier Survival Curve: Overall User Retention",
			curves:   []curve{{overall, colorOverall}},
		},
		{
			filename: "km_by_subscription.png",
			title:    "Kaplan-Meier Curves: Retention by Subscription Tier",
			curves:   []curve{{free, colorWorse}, {premium, colorBetter}},
		},
		{
			filename: "km_by_activity.png",
			title:    "Kaplan-Meier Curves: Retention by Activity Level",
			curves:   []curve{{low, colorWorse}, {high, colorBetter}},
		},
	}

	paths := make([]string, 0, len(plots))
	for _, spec := range plots {
		path := filepath.Join(dir, spec.filename)
		p := plot.New()
		p.Title.Text = spec.title
		p.X.Label.Text = "Days Since Signup"
		p.Y.Label.Text = "Survival Probability (Retention Rate)"
		p.Y.Min = 0
		p.Y.Max = 1
		p.Add(plotter.NewGrid())

		for _, c := range spec.curves {
			line, err := plotter.NewLine(stepXYs(c.est))
			if err != nil {
				return nil, err
			}
			line.StepStyle = plotter.PostStep
			line.Color = c.col
			line.Width = vg.Points(2)
			p.Add(line)
			p.Legend.Add(c.est.Label, line)
		}
		p.Legend.Top = true

		if err := p.Save(12*vg.Inch, 6*vg.Inch, path); err != nil {
			r.log.Errorf("Failed to save plot %s: %v", path, err)
			return nil, err
		}
		paths = append(paths, path)
	}

	r.log.Infof("Rendered %d survival plots for run %s", len(paths), runID)
	return paths, nil
}

// stepXYs KM 阶梯函数的折线点, 曲线从 (0, 1) 开始
func stepXYs(est *biz.KMEstimate) plotter.XYs {
	xys := make(plotter.XYs, 0, len(est.Times)+1)
	xys = append(xys, plotter.XY{X: 0, Y: 1})
	for i := range est.Times {
		xys = append(xys, plotter.XY{X: est.Times[i], Y: est.Survival[i]})
	}
	return xys
}
