package calendar

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/tartampluch/go-birthday-bot/internal/config"
)

// DayAssignment maps a day of the month to the photo paths shown in its cell,
// in the order the members were scanned.
type DayAssignment map[int][]string

// Add appends a photo path to a day.
func (a DayAssignment) Add(day int, path string) {
	a[day] = append(a[day], path)
}

// Renderer draws month calendars. It is safe for concurrent use: every call
// allocates its own canvas, and renders are serialized because opentype
// faces keep per-face glyph buffers.
type Renderer struct {
	Geometry Geometry
	Labels   Labels
	Faces    Faces

	mu sync.Mutex
}

// NewRenderer prepares a renderer, loading the font named by geom.FontPath.
func NewRenderer(geom Geometry, labels Labels) *Renderer {
	return &Renderer{
		Geometry: geom.normalized(),
		Labels:   labels,
		Faces:    LoadFaces(geom.FontPath),
	}
}

// Render draws the month. The only error is an invalid month.
func (r *Renderer) Render(spec MonthSpec, assignment DayAssignment) (*image.NRGBA, error) {
	plan, err := ComputeGrid(spec, r.Geometry, r.Labels)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := NewCanvas(plan.CanvasWidth, plan.CanvasHeight)
	r.drawHeader(c, plan)

	for week := 0; week < config.GridRows; week++ {
		for col := 0; col < config.GridColumns; col++ {
			origin := plan.CellOrigin(week, col)
			day := plan.DayAt(week, col)
			if day == 0 {
				c.Stroke(plan.CellRect(week, col), colorBorder)
				continue
			}
			ComposeCell(c, r.Faces, CellContent{
				Origin:   origin,
				CellSize: plan.CellSize(),
				Day:      day,
				Photos:   assignment[day],
				Weekend:  plan.IsWeekend(col),
			})
		}
	}

	slog.Debug(config.MsgRenderDone,
		config.LogKeyComponent, config.CompCalendar,
		config.LogKeyYear, spec.Year,
		config.LogKeyMonth, spec.Month,
		config.LogKeyPhotos, len(assignment),
	)
	return c.Image(), nil
}

func (r *Renderer) drawHeader(c *Canvas, plan GridPlan) {
	tw, _ := MeasureText(r.Faces.Title, plan.Title)
	c.TextAt(image.Pt((plan.CanvasWidth-tw)/2, plan.TitleOrigin.Y), plan.Title, r.Faces.Title, colorText)

	size := plan.CellSize()
	band := plan.WeekdayBand
	for i, label := range plan.WeekdayLabels {
		x := band.Min.X + i*size
		box := image.Rect(x, band.Min.Y, x+size+1, band.Max.Y+1)
		c.Fill(box, colorBand)
		c.Stroke(box, colorBorder)
		c.TextCentered(box, label, r.Faces.Weekday, colorText)
	}
}

// RenderPNG renders the month and encodes it as PNG.
func (r *Renderer) RenderPNG(spec MonthSpec, assignment DayAssignment) ([]byte, error) {
	img, err := r.Render(spec, assignment)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrRenderEncode, err)
	}
	return buf.Bytes(), nil
}

// RenderToFile renders the month into a PNG file at path.
func (r *Renderer) RenderToFile(spec MonthSpec, assignment DayAssignment, path string) error {
	img, err := r.Render(spec, assignment)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, config.DirPermShared); err != nil {
			return fmt.Errorf("%s: %w", config.ErrCreateDir, err)
		}
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("%s: %w", config.ErrRenderEncode, err)
	}
	return nil
}
