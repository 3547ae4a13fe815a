package calendar

import (
	"image"

	"github.com/tartampluch/go-birthday-bot/internal/config"
)

// GridPlan is the computed layout of one month: canvas size, labels and the
// day number of every cell of the fixed 6x7 grid.
type GridPlan struct {
	CanvasWidth   int
	CanvasHeight  int
	Title         string
	WeekdayLabels [7]string

	// TitleOrigin is the top-left of the title area, WeekdayBand the label row.
	TitleOrigin image.Point
	WeekdayBand image.Rectangle

	spec  MonthSpec
	geom  Geometry
	days  [config.GridRows][config.GridColumns]int
	gridY int
}

// ComputeGrid lays out spec on a Monday-first grid.
func ComputeGrid(spec MonthSpec, geom Geometry, labels Labels) (GridPlan, error) {
	if err := spec.Validate(); err != nil {
		return GridPlan{}, err
	}
	geom = geom.normalized()

	plan := GridPlan{
		CanvasWidth:   config.GridColumns*geom.CellSize + 2*geom.Padding,
		CanvasHeight:  2*geom.HeaderHeight + config.GridRows*geom.CellSize + 3*geom.Padding,
		Title:         labels.Title(spec),
		WeekdayLabels: labels.Weekdays,
		TitleOrigin:   image.Pt(geom.Padding, geom.Padding),
		spec:          spec,
		geom:          geom,
	}

	bandY := geom.HeaderHeight + geom.Padding
	plan.WeekdayBand = image.Rect(
		geom.Padding, bandY,
		geom.Padding+config.GridColumns*geom.CellSize, bandY+config.WeekdayBandHeight,
	)
	plan.gridY = bandY + config.WeekdayBandGap

	start := spec.FirstWeekday()
	total := spec.DaysInMonth()
	day := 1
	for week := 0; week < config.GridRows; week++ {
		for col := 0; col < config.GridColumns; col++ {
			if (week == 0 && col < start) || day > total {
				continue
			}
			plan.days[week][col] = day
			day++
		}
	}
	return plan, nil
}

// Spec returns the month the plan was computed for.
func (p GridPlan) Spec() MonthSpec { return p.spec }

// CellSize returns the side of one square cell.
func (p GridPlan) CellSize() int { return p.geom.CellSize }

// CellOrigin returns the top-left pixel of a cell.
func (p GridPlan) CellOrigin(week, col int) image.Point {
	return image.Pt(
		p.geom.Padding+col*p.geom.CellSize,
		p.gridY+week*p.geom.CellSize,
	)
}

// CellRect returns the cell bounds, border included.
func (p GridPlan) CellRect(week, col int) image.Rectangle {
	o := p.CellOrigin(week, col)
	return image.Rect(o.X, o.Y, o.X+p.geom.CellSize+1, o.Y+p.geom.CellSize+1)
}

// DayAt returns the day number shown in a cell, or 0 for a blank cell.
func (p GridPlan) DayAt(week, col int) int {
	if week < 0 || week >= config.GridRows || col < 0 || col >= config.GridColumns {
		return 0
	}
	return p.days[week][col]
}

// CellOf returns the grid position of a day.
func (p GridPlan) CellOf(day int) (week, col int, ok bool) {
	if day < 1 || day > p.spec.DaysInMonth() {
		return 0, 0, false
	}
	idx := p.spec.FirstWeekday() + day - 1
	return idx / config.GridColumns, idx % config.GridColumns, true
}

// IsWeekend reports whether a column is Saturday or Sunday.
func (p GridPlan) IsWeekend(col int) bool {
	return col == 5 || col == 6
}
