package calendar

import (
	"fmt"
	"image/color"

	"github.com/tartampluch/go-birthday-bot/internal/config"
)

// Geometry holds the per-render layout constants.
type Geometry struct {
	CellSize     int
	Padding      int
	HeaderHeight int

	// FontPath points to a TrueType/OpenType font. Empty or unreadable paths
	// fall back to the embedded Go Regular font.
	FontPath string
}

// DefaultGeometry returns the layout used by the bot.
func DefaultGeometry() Geometry {
	return Geometry{
		CellSize:     config.DefaultCellSize,
		Padding:      config.DefaultPadding,
		HeaderHeight: config.DefaultHeaderHeight,
	}
}

// normalized replaces non-positive values with defaults and grows a header
// too short to hold the weekday band.
func (g Geometry) normalized() Geometry {
	def := DefaultGeometry()
	if g.CellSize <= 0 {
		g.CellSize = def.CellSize
	}
	if g.Padding < 0 {
		g.Padding = def.Padding
	}
	if g.HeaderHeight <= 0 {
		g.HeaderHeight = def.HeaderHeight
	}
	// The grid starts WeekdayBandGap below the header and the last row closes
	// with a 1px border; the canvas only reserves HeaderHeight+2*Padding for both.
	if floor := config.WeekdayBandGap + 1 - 2*g.Padding; g.HeaderHeight < floor {
		g.HeaderHeight = floor
	}
	return g
}

// Labels are the localized strings drawn on the calendar.
type Labels struct {
	MonthNames [12]string
	Weekdays   [7]string
	// TitleFormat receives the month name and the year.
	TitleFormat string
}

// DefaultLabels are the Russian labels the group uses.
func DefaultLabels() Labels {
	return Labels{
		MonthNames: [12]string{
			"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
			"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
		},
		Weekdays:    [7]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"},
		TitleFormat: config.FallbackTitle,
	}
}

// Title formats the header text for a month.
func (l Labels) Title(m MonthSpec) string {
	format := l.TitleFormat
	if format == "" {
		format = config.FallbackTitle
	}
	return fmt.Sprintf(format, l.MonthNames[m.Month-1], m.Year)
}

// Palette used by the renderer.
var (
	colorBackground = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	colorText       = color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	colorBorder     = color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	colorWeekend    = color.NRGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}
	colorBand       = color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	colorFailure    = color.NRGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}
)
