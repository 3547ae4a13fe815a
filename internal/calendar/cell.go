package calendar

import (
	"image"
	"log/slog"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/metrics"
	"golang.org/x/image/font"
)

// Layout is the sub-layout of a day cell.
type Layout int

const (
	LayoutEmpty Layout = iota // no photo: plain day number
	LayoutSingle              // one photo fills the cell
	LayoutSplit               // two photos side by side
	LayoutTiles               // near-square grid of tiles
)

func (l Layout) String() string {
	switch l {
	case LayoutEmpty:
		return "empty"
	case LayoutSingle:
		return "single"
	case LayoutSplit:
		return "split"
	case LayoutTiles:
		return "tiles"
	}
	return "unknown"
}

// SelectLayout picks the sub-layout from the number of photos alone.
func SelectLayout(n int) Layout {
	switch {
	case n <= 0:
		return LayoutEmpty
	case n == 1:
		return LayoutSingle
	case n == 2:
		return LayoutSplit
	default:
		return LayoutTiles
	}
}

// TileGridSize is the side of the square tile grid used for n photos.
func TileGridSize(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// CellInterior is the photo area of a cell: the cell minus its border.
func CellInterior(origin image.Point, cellSize int) image.Rectangle {
	inset := config.CellBorderInset
	return image.Rect(origin.X+inset, origin.Y+inset, origin.X+cellSize, origin.Y+cellSize)
}

// PlanTiles returns the target rectangle of each photo inside interior.
// Photos that do not fit the tile grid are dropped, so the result may be
// shorter than n.
func PlanTiles(interior image.Rectangle, n int) []image.Rectangle {
	w, h := interior.Dx(), interior.Dy()
	switch SelectLayout(n) {
	case LayoutEmpty:
		return nil
	case LayoutSingle:
		return []image.Rectangle{interior}
	case LayoutSplit:
		// Two halves of the full height. An odd width leaves one spare pixel;
		// it goes to the left tile.
		right := w / 2
		left := w - right
		return []image.Rectangle{
			image.Rect(interior.Min.X, interior.Min.Y, interior.Min.X+left, interior.Min.Y+h),
			image.Rect(interior.Min.X+left, interior.Min.Y, interior.Max.X, interior.Min.Y+h),
		}
	}

	// Square tiles anchored top-left. Integer division may leave a thin white
	// strip on the right and bottom edges of the interior.
	grid := TileGridSize(n)
	tile := min(w, h) / grid
	count := min(n, grid*grid)
	tiles := make([]image.Rectangle, 0, count)
	for i := 0; i < count; i++ {
		row, col := i/grid, i%grid
		at := interior.Min.Add(image.Pt(col*tile, row*tile))
		tiles = append(tiles, image.Rectangle{Min: at, Max: at.Add(image.Pt(tile, tile))})
	}
	return tiles
}

// CellContent is everything the composer needs to draw one day.
type CellContent struct {
	Origin   image.Point
	CellSize int
	Day      int
	Photos   []string
	Weekend  bool
}

// ComposeCell draws one day cell into the canvas. Photos that cannot be
// decoded are replaced by a red cross; they never abort the render.
func ComposeCell(c *Canvas, faces Faces, cell CellContent) {
	// The rect includes the closing border pixel, shared with the next cell.
	rect := image.Rect(cell.Origin.X, cell.Origin.Y, cell.Origin.X+cell.CellSize+1, cell.Origin.Y+cell.CellSize+1)
	c.Fill(rect, colorBackground)
	c.Stroke(rect, colorBorder)

	label := strconv.Itoa(cell.Day)
	// No photo: the number alone, centered. Weekends are only colored here;
	// over photos the badge always uses the text color.
	if SelectLayout(len(cell.Photos)) == LayoutEmpty {
		col := colorText
		if cell.Weekend {
			col = colorWeekend
		}
		c.TextCentered(rect, label, faces.Day, col)
		return
	}

	// PlanTiles may return fewer tiles than photos; the extra photos are not drawn.
	tiles := PlanTiles(CellInterior(cell.Origin, cell.CellSize), len(cell.Photos))
	for i, tile := range tiles {
		drawPhoto(c, cell.Photos[i], tile, cell.Day)
	}
	// The badge goes last so photos never cover the number.
	drawDayBadge(c, cell.Origin, label, faces.Day)
}

func drawPhoto(c *Canvas, path string, tile image.Rectangle, day int) {
	if tile.Empty() {
		return
	}
	// AutoOrientation applies the EXIF rotation phone cameras write.
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		// A broken or missing file only costs its own tile, which gets a red
		// cross. The other tiles still render.
		slog.Warn(config.ErrPhotoDecode,
			config.LogKeyComponent, config.CompCalendar,
			config.LogKeyDay, day,
			config.LogKeyPath, path,
			config.LogKeyError, err,
		)
		metrics.PhotoFailures.WithLabelValues(metrics.StageDecode).Inc()
		c.Cross(tile, colorFailure)
		return
	}
	// Stretched to the exact tile size, aspect ratio is not preserved.
	c.Paste(imaging.Resize(src, tile.Dx(), tile.Dy(), imaging.Lanczos), tile.Min)
}

// drawDayBadge keeps the day number legible over photos.
func drawDayBadge(c *Canvas, origin image.Point, label string, face font.Face) {
	// Sized to the text plus padding, in the top-left corner inside the border.
	w, h := MeasureText(face, label)
	pad := config.DayBadgePadding
	inset := config.CellBorderInset
	badge := image.Rect(origin.X+inset, origin.Y+inset, origin.X+inset+w+2*pad, origin.Y+inset+h+2*pad)
	c.Fill(badge, colorBackground)
	c.TextCentered(badge, label, face, colorText)
}
