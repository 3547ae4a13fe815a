package calendar

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tartampluch/go-birthday-bot/internal/config"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Faces are the font faces used for the title, the weekday band and day numbers.
type Faces struct {
	Title   font.Face
	Weekday font.Face
	Day     font.Face
}

// FallbackFaces builds the faces from the embedded Go Regular font, which
// covers Latin, Cyrillic and Greek so localized titles and weekdays stay
// readable without a configured font file.
func FallbackFaces() Faces {
	faces, err := facesFromBytes(goregular.TTF)
	if err != nil {
		slog.Warn(config.ErrFontLoad,
			config.LogKeyComponent, config.CompCalendar,
			config.LogKeyError, err,
		)
		return BitmapFaces()
	}
	return faces
}

// BitmapFaces uses the built-in ASCII bitmap face for every text element.
func BitmapFaces() Faces {
	return Faces{
		Title:   basicfont.Face7x13,
		Weekday: basicfont.Face7x13,
		Day:     basicfont.Face7x13,
	}
}

// LoadFaces parses the font at path. A missing or broken font never fails the
// render: it is logged and replaced by FallbackFaces.
func LoadFaces(path string) Faces {
	if path == "" {
		return FallbackFaces()
	}
	faces, err := loadFaces(path)
	if err != nil {
		slog.Warn(config.ErrFontLoad,
			config.LogKeyComponent, config.CompCalendar,
			config.LogKeyPath, path,
			config.LogKeyError, err,
		)
		return FallbackFaces()
	}
	return faces
}

func loadFaces(path string) (Faces, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Faces{}, err
	}
	return facesFromBytes(data)
}

func facesFromBytes(data []byte) (Faces, error) {
	otf, err := opentype.Parse(data)
	if err != nil {
		return Faces{}, fmt.Errorf("parse font: %w", err)
	}

	newFace := func(size float64) (font.Face, error) {
		return opentype.NewFace(otf, &opentype.FaceOptions{
			Size:    size,
			DPI:     config.FontDPI,
			Hinting: font.HintingFull,
		})
	}

	title, err := newFace(config.TitleFontSize)
	if err != nil {
		return Faces{}, err
	}
	weekday, err := newFace(config.WeekdayFontSize)
	if err != nil {
		return Faces{}, err
	}
	day, err := newFace(config.DayFontSize)
	if err != nil {
		return Faces{}, err
	}
	return Faces{Title: title, Weekday: weekday, Day: day}, nil
}
