package calendar

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/tartampluch/go-birthday-bot/internal/config"
)

var (
	colorPlaceholderBg = color.NRGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	colorPlaceholderFg = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
)

// PlaceholderImage draws a neutral avatar silhouette for members without a photo.
func PlaceholderImage(size int) *image.NRGBA {
	img := imaging.New(size, size, colorPlaceholderBg)
	cx, head := float64(size)/2, float64(size)/5
	headY := float64(size) * 0.38
	bodyY := float64(size) * 1.05
	body := float64(size) * 0.42
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			inHead := (fx-cx)*(fx-cx)+(fy-headY)*(fy-headY) <= head*head
			inBody := (fx-cx)*(fx-cx)+(fy-bodyY)*(fy-bodyY) <= body*body
			if inHead || inBody {
				img.SetNRGBA(x, y, colorPlaceholderFg)
			}
		}
	}
	return img
}

// EnsurePlaceholder writes the placeholder image to path unless a file already exists there.
func EnsurePlaceholder(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), config.DirPermShared); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}
	if err := imaging.Save(PlaceholderImage(config.PlaceholderImageSize), path); err != nil {
		return fmt.Errorf("%s: %w", config.ErrPlaceholderWrite, err)
	}
	return nil
}
