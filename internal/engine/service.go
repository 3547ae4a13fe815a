// Package engine ties the record store, the photo cache and the calendar
// renderer together: month renders with captions, the daily notification,
// the iCalendar feed and the vCard roster.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tartampluch/go-birthday-bot/internal/calendar"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/metrics"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

// Service is the core orchestration used by the bot, the scheduler and the HTTP server.
type Service struct {
	Store    store.Store
	Photos   PhotoSource
	Renderer *calendar.Renderer
	Captions CaptionFormatter
	Clock    Clock
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) records(ctx context.Context) ([]store.Record, error) {
	if s.Store == nil {
		return nil, errors.New(config.ErrStoreRequired)
	}
	return s.Store.All(ctx)
}

// assign resolves every member's photo before drawing starts. Members are
// scanned in store order, so that is the order of photos within a cell.
func (s *Service) assign(ctx context.Context, spec calendar.MonthSpec, records []store.Record) calendar.DayAssignment {
	assignment := make(calendar.DayAssignment)
	for _, r := range records {
		if !r.HasBirthday() || int(r.Birthday.Month()) != spec.Month {
			continue
		}
		path := ""
		if s.Photos != nil {
			path = s.Photos.ResolveLocalPath(ctx, r)
		}
		assignment.Add(r.Birthday.Day(), path)
	}
	return assignment
}

func (s *Service) prepare(ctx context.Context, year, month int) (calendar.MonthSpec, calendar.DayAssignment, string, error) {
	spec := calendar.MonthSpec{Year: year, Month: month}
	if err := spec.Validate(); err != nil {
		return spec, nil, "", err
	}
	if s.Renderer == nil {
		return spec, nil, "", errors.New(config.ErrRender)
	}
	records, err := s.records(ctx)
	if err != nil {
		return spec, nil, "", err
	}
	assignment := s.assign(ctx, spec, records)
	caption := s.Captions.Format(records, month, s.now())
	return spec, assignment, caption, nil
}

// RenderMonth draws the month to outPath and returns its caption.
func (s *Service) RenderMonth(ctx context.Context, year, month int, outPath string) (caption string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRender(start, err) }()

	spec, assignment, caption, err := s.prepare(ctx, year, month)
	if err != nil {
		return "", err
	}
	if err := s.Renderer.RenderToFile(spec, assignment, outPath); err != nil {
		return "", err
	}
	slog.Info(config.MsgRenderDone,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyYear, year,
		config.LogKeyMonth, month,
		config.LogKeyPath, outPath,
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return caption, nil
}

// RenderMonthPNG draws the month in memory.
func (s *Service) RenderMonthPNG(ctx context.Context, year, month int) (png []byte, caption string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRender(start, err) }()

	spec, assignment, caption, err := s.prepare(ctx, year, month)
	if err != nil {
		return nil, "", err
	}
	png, err = s.Renderer.RenderPNG(spec, assignment)
	if err != nil {
		return nil, "", err
	}
	return png, caption, nil
}

// TodaysNotification builds the daily message; ok is false when nobody
// celebrates today.
func (s *Service) TodaysNotification(ctx context.Context) (text string, ok bool, err error) {
	records, err := s.records(ctx)
	if err != nil {
		return "", false, err
	}
	text, ok = s.Captions.NotificationText(records, s.now())
	return text, ok, nil
}

// Feed builds the iCalendar feed of every member's birthday.
func (s *Service) Feed(ctx context.Context) ([]byte, error) {
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	data, stats, err := BuildFeed(records, s.now(), s.Captions)
	if err != nil {
		return nil, err
	}
	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyCount, stats.Events,
		config.LogKeySizeBytes, len(data),
	)
	return data, nil
}

// ExportVCards writes the roster as vCards.
func (s *Service) ExportVCards(ctx context.Context, w io.Writer) error {
	records, err := s.records(ctx)
	if err != nil {
		return err
	}
	return EncodeVCards(w, records)
}

// ImportVCards upserts every roster entry read from r and returns how many
// members were written. Photos are never touched.
func (s *Service) ImportVCards(ctx context.Context, r io.Reader) (int, error) {
	if s.Store == nil {
		return 0, errors.New(config.ErrStoreRequired)
	}
	members, decodeErr := DecodeVCards(r)
	imported := 0
	for _, m := range members {
		if _, err := s.Store.Upsert(ctx, m.UserID, m.Update()); err != nil {
			return imported, fmt.Errorf("%s: %w", config.ErrImport, err)
		}
		imported++
	}
	slog.Info(config.MsgImportDone,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyCount, imported,
	)
	return imported, decodeErr
}
