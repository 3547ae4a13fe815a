package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/metrics"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

// FileLinker resolves a messenger file id to a downloadable URL.
type FileLinker interface {
	FileURL(fileID string) (string, error)
}

// PhotoSource maps a member to a local image path for the renderer.
type PhotoSource interface {
	ResolveLocalPath(ctx context.Context, rec store.Record) string
}

// PhotoResolver keeps a local copy of each member photo under Dir.
type PhotoResolver struct {
	Dir         string
	Placeholder string
	Linker      FileLinker
	Fetcher     PhotoFetcher
	Store       store.Store
	Clock       Clock
}

var errBadPhotoID = errors.New("photo id is not a valid file name")

// PhotoPath is where the local copy of photoID lives.
func (p *PhotoResolver) PhotoPath(photoID string) (string, error) {
	// Ids come from the messenger and end up in a path: reject anything that
	// could name a file outside Dir.
	if photoID == "" || photoID != filepath.Base(photoID) || strings.ContainsAny(photoID, `/\`) || photoID == ".." {
		return "", errBadPhotoID
	}
	return filepath.Join(p.Dir, photoID+config.PhotoFileExt), nil
}

// ResolveLocalPath returns the member's cached photo, downloading it first
// when the copy is missing or predates the last profile change. Members
// without a photo, and every failure, resolve to the placeholder.
func (p *PhotoResolver) ResolveLocalPath(ctx context.Context, rec store.Record) string {
	if rec.PhotoID == nil {
		return p.Placeholder
	}
	// Every line below is about this member.
	log := slog.With(
		config.LogKeyComponent, config.CompFetcher,
		config.LogKeyUser, rec.UserID,
	)

	path, err := p.PhotoPath(*rec.PhotoID)
	if err != nil {
		log.Warn(config.ErrPhotoFetch, config.LogKeyError, err)
		return p.Placeholder
	}

	// Cache hit: the profile has not changed since the last download and the
	// file is still on disk.
	if !rec.PhotoStale() {
		if _, err := os.Stat(path); err == nil {
			log.Debug(config.MsgPhotoCached, config.LogKeyFile, path)
			return path
		}
	}

	// A failed download never fails the render. An older copy, if any, stays
	// on disk for the next attempt, but this render uses the placeholder.
	if err := p.download(ctx, *rec.PhotoID, path); err != nil {
		metrics.PhotoFailures.WithLabelValues(metrics.StageFetch).Inc()
		log.Warn(config.ErrPhotoFetch, config.LogKeyError, err)
		return p.Placeholder
	}
	log.Info(config.MsgPhotoFetched, config.LogKeyFile, path)

	// Recording the fetch time clears the stale flag. If it fails the photo is
	// simply downloaded again next time.
	if p.Store != nil {
		if err := p.Store.MarkPhotoFetched(ctx, rec.UserID, p.now()); err != nil {
			log.Warn(config.ErrStoreQuery, config.LogKeyError, err)
		}
	}
	return path
}

func (p *PhotoResolver) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock.Now()
}

// download writes to a temporary file first so a failed transfer never
// replaces a good copy.
func (p *PhotoResolver) download(ctx context.Context, photoID, path string) error {
	if p.Linker == nil || p.Fetcher == nil {
		return errors.New(config.ErrPhotoLink)
	}
	// The file URL embeds the bot token, so it is passed on but never logged.
	fileURL, err := p.Linker.FileURL(photoID)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrPhotoLink, err)
	}

	body, err := p.Fetcher.Fetch(ctx, fileURL)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if err := os.MkdirAll(p.Dir, config.DirPermUserRWX); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}
	// Same directory as the target so the final rename stays on one filesystem.
	tmp, err := os.CreateTemp(p.Dir, photoID+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	// After a successful rename this is a no-op on a missing file.
	defer func() { _ = os.Remove(tmpName) }()

	// The fetcher already caps the body size.
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// Rename replaces the old copy atomically: readers see either the old
	// image or the new one, never a partial file.
	return os.Rename(tmpName, path)
}
