package challenge

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// TargetLoader reads the target image at path as a FrameWidth x
// FrameHeight frame.
type TargetLoader func(path string) (*image.NRGBA, error)

// LoadManifest reads a YAML challenge manifest:
//
//	challenges:
//	  - id: centered-box
//	    title: Centered box
//	    target: targets/centered-box.png
//	    target_chars: 180
//	    hints: ["flexbox helps"]
//	    starts_at: 2026-05-01T12:00:00Z
//	    ends_at: 2026-05-01T13:00:00Z
//
// Target paths are relative to the manifest and are read with load. The
// returned challenges are validated but not yet added to any catalog.
func LoadManifest(ctx context.Context, path string, load TargetLoader) ([]Challenge, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	entries := k.Slices("challenges")
	out := make([]Challenge, 0, len(entries))
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := fromManifestEntry(dir, e, load)
		if err != nil {
			return nil, fmt.Errorf("manifest %s entry %d: %w", path, i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func fromManifestEntry(dir string, e *koanf.Koanf, load TargetLoader) (Challenge, error) {
	c := Challenge{
		ID:          e.String("id"),
		Title:       e.String("title"),
		TargetChars: e.Int("target_chars"),
		Hints:       e.Strings("hints"),
	}
	if c.Title == "" {
		c.Title = c.ID
	}

	var err error
	if c.StartsAt, err = manifestTime(e, "starts_at"); err != nil {
		return Challenge{}, err
	}
	if c.EndsAt, err = manifestTime(e, "ends_at"); err != nil {
		return Challenge{}, err
	}

	target := e.String("target")
	if target == "" {
		return Challenge{}, fmt.Errorf("%w: %s has no target", ErrInvalid, c.ID)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	if c.Target, err = load(target); err != nil {
		return Challenge{}, fmt.Errorf("target %s: %w", target, err)
	}

	return c, c.Validate()
}

// manifestTime accepts both YAML timestamps and RFC 3339 strings.
func manifestTime(e *koanf.Koanf, key string) (time.Time, error) {
	switch v := e.Get(key).(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s has type %T", ErrInvalid, key, v)
	}
}
