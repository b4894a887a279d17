package challenge

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{G: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// frameLoader decodes a PNG and paints a full frame with its first pixel.
func frameLoader(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	c := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	out := image.NewNRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return out, nil
}

func TestLoadManifest(t *testing.T) {
	Convey("Given a manifest directory", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		So(os.MkdirAll(filepath.Join(dir, "targets"), 0o755), ShouldBeNil)
		writePNG(t, filepath.Join(dir, "targets", "green.png"), 200, 150)
		path := filepath.Join(dir, "challenges.yaml")

		Convey("When the manifest is well formed", func() {
			yaml := `challenges:
  - id: green
    title: Green field
    target: targets/green.png
    target_chars: 120
    hints: ["background", "full size"]
    starts_at: "2026-05-01T12:00:00Z"
    ends_at: 2026-05-01T13:00:00Z
  - id: plain
    target: targets/green.png
`
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
			list, err := LoadManifest(ctx, path, frameLoader)

			Convey("Then every challenge is loaded and normalized", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 2)

				g := list[0]
				So(g.ID, ShouldEqual, "green")
				So(g.Title, ShouldEqual, "Green field")
				So(g.TargetChars, ShouldEqual, 120)
				So(g.Hints, ShouldResemble, []string{"background", "full size"})
				So(g.StartsAt.Equal(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(g.EndsAt.Equal(time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(g.Target.Bounds().Dx(), ShouldEqual, FrameWidth)
				So(g.Target.Bounds().Dy(), ShouldEqual, FrameHeight)

				p := list[1]
				So(p.Title, ShouldEqual, "plain")
				So(p.StartsAt.IsZero(), ShouldBeTrue)
				So(p.TargetChars, ShouldEqual, 0)
			})

			Convey("Then the challenges can be added to a catalog", func() {
				cat := NewCatalog()
				for _, c := range list {
					So(cat.Add(ctx, c), ShouldBeNil)
				}
				So(cat.Len(), ShouldEqual, 2)
			})
		})

		Convey("When an entry has no target", func() {
			So(os.WriteFile(path, []byte("challenges:\n  - id: x\n"), 0o600), ShouldBeNil)
			_, err := LoadManifest(ctx, path, frameLoader)
			So(errors.Is(err, ErrInvalid), ShouldBeTrue)
		})

		Convey("When a timestamp is malformed", func() {
			yaml := "challenges:\n  - id: x\n    target: targets/green.png\n    starts_at: tomorrow\n"
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
			_, err := LoadManifest(ctx, path, frameLoader)
			So(errors.Is(err, ErrInvalid), ShouldBeTrue)
		})

		Convey("When the target cannot be loaded", func() {
			So(os.WriteFile(path, []byte("challenges:\n  - id: x\n    target: targets/green.png\n"), 0o600), ShouldBeNil)
			var seen string
			boom := errors.New("unreadable")
			_, err := LoadManifest(ctx, path, func(p string) (*image.NRGBA, error) {
				seen = p
				return nil, boom
			})

			Convey("Then the loader sees the resolved path and its error is returned", func() {
				So(seen, ShouldEqual, filepath.Join(dir, "targets", "green.png"))
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When the manifest file is missing", func() {
			_, err := LoadManifest(ctx, filepath.Join(dir, "missing.yaml"), frameLoader)
			So(err, ShouldNotBeNil)
		})
	})
}
