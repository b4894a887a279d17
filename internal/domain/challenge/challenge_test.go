package challenge

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func frame() *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
}

func TestChallenge_Validate(t *testing.T) {
	Convey("Given challenge definitions", t, func() {
		Convey("When the definition is complete", func() {
			c := Challenge{ID: "c-1", Target: frame()}
			So(c.Validate(), ShouldBeNil)
		})

		Convey("When a field is missing or malformed", func() {
			cases := []struct {
				name string
				c    Challenge
			}{
				{"no id", Challenge{Target: frame()}},
				{"reserved id", Challenge{ID: "global", Target: frame()}},
				{"slash in id", Challenge{ID: "a/b", Target: frame()}},
				{"no target", Challenge{ID: "c-1"}},
				{"negative len", Challenge{ID: "c-1", TargetChars: -1, Target: frame()}},
				{"small target", Challenge{ID: "c-1", Target: image.NewNRGBA(image.Rect(0, 0, 10, 10))}},
				{"offset target", Challenge{ID: "c-1", Target: image.NewNRGBA(
					image.Rect(1, 1, FrameWidth+1, FrameHeight+1))}},
				{"inverted window", Challenge{
					ID:       "c-1",
					Target:   frame(),
					StartsAt: time.Unix(200, 0),
					EndsAt:   time.Unix(100, 0),
				}},
			}
			for _, tc := range cases {
				Convey("Then "+tc.name+" is rejected", func() {
					So(errors.Is(tc.c.Validate(), ErrInvalid), ShouldBeTrue)
				})
			}
		})
	})
}

func TestChallenge_Open(t *testing.T) {
	Convey("Given a timed contest", t, func() {
		start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		c := Challenge{ID: "timed", Target: frame(), StartsAt: start, EndsAt: start.Add(time.Hour)}

		So(errors.Is(c.Open(start.Add(-time.Second)), ErrNotStarted), ShouldBeTrue)
		So(c.Open(start), ShouldBeNil)
		So(c.Open(start.Add(59*time.Minute)), ShouldBeNil)
		So(errors.Is(c.Open(start.Add(time.Hour)), ErrClosed), ShouldBeTrue)

		Convey("When the window is open-ended", func() {
			open := Challenge{ID: "open", Target: frame()}
			So(open.Open(time.Time{}), ShouldBeNil)
			So(open.Open(time.Now()), ShouldBeNil)
		})
	})
}

func TestChallenge_Hint(t *testing.T) {
	Convey("Given a challenge with two hints", t, func() {
		c := Challenge{ID: "c", Target: frame(), Hints: []string{"use flex", "center it"}}

		h, err := c.Hint(1)
		So(err, ShouldBeNil)
		So(h, ShouldEqual, "use flex")

		h, err = c.Hint(2)
		So(err, ShouldBeNil)
		So(h, ShouldEqual, "center it")

		_, err = c.Hint(0)
		So(errors.Is(err, ErrNoHint), ShouldBeTrue)
		_, err = c.Hint(3)
		So(errors.Is(err, ErrNoHint), ShouldBeTrue)
	})
}

func TestCatalog(t *testing.T) {
	Convey("Given an empty catalog", t, func() {
		ctx := context.Background()
		cat := NewCatalog()
		So(cat.Len(), ShouldEqual, 0)

		Convey("When challenges are added", func() {
			So(cat.Add(ctx, Challenge{ID: "b", Title: "Bee", Target: frame()}), ShouldBeNil)
			So(cat.Add(ctx, Challenge{ID: "a", Title: "Ay", Target: frame()}), ShouldBeNil)

			Convey("Then they can be fetched and listed in id order", func() {
				c, err := cat.Get(ctx, "b")
				So(err, ShouldBeNil)
				So(c.Title, ShouldEqual, "Bee")

				list := cat.List(ctx)
				So(len(list), ShouldEqual, 2)
				So(list[0].ID, ShouldEqual, "a")
				So(list[1].ID, ShouldEqual, "b")
				So(cat.Len(), ShouldEqual, 2)
			})

			Convey("Then adding the same id again fails", func() {
				err := cat.Add(ctx, Challenge{ID: "a", Target: frame()})
				So(errors.Is(err, ErrExists), ShouldBeTrue)
			})
		})

		Convey("When an invalid challenge is added", func() {
			err := cat.Add(ctx, Challenge{ID: "x"})
			So(errors.Is(err, ErrInvalid), ShouldBeTrue)
			So(cat.Len(), ShouldEqual, 0)
		})

		Convey("When a missing id is requested", func() {
			_, err := cat.Get(ctx, "nope")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When the caller mutates its hint slice after adding", func() {
			hints := []string{"one"}
			So(cat.Add(ctx, Challenge{ID: "h", Target: frame(), Hints: hints}), ShouldBeNil)
			hints[0] = "changed"

			c, _ := cat.Get(ctx, "h")
			So(c.Hints[0], ShouldEqual, "one")
		})

		Convey("When many goroutines add concurrently", func() {
			var wg sync.WaitGroup
			ids := []string{"p", "q", "r", "s", "t", "u", "v", "w"}
			for _, id := range ids {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					_ = cat.Add(ctx, Challenge{ID: id, Target: frame()})
				}(id)
			}
			wg.Wait()
			So(cat.Len(), ShouldEqual, len(ids))
		})
	})
}
