package service_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stylewars/internal/adapters/mq/queue"
	"github.com/okian/stylewars/internal/adapters/repository"
	service "github.com/okian/stylewars/internal/app"
	"github.com/okian/stylewars/internal/domain/challenge"
	"github.com/okian/stylewars/internal/domain/model"
	"github.com/okian/stylewars/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func solid(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, challenge.FrameWidth, challenge.FrameHeight))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// halfMatching returns a render whose top half equals target and whose
// bottom half is black.
func halfMatching(target *image.NRGBA) []byte {
	out := append([]byte(nil), target.Pix...)
	for i := len(out) / 2; i < len(out); i += 4 {
		out[i], out[i+1], out[i+2] = 0, 0, 0
	}
	return out
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it reports sensible defaults before Start", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, queue.DefaultCapacity)
			So(stats["challenges"], ShouldEqual, 0)
			So(svc.Size(), ShouldEqual, 0)
			So(svc.Hub(), ShouldBeNil)
		})

		Convey("Then board reads fail until Start", func() {
			_, err := svc.TopN(context.Background(), repository.GlobalBoard, 10)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When submissions arrive before Start", func() {
			ctx := context.Background()

			Convey("Then intake refuses them without panicking", func() {
				So(svc.SeenAndRecord(ctx, "early"), ShouldBeFalse)
				So(svc.SeenAndRecord(ctx, "early"), ShouldBeFalse)
				So(func() { svc.Unrecord(ctx, "early") }, ShouldNotPanic)
				So(svc.Enqueue(ctx, model.Submission{SubmissionID: "early", PlayerID: "a", ChallengeID: "red"}), ShouldBeFalse)
				So(svc.Size(), ShouldEqual, 0)
			})

			Convey("Then challenges can still be registered", func() {
				info, err := svc.AddChallenge(ctx, challenge.Challenge{ID: "red", Target: solid(color.NRGBA{R: 255, A: 255})})
				So(err, ShouldBeNil)
				So(info.ID, ShouldEqual, "red")
			})

			Convey("Then nothing recorded early leaks into the started service", func() {
				svc.SeenAndRecord(ctx, "early")
				So(svc.Start(ctx), ShouldBeNil)
				defer svc.Stop()
				So(svc.SeenAndRecord(ctx, "early"), ShouldBeFalse)
				So(svc.SeenAndRecord(ctx, "early"), ShouldBeTrue)
			})
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(10), service.WithDedupeSize(10))
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then stats describe the running pipeline", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["queueLength"], ShouldEqual, 0)
			So(stats["totalPlayers"], ShouldEqual, 0)
			So(stats["boards"], ShouldEqual, 1)
			So(svc.Hub(), ShouldNotBeNil)
		})

		Convey("When stopping the service twice", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it is stopped and boards stay readable", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				top, err := svc.TopN(ctx, repository.GlobalBoard, 5)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 0)
			})
		})

		Reset(func() { svc.Stop() })
	})
}

func TestService_Dedupe(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		So(svc.SeenAndRecord(ctx, "sub-1"), ShouldBeFalse)
		So(svc.SeenAndRecord(ctx, "sub-1"), ShouldBeTrue)
		svc.Unrecord(ctx, "sub-1")
		So(svc.SeenAndRecord(ctx, "sub-1"), ShouldBeFalse)
		So(svc.Size(), ShouldEqual, 1)
	})
}

func TestService_Challenges(t *testing.T) {
	Convey("Given a service with a timed challenge", t, func() {
		ctx := context.Background()
		start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
		now := start.Add(-time.Minute)
		svc := service.New(service.WithClock(func() time.Time { return now }))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		target := solid(color.NRGBA{R: 40, G: 90, B: 200, A: 255})
		info, err := svc.AddChallenge(ctx, challenge.Challenge{
			ID:       "blue",
			Title:    "Blue",
			Hints:    []string{"one color"},
			StartsAt: start,
			EndsAt:   start.Add(time.Hour),
			Target:   target,
		})
		So(err, ShouldBeNil)

		Convey("Then its public info is complete and hides hints", func() {
			So(info.ID, ShouldEqual, "blue")
			So(info.TargetChars, ShouldEqual, 200)
			So(info.HintCount, ShouldEqual, 1)
			So(info.Width, ShouldEqual, challenge.FrameWidth)
			So(info.StartsAt, ShouldEqual, "2026-06-01T10:00:00Z")
			So(len(svc.Challenges(ctx)), ShouldEqual, 1)
		})

		Convey("Then hints are revealed one at a time", func() {
			h, err := svc.Hint(ctx, "blue", 1)
			So(err, ShouldBeNil)
			So(h, ShouldEqual, "one color")
			_, err = svc.Hint(ctx, "blue", 2)
			So(errors.Is(err, challenge.ErrNoHint), ShouldBeTrue)
		})

		Convey("Then the contest window gates submissions", func() {
			So(errors.Is(svc.CheckOpen(ctx, "blue"), challenge.ErrNotStarted), ShouldBeTrue)
			now = start.Add(time.Minute)
			So(svc.CheckOpen(ctx, "blue"), ShouldBeNil)
			now = start.Add(2 * time.Hour)
			So(errors.Is(svc.CheckOpen(ctx, "blue"), challenge.ErrClosed), ShouldBeTrue)
			So(errors.Is(svc.CheckOpen(ctx, "red"), challenge.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then previews score without touching the boards", func() {
			p, err := svc.Preview(ctx, "blue", halfMatching(target), 150, 0)
			So(err, ShouldBeNil)
			So(p.Accuracy, ShouldEqual, 50)
			So(p.Score, ShouldEqual, 300)
			So(p.Matched, ShouldEqual, challenge.FrameWidth*challenge.FrameHeight/2)
			So(p.Total, ShouldEqual, challenge.FrameWidth*challenge.FrameHeight)

			perfect, _ := svc.Preview(ctx, "blue", target.Pix, 150, 1)
			So(perfect.Score, ShouldEqual, 950)

			top, err := svc.TopN(ctx, "blue", 10)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 0)
		})

		Convey("Then unknown boards are reported", func() {
			_, err := svc.TopN(ctx, "red", 10)
			So(errors.Is(err, challenge.ErrNotFound), ShouldBeTrue)
			_, err = svc.Rank(ctx, "blue", "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			rows, err := svc.Top(ctx, "red", 10)
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 0)
		})

		Convey("Then duplicate challenges are refused", func() {
			_, err := svc.AddChallenge(ctx, challenge.Challenge{ID: "blue", Target: target})
			So(errors.Is(err, challenge.ErrExists), ShouldBeTrue)
		})
	})
}
