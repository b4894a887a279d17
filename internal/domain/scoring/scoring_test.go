package scoring

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCalculate(t *testing.T) {
	Convey("Given the score formula", t, func() {
		Convey("When accuracy is zero", func() {
			Convey("Then the score is zero regardless of length and hints", func() {
				So(Calculate(Input{Accuracy: 0, CharsWritten: 1, TargetChars: 200}), ShouldEqual, 0)
				So(Calculate(Input{Accuracy: 0, CharsWritten: 10_000, HintsUsed: 3}), ShouldEqual, 0)
				So(Calculate(Input{Accuracy: 0, CharsWritten: 10, HintsUsed: -4}), ShouldEqual, 0)
			})
		})

		Convey("When the render sits exactly on the bonus threshold", func() {
			score := Calculate(Input{Accuracy: 99.5, CharsWritten: 200, TargetChars: 200})

			Convey("Then base and full bonus are awarded", func() {
				So(score, ShouldEqual, 997)
			})
		})

		Convey("When a perfect render overshoots the target length", func() {
			score := Calculate(Input{Accuracy: 100, CharsWritten: 250, TargetChars: 200})

			Convey("Then each extra character costs a bonus point", func() {
				So(score, ShouldEqual, 950)
			})
		})

		Convey("When accuracy is just below the threshold", func() {
			score := Calculate(Input{Accuracy: 99.4, CharsWritten: 50, TargetChars: 200})

			Convey("Then no bonus applies however short the CSS is", func() {
				So(score, ShouldEqual, 596)
			})
		})

		Convey("When hints outweigh everything else", func() {
			score := Calculate(Input{Accuracy: 100, CharsWritten: 200, HintsUsed: 20, TargetChars: 200})

			Convey("Then the score is clamped at zero", func() {
				So(score, ShouldEqual, 0)
			})
		})

		Convey("When the base lands on a half point", func() {
			Convey("Then it rounds up", func() {
				// 600 * 99.75 / 100 = 598.5, and the bonus still applies.
				So(Calculate(Input{Accuracy: 99.75, CharsWritten: 600, TargetChars: 200}), ShouldEqual, 599)
				So(Calculate(Input{Accuracy: 50.25, CharsWritten: 1, TargetChars: 200}), ShouldEqual, 302)
			})
		})

		Convey("When the CSS length equals the target", func() {
			Convey("Then the full bonus is awarded", func() {
				So(Bonus(100, 200, 200), ShouldEqual, 400)
				So(Bonus(100, 201, 200), ShouldEqual, 399)
				So(Calculate(Input{Accuracy: 100, CharsWritten: 200, TargetChars: 200}), ShouldEqual, 1000)
			})
		})

		Convey("When the challenge sets no target length", func() {
			Convey("Then the default of 200 characters is used", func() {
				So(Calculate(Input{Accuracy: 100, CharsWritten: 250}), ShouldEqual, 950)
				So(Calculate(Input{Accuracy: 100, CharsWritten: 250, TargetChars: -5}), ShouldEqual, 950)
			})
		})

		Convey("When the CSS is far longer than the target", func() {
			Convey("Then the bonus bottoms out at zero", func() {
				So(Bonus(100, 5000, 200), ShouldEqual, 0)
				So(Calculate(Input{Accuracy: 100, CharsWritten: 5000, TargetChars: 200}), ShouldEqual, 600)
			})
		})

		Convey("When hints are used on an otherwise perfect render", func() {
			Convey("Then each hint costs fifty points", func() {
				So(Penalty(0), ShouldEqual, 0)
				So(Penalty(3), ShouldEqual, 150)
				So(Calculate(Input{Accuracy: 100, CharsWritten: 100, HintsUsed: 3, TargetChars: 200}), ShouldEqual, 850)
			})
		})
	})
}

func TestCalculateBounds(t *testing.T) {
	Convey("Given a sweep over the input space", t, func() {
		Convey("Then in-range inputs score within [0, 1000]", func() {
			for acc := 0.0; acc <= 100; acc += 0.25 {
				for _, chars := range []int{0, 1, 199, 200, 201, 600, 10_000} {
					for hints := 0; hints <= 25; hints += 5 {
						s := Calculate(Input{Accuracy: acc, CharsWritten: chars, HintsUsed: hints, TargetChars: 200})
						So(s, ShouldBeBetweenOrEqual, 0, 1000)
					}
				}
			}
		})

		Convey("Then the score never decreases as accuracy grows", func() {
			prev := 0
			for acc := 0.0; acc <= 100; acc += 0.05 {
				s := Calculate(Input{Accuracy: acc, CharsWritten: 150, TargetChars: 200})
				So(s, ShouldBeGreaterThanOrEqualTo, prev)
				prev = s
			}
		})
	})
}

func TestCalculateOutOfRange(t *testing.T) {
	Convey("Given inputs outside the usual ranges", t, func() {
		Convey("When accuracy is above 100", func() {
			Convey("Then the base grows linearly past 600", func() {
				So(Calculate(Input{Accuracy: 150, CharsWritten: 100}), ShouldEqual, 1300)
			})
		})

		Convey("When the hint count is negative", func() {
			Convey("Then the penalty turns into points", func() {
				So(Penalty(-1), ShouldEqual, -50)
				So(Calculate(Input{Accuracy: 100, CharsWritten: 100, HintsUsed: -2}), ShouldEqual, 1100)
				So(Calculate(Input{Accuracy: 50, HintsUsed: -1}), ShouldEqual, 350)
			})
		})

		Convey("When accuracy is negative", func() {
			Convey("Then the total is floored at zero", func() {
				So(Calculate(Input{Accuracy: -20, CharsWritten: 100}), ShouldEqual, 0)
				So(Calculate(Input{Accuracy: -5, HintsUsed: -1}), ShouldEqual, 20)
			})
		})

		Convey("When accuracy is NaN", func() {
			Convey("Then the render scores zero", func() {
				So(Calculate(Input{Accuracy: math.NaN(), CharsWritten: 10}), ShouldEqual, 0)
			})
		})
	})
}
