package main

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/stylewars/internal/adapters/raster"
	"github.com/okian/stylewars/internal/domain/challenge"
	"github.com/okian/stylewars/internal/domain/pixel"
	"github.com/okian/stylewars/internal/domain/scoring"
)

type offlineOptions struct {
	user        string
	target      string
	out         string
	chars       int
	hints       int
	targetChars int
}

func newScoreCmd() *cobra.Command {
	opts := &offlineOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a rendered PNG against a target PNG",
		Long: "Score compares --user with --target the way the service does. The target is scaled to the\n" +
			"400x300 frame; the user render is not, so a render of any other size scores 0.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, target, err := loadPair(opts)
			if err != nil {
				return err
			}
			res := pixel.CompareDetailed(user.Pix, target.Pix)
			score := scoring.Calculate(scoring.Input{
				Accuracy:     res.Accuracy,
				CharsWritten: opts.chars,
				HintsUsed:    opts.hints,
				TargetChars:  opts.targetChars,
			})
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "accuracy: %.2f%% (%d/%d pixels)\nscore: %d\n",
				res.Accuracy, res.Matched, res.Total, score)
			return err
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlag)
	addPairFlags(cmd, opts)
	fs.IntVar(&opts.chars, "chars", 0, "characters of CSS written")
	fs.IntVar(&opts.hints, "hints", 0, "hints used")
	fs.IntVar(&opts.targetChars, "target-chars", scoring.DefaultTargetChars, "CSS length that earns the full bonus")
	return cmd
}

func newDiffCmd() *cobra.Command {
	opts := &offlineOptions{}
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Write a PNG marking the pixels where a render differs from its target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, target, err := loadPair(opts)
			if err != nil {
				return err
			}
			img, err := raster.Diff(user, target, challenge.FrameWidth, challenge.FrameHeight)
			if err != nil {
				return err
			}
			if err := writePNGFile(opts.out, img); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.out)
			return err
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlag)
	addPairFlags(cmd, opts)
	fs.StringVarP(&opts.out, "out", "o", "diff.png", "output PNG")
	return cmd
}

func addPairFlags(cmd *cobra.Command, opts *offlineOptions) {
	fs := cmd.Flags()
	fs.StringVarP(&opts.user, "user", "u", "", "rendered PNG")
	fs.StringVarP(&opts.target, "target", "t", "", "target PNG")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("target")
}

// loadPair reads the user render as is and the target scaled to the frame.
func loadPair(opts *offlineOptions) (user, target *image.NRGBA, err error) {
	if opts.chars < 0 || opts.hints < 0 {
		return nil, nil, errors.New("--chars and --hints must not be negative")
	}
	if user, err = readPNGFile(opts.user); err != nil {
		return nil, nil, err
	}
	t, err := readPNGFile(opts.target)
	if err != nil {
		return nil, nil, err
	}
	return user, raster.Normalize(t, challenge.FrameWidth, challenge.FrameHeight), nil
}

func readPNGFile(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := raster.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func writePNGFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := raster.EncodePNG(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
