package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ptsites/pkg/phash"
	"github.com/jmylchreest/ptsites/pkg/site"
)

var hashCmd = &cobra.Command{
	Use:   "hash <image file or URL> [image...]",
	Short: "Print the perceptual hash of captcha images and their cached answers",
	Long: `Compute the perceptual hash used as the answer cache key. With more than
one image, the similarity of each image to the first is printed as well.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().String("remember", "", "store this answer for the first image")
}

// hashResult describes one hashed image.
type hashResult struct {
	Image      string  `json:"image" yaml:"image"`
	Hash       string  `json:"hash" yaml:"hash"`
	Answer     string  `json:"answer,omitempty" yaml:"answer,omitempty"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
}

func (h hashResult) Summary() []string {
	line := fmt.Sprintf("%s %s %.2f", h.Hash, h.Image, h.Similarity)
	if h.Answer != "" {
		line += " => " + h.Answer
	}
	return []string{line}
}

func runHash(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	client := site.NewTransport(a.cfg.SiteTransport())
	defer client.Close()

	results := make([]hashResult, 0, len(args))
	for _, arg := range args {
		data, err := readImage(ctx, client, arg)
		if err != nil {
			return err
		}
		hash, err := phash.Compute(data)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		res := hashResult{Image: arg, Hash: hash, Similarity: 1}
		if len(results) > 0 {
			res.Similarity = phash.Similarity(results[0].Hash, hash)
		}
		if answer, ok, err := a.cache.Lookup(hash); err == nil && ok {
			res.Answer = answer
		}
		results = append(results, res)
	}

	if answer, _ := cmd.Flags().GetString("remember"); answer != "" {
		if err := a.cache.Store(results[0].Hash, answer); err != nil {
			return err
		}
		results[0].Answer = answer
		logInfo("Stored answer in %s", a.cache.Path())
	}

	return writeResults(cmd, asAny(results))
}

func readImage(ctx context.Context, client *site.Transport, arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		content, err := client.Download(ctx, site.Descriptor{URL: arg}, arg)
		if err != nil {
			return nil, err
		}
		return content.Body, nil
	}
	return os.ReadFile(arg) //#nosec G304 -- CLI reads a user-specified image
}
