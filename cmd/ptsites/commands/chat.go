package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/pkg/fetcher"
	"github.com/jmylchreest/ptsites/pkg/vision"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the configured vision model",
	Long: `Send a message to the vision model. Without a message, read messages
from stdin line by line and keep the conversation going; "#清除" starts over.`,
	RunE: runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question without conversation history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, a *vision.Answerer) (any, error) {
			return a.QuestionAnswer(ctx, strings.Join(args, " "))
		})
	},
}

var translateCmd = &cobra.Command{
	Use:   "translate <text>",
	Short: "Translate text to Chinese",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, a *vision.Answerer) (any, error) {
			return a.Translate(ctx, strings.Join(args, " "))
		})
	},
}

var mediaNameCmd = &cobra.Command{
	Use:   "media-name <filename>",
	Short: "Extract title, year, season and episode from a release name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, a *vision.Answerer) (any, error) {
			info, err := a.MediaName(ctx, args[0])
			var perr *vision.ParseError
			if errors.As(err, &perr) {
				logger.Warn("model answer is not valid JSON", "content", perr.Content)
			}
			return info, err
		})
	},
}

var captchaCmd = &cobra.Command{
	Use:   "captcha <image file or URL>",
	Short: "Read the characters of a captcha image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := imageRef(args[0])
		if err != nil {
			return err
		}
		return oneShot(cmd, func(ctx context.Context, a *vision.Answerer) (any, error) {
			return a.CaptchaWithImage(ctx, ref)
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd, askCmd, translateCmd, mediaNameCmd, captchaCmd)
	chatCmd.Flags().StringP("user", "u", "cli", "conversation id")
}

func oneShot(cmd *cobra.Command, fn func(ctx context.Context, a *vision.Answerer) (any, error)) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	result, err := fn(ctx, a.answerer)
	if err != nil {
		return describeVisionError(err)
	}
	return writeResults(cmd, []any{result})
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	user, _ := cmd.Flags().GetString("user")
	if len(args) > 0 {
		reply, err := a.answerer.Respond(ctx, strings.Join(args, " "), user)
		if err != nil {
			return describeVisionError(err)
		}
		return writeResults(cmd, []any{reply})
	}

	scanner := bufio.NewScanner(os.Stdin)
	out := cmd.OutOrStdout()
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		reply, err := a.answerer.Respond(ctx, text, user)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), describeVisionError(err))
			continue
		}
		fmt.Fprintln(out, reply)
	}
}

// describeVisionError points at the missing settings of an unconfigured
// backend.
func describeVisionError(err error) error {
	if errors.Is(err, vision.ErrNotConfigured) {
		return fmt.Errorf("%w: set vision.base_url and vision.api_key", err)
	}
	return err
}

// imageRef turns a local file into a data URI; URLs are passed through.
func imageRef(arg string) (string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") || strings.HasPrefix(arg, "data:") {
		return arg, nil
	}
	data, err := os.ReadFile(arg) //#nosec G304 -- CLI reads a user-specified image
	if err != nil {
		return "", err
	}
	mime, err := fetcher.SniffImageMIME(data, "")
	if err != nil {
		return "", fmt.Errorf("%s: %w", arg, err)
	}
	return fetcher.DataURI(mime, data), nil
}
