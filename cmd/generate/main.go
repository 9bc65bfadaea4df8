package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"jimeng-image-generator/internal/config"
	"jimeng-image-generator/internal/inject"
	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/models"
	"jimeng-image-generator/internal/services"
)

func main() {
	_ = godotenv.Load()

	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "generate",
		Usage:     "generate images with the Jimeng 4.0 API",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "prompt text"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "text file with one prompt per line (# starts a comment)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "output", Usage: "output directory"},
			&cli.StringFlag{Name: "size", Aliases: []string{"s"}, Value: models.DefaultSize, Usage: "image size (" + strings.Join(models.ValidSizes, ", ") + ")"},
			&cli.IntFlag{Name: "count", Aliases: []string{"c"}, Value: models.DefaultCount, Usage: "number of images, 1-10"},
			&cli.Int64Flag{Name: "seed", Value: models.DefaultSeed, Usage: "random seed, -1 lets the server choose"},
			&cli.Float64Flag{Name: "scale", Value: models.DefaultScale, Usage: "prompt influence, 0-1"},
			&cli.BoolFlag{Name: "no-watermark", Usage: "do not add a watermark"},
			&cli.StringFlag{Name: "access-key", Aliases: []string{"ak"}, EnvVars: []string{"VOLCENGINE_ACCESS_KEY"}, Usage: "Volcengine access key"},
			&cli.StringFlag{Name: "secret-key", Aliases: []string{"sk"}, EnvVars: []string{"VOLCENGINE_SECRET_KEY"}, Usage: "Volcengine secret key"},
			&cli.BoolFlag{Name: "preview", Usage: "preview the first saved image (not supported)"},
			&cli.BoolFlag{Name: "placeholder-on-failure", Usage: "return placeholder images when the API is unreachable"},
		},
		Action: generate,
	}
}

func generate(c *cli.Context) error {
	cfg := config.FromEnv()
	cfg.AccessKey = lo.Ternary(c.String("access-key") != "", c.String("access-key"), cfg.AccessKey)
	cfg.SecretKey = lo.Ternary(c.String("secret-key") != "", c.String("secret-key"), cfg.SecretKey)
	cfg.OutputDir = c.String("output")
	cfg.PlaceholderOnFailure = cfg.PlaceholderOnFailure || c.Bool("placeholder-on-failure")
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}

	logger := log.New(c.App.ErrWriter, log.ParseLevel(cfg.LogLevel))
	ctx := log.NewContext(c.Context, logger)

	prompts, err := readPrompts(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}

	requests := make([]models.GenerationRequest, 0, len(prompts))
	for _, prompt := range prompts {
		req := models.GenerationRequest{
			Prompt:    strings.TrimSpace(prompt),
			Size:      c.String("size"),
			Count:     c.Int("count"),
			Seed:      c.Int64("seed"),
			Scale:     c.Float64("scale"),
			Watermark: !c.Bool("no-watermark"),
		}
		if err := services.Validate(req); err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}
		requests = append(requests, req)
	}

	injector := inject.Setup(ctx, cfg)
	defer injector.Shutdown()
	service := do.MustInvoke[*services.GenerationService](injector)

	return run(ctx, c, service, requests)
}

func run(ctx context.Context, c *cli.Context, service *services.GenerationService, requests []models.GenerationRequest) error {
	out := c.App.Writer
	var saved []string

	for _, req := range requests {
		fmt.Fprintf(out, "\nGenerating: %s\n", req.Prompt)
		fmt.Fprintf(out, "size=%s count=%d seed=%d scale=%g watermark=%t\n", req.Size, req.Count, req.Seed, req.Scale, req.Watermark)

		result, err := service.Generate(ctx, req)
		if err != nil {
			var validationErr *services.ValidationError
			if errors.As(err, &validationErr) {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			fmt.Fprintf(out, "generation failed: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "saved %d of %d images to %s\n", result.Count, result.Requested, result.Dir)
		saved = append(saved, result.Files...)
	}

	if c.Bool("preview") && len(saved) > 0 {
		fmt.Fprintln(out, "preview is not supported; open the saved files directly")
	}

	fmt.Fprintf(out, "\nDone: %d images saved\n", len(saved))
	for _, path := range saved {
		fmt.Fprintf(out, "  %s\n", path)
	}
	return nil
}

// readPrompts takes prompts from --file, then --prompt, then one line of stdin.
func readPrompts(c *cli.Context) ([]string, error) {
	if path := c.String("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open prompt file: %w", err)
		}
		defer f.Close()

		prompts, err := parsePrompts(f)
		if err != nil {
			return nil, err
		}
		if len(prompts) == 0 {
			return nil, fmt.Errorf("no prompts found in %s", path)
		}
		return prompts, nil
	}

	if prompt := c.String("prompt"); prompt != "" {
		return []string{prompt}, nil
	}

	fmt.Fprint(c.App.Writer, "Enter prompt: ")
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read prompt: %w", err)
	}
	if strings.TrimSpace(line) == "" {
		return nil, errors.New("no prompt provided")
	}
	return []string{strings.TrimSpace(line)}, nil
}

func parsePrompts(r io.Reader) ([]string, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}
	return prompts, nil
}
