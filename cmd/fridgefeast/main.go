package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"fridgefeast/internal/ai"
	"fridgefeast/internal/cache"
	"fridgefeast/internal/config"
	"fridgefeast/internal/favorites"
	"fridgefeast/internal/images"
	"fridgefeast/internal/session"
	"fridgefeast/internal/telemetry"
)

func main() {
	var ingredients string
	var recipe string
	var serve bool
	var addr string
	var help bool

	flag.StringVar(&ingredients, "ingredients", "", "Suggest recipes for these ingredients and exit")
	flag.StringVar(&ingredients, "i", "", "Suggest recipes for these ingredients and exit (short form)")
	flag.StringVar(&recipe, "recipe", "", "With -i, print this recipe and its shopping list")
	flag.StringVar(&recipe, "r", "", "With -i, print this recipe and its shopping list (short form)")
	flag.BoolVar(&serve, "serve", false, "Run HTTP server mode")
	flag.StringVar(&addr, "addr", ":8080", "Address to bind in server mode")
	flag.BoolVar(&help, "help", false, "Show help message")
	flag.BoolVar(&help, "h", false, "Show help message")
	flag.Parse()

	if help {
		showHelp()
		return
	}
	if recipe != "" && ingredients == "" {
		fmt.Println("Error: -r needs -i")
		showHelp()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, ingredients, recipe, serve, addr); err != nil {
		stop()
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, ingredients, recipe string, serve bool, addr string) error {
	tel, err := telemetry.Setup(ctx, cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(tel.Logger)
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush telemetry: %v\n", err)
		}
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	switch {
	case serve:
		return runServer(ctx, a, addr)
	case ingredients != "":
		return runOnce(ctx, a, os.Stdout, ingredients, recipe)
	default:
		return runREPL(ctx, a, os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	}
}

// app holds what every session shares.
type app struct {
	cfg     *config.Config
	cache   cache.Cache
	backend ai.Backend
	images  session.ImageFinder
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	c, err := cache.MakeCache(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	var recipes cache.Cache
	if cfg.Storage.CacheRecipes {
		recipes = c
	}
	backend, err := ai.NewFromConfig(ctx, cfg.AI, recipes)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipe backend: %w", err)
	}

	a := &app{cfg: cfg, cache: c, backend: backend}
	if cfg.Images.SearchURL != "" {
		a.images = images.NewFinder(cfg.Images.SearchURL, cfg.AI.Timeout)
	}
	slog.InfoContext(ctx, "app ready", "provider", cfg.AI.Provider, "blob", cfg.Storage.UsesBlobStorage(), "images", a.images != nil)
	return a, nil
}

// newSession starts a controller whose favorites live under key.
func (a *app) newSession(ctx context.Context, key string, opts ...session.Option) *session.Controller {
	var storeOpts []favorites.Option
	if a.cfg.Favorites.Passphrase != "" {
		storeOpts = append(storeOpts, favorites.WithPassphrase(a.cfg.Favorites.Passphrase))
	}
	store := favorites.NewStore(a.cache, key, storeOpts...)
	if a.images != nil {
		opts = append(opts, session.WithImageFinder(a.images))
	}
	return session.New(ctx, a.backend, store, opts...)
}

func showHelp() {
	fmt.Println("FridgeFeast - recipes from what is in your fridge")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fridgefeast                       interactive mode")
	fmt.Println("  fridgefeast -i \"eggs, spinach\"     print suggestions")
	fmt.Println("  fridgefeast -i <...> -r <recipe>  print a recipe and its shopping list")
	fmt.Println("  fridgefeast -serve [-addr :8080]  websocket server")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  AI_PROVIDER, AI_API_KEY, AI_MODEL    recipe model (mock when no key)")
	fmt.Println("  CACHE_DIR or AZURE_STORAGE_*        favorites and recipe cache")
	fmt.Println("  FAVORITES_PASSPHRASE                encrypt favorites at rest")
	fmt.Printf("  IMAGE_SEARCH_URL                    page to scrape recipe images from (%%s = title)\n")
}
