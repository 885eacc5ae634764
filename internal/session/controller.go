// Package session implements the interaction state machine behind one user's
// visit: ingredient search, recipe drill down, favorites and shopping lists.
//
// Methods that call an AI collaborator block until it settles but never hold
// the controller lock while doing so, so a renderer may issue new actions from
// other goroutines at any time. Every dispatched request remembers the
// navigation generation it was issued under and its result is dropped if the
// user has moved on in the meantime.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fridgefeast/internal/ai"
)

// FavoritesStore persists the favorites collection. Load never fails.
type FavoritesStore interface {
	Load(ctx context.Context) []ai.Recipe
	Save(ctx context.Context, recipes []ai.Recipe) error
}

// ImageFinder looks up a picture for a recipe title.
type ImageFinder interface {
	FindImage(ctx context.Context, query string) (string, error)
}

type Option func(*Controller)

// WithObserver registers fn to receive every snapshot. fn is called without
// the controller lock held and possibly from several goroutines.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// WithImageFinder enables the background image lookup for fetched recipes.
func WithImageFinder(f ImageFinder) Option {
	return func(c *Controller) {
		c.images = f
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(c *Controller) {
		c.id = id
	}
}

type Controller struct {
	id        string
	backend   ai.Backend
	store     FavoritesStore
	images    ImageFinder
	observers []func(Snapshot)
	tracer    trace.Tracer

	// background work (image lookups) runs on ctx and is awaited by Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	version         uint64
	view            View
	origin          View // stable view a recipe selection started from
	ingredients     string
	suggestions     []string
	recipe          *ai.Recipe
	favorites       []ai.Recipe
	shopping        *ShoppingList
	shoppingPending bool
	notice          *Notice

	// nav is bumped by every navigation; shop by every shopping list request
	nav  uint64
	shop uint64
}

// New starts a session, reading the favorites store once.
func New(ctx context.Context, backend ai.Backend, store FavoritesStore, opts ...Option) *Controller {
	c := &Controller{
		id:      uuid.NewString(),
		backend: backend,
		store:   store,
		tracer:  otel.Tracer("fridgefeast/session"),
		view:    ViewInitial,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	favorites := store.Load(ctx)
	c.favorites = lo.UniqBy(lo.Map(favorites, func(r ai.Recipe, _ int) ai.Recipe { return r.Clone() }),
		func(r ai.Recipe) string { return r.Title })
	slog.InfoContext(ctx, "session started", "session", c.id, "favorites", len(c.favorites))
	return c
}

func (c *Controller) ID() string {
	return c.id
}

// Close abandons background lookups and waits for them to return.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// publishLocked records a change. The returned snapshot must be handed to
// notify after the lock is released.
func (c *Controller) publishLocked() Snapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *Controller) notify(s Snapshot) {
	for _, fn := range c.observers {
		fn(s)
	}
}

// unlockAndNotify publishes the current state, releases the lock and tells observers.
func (c *Controller) unlockAndNotify() {
	s := c.publishLocked()
	c.mu.Unlock()
	c.notify(s)
}

func (c *Controller) inLocked(views ...View) bool {
	return slices.Contains(views, c.view)
}

func (c *Controller) rejectLocked(action string) error {
	view := c.view
	c.mu.Unlock()
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, view)
}

// validationLocked surfaces msg, releases the lock and returns err.
func (c *Controller) validationLocked(msg string, err error) error {
	c.notice = &Notice{Kind: NoticeValidation, Message: msg}
	c.unlockAndNotify()
	return err
}

func (c *Controller) favoriteIndexLocked(title string) int {
	return slices.IndexFunc(c.favorites, func(r ai.Recipe) bool { return r.Title == title })
}

// persistLocked writes favorites while the lock is held so saves land in the
// order their mutations happened. Failures only get logged.
func (c *Controller) persistLocked(ctx context.Context) {
	recipes := lo.Map(c.favorites, func(r ai.Recipe, _ int) ai.Recipe { return r.Clone() })
	if err := c.store.Save(ctx, recipes); err != nil {
		slog.ErrorContext(ctx, "failed to persist favorites", "session", c.id, "favorites", len(recipes), "error", err)
	}
}

// SetIngredients replaces the ingredient text typed by the user.
func (c *Controller) SetIngredients(text string) {
	c.mu.Lock()
	c.ingredients = text
	c.unlockAndNotify()
}

// DismissNotice clears the current message.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	if c.notice == nil {
		c.mu.Unlock()
		return
	}
	c.notice = nil
	c.unlockAndNotify()
}

// SubmitSearch asks for recipe suggestions for the current ingredient text
// and blocks until they arrive or are superseded.
func (c *Controller) SubmitSearch(ctx context.Context) error {
	c.mu.Lock()
	if !c.inLocked(ViewInitial, ViewSuggestionsLoaded, ViewViewingFavorites) {
		return c.rejectLocked("search")
	}
	ingredients := strings.TrimSpace(c.ingredients)
	if ingredients == "" {
		return c.validationLocked(msgNoIngredients, ErrEmptyIngredients)
	}
	c.nav++
	gen := c.nav
	c.view = ViewLoadingSuggestions
	c.suggestions = nil
	c.recipe = nil
	c.shopping = nil
	c.shoppingPending = false
	c.notice = nil
	c.unlockAndNotify()

	names, err := traced(ctx, c.tracer, "session.SuggestRecipes", func(ctx context.Context) ([]string, error) {
		return c.backend.SuggestRecipes(ctx, ingredients)
	})
	names = lo.Uniq(lo.Compact(lo.Map(names, func(n string, _ int) string { return strings.TrimSpace(n) })))

	c.mu.Lock()
	if gen != c.nav {
		c.mu.Unlock()
		slog.DebugContext(ctx, "dropping stale suggestions", "session", c.id, "count", len(names))
		return nil
	}
	switch {
	case err != nil:
		slog.ErrorContext(ctx, "failed to suggest recipes", "session", c.id, "error", err)
		c.view = ViewInitial
		c.notice = &Notice{Kind: NoticeFailure, Message: msgSuggestFailed}
	case len(names) == 0:
		slog.InfoContext(ctx, "no recipes found", "session", c.id, "ingredients", ingredients)
		c.view = ViewInitial
		c.notice = &Notice{Kind: NoticeEmpty, Message: msgNoRecipes}
	default:
		c.suggestions = names
		c.view = ViewSuggestionsLoaded
	}
	c.unlockAndNotify()
	return nil
}

// SelectRecipe fetches the full recipe for a suggested name and blocks until
// it arrives or is superseded.
func (c *Controller) SelectRecipe(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	c.mu.Lock()
	if !c.inLocked(ViewSuggestionsLoaded, ViewViewingFavorites) {
		return c.rejectLocked("select recipe")
	}
	if name == "" {
		return c.validationLocked(msgInvalidRecipe, ErrEmptyRecipeName)
	}
	c.nav++
	gen := c.nav
	c.origin = c.view
	c.view = ViewLoadingRecipe
	c.recipe = nil
	c.shopping = nil
	c.shoppingPending = false
	c.notice = nil
	c.unlockAndNotify()

	recipe, err := traced(ctx, c.tracer, "session.RecipeDetails", func(ctx context.Context) (*ai.Recipe, error) {
		return c.backend.RecipeDetails(ctx, name)
	})
	if err == nil && recipe == nil {
		err = fmt.Errorf("no recipe returned for %q", name)
	}

	c.mu.Lock()
	if gen != c.nav {
		c.mu.Unlock()
		slog.DebugContext(ctx, "dropping stale recipe", "session", c.id, "recipe", name)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch recipe", "session", c.id, "recipe", name, "error", err)
		c.view = c.origin
		c.notice = &Notice{Kind: NoticeFailure, Message: msgRecipeFailed}
		c.unlockAndNotify()
		return nil
	}
	r := recipe.Clone()
	c.recipe = &r
	c.shopping = nil
	c.view = ViewRecipeLoaded
	needsImage := c.images != nil && r.ImageURL == ""
	c.unlockAndNotify()

	if needsImage {
		c.lookupImage(gen, r.Title)
	}
	return nil
}

// SelectFavorite shows a saved recipe exactly as stored, without asking the
// recipe service.
func (c *Controller) SelectFavorite(title string) error {
	c.mu.Lock()
	if !c.inLocked(ViewSuggestionsLoaded, ViewViewingFavorites) {
		return c.rejectLocked("select favorite")
	}
	idx := c.favoriteIndexLocked(title)
	if idx < 0 {
		return c.validationLocked(msgUnknownFavorite, fmt.Errorf("%w: %q", ErrUnknownFavorite, title))
	}
	c.nav++
	c.origin = c.view
	r := c.favorites[idx].Clone()
	c.recipe = &r
	c.shopping = nil
	c.shoppingPending = false
	c.notice = nil
	c.view = ViewRecipeLoaded
	c.unlockAndNotify()
	return nil
}

// Back leaves the recipe (or favorites) view.
func (c *Controller) Back() error {
	c.mu.Lock()
	switch c.view {
	case ViewRecipeLoaded:
		c.recipe = nil
		c.shopping = nil
		c.shoppingPending = false
		switch {
		case len(c.suggestions) > 0:
			c.view = ViewSuggestionsLoaded
		case len(c.favorites) > 0:
			c.view = ViewViewingFavorites
		default:
			c.view = ViewInitial
		}
	case ViewViewingFavorites:
		if len(c.suggestions) > 0 {
			c.view = ViewSuggestionsLoaded
		} else {
			c.view = ViewInitial
		}
	default:
		return c.rejectLocked("back")
	}
	c.nav++
	c.notice = nil
	c.unlockAndNotify()
	return nil
}

// ViewFavorites lists saved recipes.
func (c *Controller) ViewFavorites() error {
	c.mu.Lock()
	if !c.inLocked(ViewInitial, ViewSuggestionsLoaded) {
		return c.rejectLocked("view favorites")
	}
	if len(c.favorites) == 0 {
		return c.validationLocked(msgNoFavorites, ErrNoFavorites)
	}
	c.nav++
	c.view = ViewViewingFavorites
	c.notice = nil
	c.unlockAndNotify()
	return nil
}

// NewSearch resets everything but favorites. Allowed from any view; pending
// requests are left to finish and ignored.
func (c *Controller) NewSearch() {
	c.mu.Lock()
	c.nav++
	c.shop++
	c.view = ViewInitial
	c.ingredients = ""
	c.suggestions = nil
	c.recipe = nil
	c.shopping = nil
	c.shoppingPending = false
	c.notice = nil
	c.unlockAndNotify()
}

// ToggleFavorite saves or forgets the selected recipe and reports whether it
// is a favorite afterwards. The store is written before it returns.
func (c *Controller) ToggleFavorite(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.view != ViewRecipeLoaded || c.recipe == nil {
		return false, c.rejectLocked("toggle favorite")
	}
	title := c.recipe.Title
	idx := c.favoriteIndexLocked(title)
	favorite := idx < 0
	if favorite {
		c.favorites = append(c.favorites, c.recipe.Clone())
	} else {
		c.favorites = slices.Delete(c.favorites, idx, idx+1)
	}
	c.persistLocked(ctx)
	slog.InfoContext(ctx, "toggled favorite", "session", c.id, "recipe", title, "favorite", favorite)
	c.notice = nil
	c.unlockAndNotify()
	return favorite, nil
}

// RequestShoppingList works out what to buy for the selected recipe given
// the ingredient text, and blocks until the answer arrives or is no longer
// wanted.
func (c *Controller) RequestShoppingList(ctx context.Context) error {
	c.mu.Lock()
	if c.view != ViewRecipeLoaded || c.recipe == nil {
		return c.rejectLocked("shopping list")
	}
	nav := c.nav
	c.shop++
	shop := c.shop
	available := c.ingredients
	required := slices.Clone(c.recipe.Ingredients)
	title := c.recipe.Title
	c.shoppingPending = true
	c.notice = nil
	c.unlockAndNotify()

	missing, err := traced(ctx, c.tracer, "session.ShoppingList", func(ctx context.Context) ([]string, error) {
		return c.backend.ShoppingList(ctx, available, required)
	})

	c.mu.Lock()
	if nav != c.nav || shop != c.shop {
		c.mu.Unlock()
		slog.DebugContext(ctx, "dropping stale shopping list", "session", c.id, "recipe", title)
		return nil
	}
	c.shoppingPending = false
	if err != nil {
		slog.ErrorContext(ctx, "failed to build shopping list", "session", c.id, "recipe", title, "error", err)
		c.shopping = nil
		c.notice = &Notice{Kind: NoticeFailure, Message: msgShoppingFailed}
	} else {
		if missing == nil {
			missing = []string{}
		}
		c.shopping = &ShoppingList{RecipeTitle: title, Missing: missing}
	}
	c.unlockAndNotify()
	return nil
}

func (c *Controller) lookupImage(gen uint64, title string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx := c.ctx
		url, err := traced(ctx, c.tracer, "session.FindImage", func(ctx context.Context) (string, error) {
			return c.images.FindImage(ctx, title)
		})
		if err != nil || url == "" {
			slog.DebugContext(ctx, "no image for recipe", "session", c.id, "recipe", title, "error", err)
			return
		}

		c.mu.Lock()
		if gen != c.nav || c.recipe == nil || c.recipe.Title != title {
			c.mu.Unlock()
			return
		}
		c.recipe.ImageURL = url
		if idx := c.favoriteIndexLocked(title); idx >= 0 && c.favorites[idx].ImageURL == "" {
			c.favorites[idx].ImageURL = url
			c.persistLocked(ctx)
		}
		c.unlockAndNotify()
	}()
}

func traced[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if n, ok := any(v).([]string); ok {
		span.SetAttributes(attribute.Int("result.count", len(n)))
	}
	return v, err
}
