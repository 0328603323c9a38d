// Package categorizer resolves provider taxonomy data into the local
// category hierarchy, creating shared categories on first sight.
package categorizer

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
	"github.com/ledgerlink/banksync/internal/providers"
)

// Sources of a categorization decision.
const (
	SourceProvider = "provider"
	SourceFallback = "fallback"
)

// FallbackCategoryName is the shared catch-all used when the provider
// supplies no taxonomy data.
const FallbackCategoryName = "Uncategorized"

// palette is the fixed set of colors assigned to created categories.
var palette = []string{
	"#4E79A7", "#F28E2B", "#E15759", "#76B7B2", "#59A14F",
	"#EDC948", "#B07AA1", "#FF9DA7", "#9C755F", "#BAB0AC",
}

// Result is a categorization decision.
type Result struct {
	CategoryID *string
	Confidence float64
	Source     string
}

// Categorizer maps provider taxonomy paths onto the local two-level
// category tree. Bank-derived categories live in the shared taxonomy, not
// under any one user.
type Categorizer struct {
	repo   storage.CategoryRepository
	cache  *MemoryCache
	logger *slog.Logger
}

// NewCategorizer creates a categorizer with a fresh cache.
func NewCategorizer(repo storage.CategoryRepository, logger *slog.Logger) *Categorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Categorizer{
		repo:   repo,
		cache:  NewMemoryCache(),
		logger: logger,
	}
}

// Categorize resolves a category for the transaction. Provider taxonomy
// data yields confidence 90; without it the shared fallback category is
// used at confidence 0.
func (c *Categorizer) Categorize(tx providers.Transaction) (Result, error) {
	parent, child := splitTaxonomy(tx.Category)
	if parent == "" {
		return c.fallback()
	}

	parentID, err := c.resolve(parent, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve category %q: %w", parent, err)
	}

	categoryID := parentID
	if child != "" {
		categoryID, err = c.resolve(child, &parentID)
		if err != nil {
			return Result{}, fmt.Errorf("failed to resolve category %q under %q: %w", child, parent, err)
		}
	}

	return Result{
		CategoryID: &categoryID,
		Confidence: 90,
		Source:     SourceProvider,
	}, nil
}

// fallback resolves the shared catch-all category.
func (c *Categorizer) fallback() (Result, error) {
	id, err := c.resolve(FallbackCategoryName, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve fallback category: %w", err)
	}
	return Result{
		CategoryID: &id,
		Confidence: 0,
		Source:     SourceFallback,
	}, nil
}

// resolve finds or creates a shared category by normalized name, consulting
// the cache first. A cached id whose category has since been deleted is
// evicted and re-resolved.
func (c *Categorizer) resolve(name string, parentID *string) (string, error) {
	key := cacheKey{Name: name}
	if parentID != nil {
		key.Parent = *parentID
	}

	if id, found := c.cache.Get(key); found {
		cat, err := c.repo.GetCategory(id)
		if err != nil {
			return "", err
		}
		if cat != nil {
			return id, nil
		}
		// Stale entry: the category was deleted underneath us.
		c.cache.Delete(key)
		c.logger.Debug("evicted stale category cache entry", "name", name, "category_id", id)
	}

	cat, err := c.repo.FindCategoryByName(name, parentID)
	if err != nil {
		return "", err
	}

	if cat == nil {
		cat = &storage.Category{
			ID:          uuid.NewString(),
			Name:        name,
			ParentID:    parentID,
			OwnerUserID: Shared().ownerColumn(),
			Color:       colorFor(name),
		}
		if err := c.repo.CreateCategory(cat); err != nil {
			return "", err
		}
		c.logger.Info("created category", "name", name, "category_id", cat.ID)
	}

	c.cache.Set(key, cat.ID)
	return cat.ID, nil
}

// splitTaxonomy extracts the normalized (parent, child) names from a
// provider category path. Paths deeper than two levels keep the broadest
// and the most specific entries.
func splitTaxonomy(path []string) (parent, child string) {
	var names []string
	for _, raw := range path {
		if name := NormalizeName(raw); name != "" {
			names = append(names, name)
		}
	}

	switch len(names) {
	case 0:
		return "", ""
	case 1:
		return names[0], ""
	default:
		return names[0], names[len(names)-1]
	}
}

// NormalizeName canonicalizes a provider category name: hyphens become
// spaces, whitespace runs collapse, and each word is capitalized.
func NormalizeName(raw string) string {
	cleaned := strings.ReplaceAll(raw, "-", " ")
	words := strings.Fields(strings.ToLower(cleaned))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// colorFor picks a stable palette color for a category name.
func colorFor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return palette[int(h.Sum32())%len(palette)]
}
