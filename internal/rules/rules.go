// Package rules loads automation recipes from a YAML definitions file.
//
// The file is a static input: recipes are authored out of band and read once
// at startup. Every condition is vetted at load time so configuration mistakes
// surface immediately instead of during evaluation.
package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/observability"
)

// Validator vets a single condition at load time. Production wiring passes
// engine.ValidateCondition.
type Validator func(cond domain.Condition) error

// document is the on-disk shape of the recipe definitions file.
type document struct {
	Users map[string][]domain.Recipe `yaml:"users"`
}

// FileSource serves recipes parsed from a YAML definitions file.
type FileSource struct {
	recipes map[string][]domain.Recipe
}

// NewFileSource reads and validates the definitions file at path. A recipe
// with no conditions is legal (it never matches); a recipe that fails
// validation rejects the whole file.
func NewFileSource(path string, validate Validator) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe definitions: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing recipe definitions: %w", err)
	}

	total := 0
	for userID, recipes := range doc.Users {
		total += len(recipes)
		seen := make(map[string]struct{}, len(recipes))
		for _, recipe := range recipes {
			if recipe.ID == "" {
				return nil, fmt.Errorf("user %s: recipe %q has no id", userID, recipe.Title)
			}
			if _, dup := seen[recipe.ID]; dup {
				return nil, fmt.Errorf("user %s: duplicate recipe id %s", userID, recipe.ID)
			}
			seen[recipe.ID] = struct{}{}

			if validate == nil {
				continue
			}
			for i, cond := range recipe.Conditions {
				if err := validate(cond); err != nil {
					return nil, fmt.Errorf("user %s recipe %s condition %d: %w", userID, recipe.ID, i, err)
				}
			}
		}
	}

	observability.RecordRecipesLoaded(len(doc.Users), total)
	return &FileSource{recipes: doc.Users}, nil
}

// RecipesFor returns the user's recipes in file order. Unknown users get an
// empty list, not an error.
func (s *FileSource) RecipesFor(ctx context.Context, userID string) ([]domain.Recipe, error) {
	recipes, ok := s.recipes[userID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Recipe, len(recipes))
	copy(out, recipes)
	return out, nil
}

// Users returns every user ID with at least one recipe defined.
func (s *FileSource) Users() []string {
	ids := make([]string, 0, len(s.recipes))
	for id := range s.recipes {
		ids = append(ids, id)
	}
	return ids
}
