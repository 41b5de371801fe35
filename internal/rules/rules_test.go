package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/engine"
)

const sampleDefinitions = `
users:
  user-1:
    - id: recipe-1
      title: Commute tagger
      conditions:
        - property: sportType
          operator: "="
          value: Ride
        - property: distance
          operator: "<"
          value: 15
    - id: recipe-2
      title: Paused recipe
      disabled: true
      conditions:
        - property: trainer
          operator: "="
          value: true
  user-2:
    - id: recipe-3
      title: Catch-all
      conditions: []
`

func writeDefinitions(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipes.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write definitions: %v", err)
	}
	return path
}

func TestNewFileSourceLoadsValidDefinitions(t *testing.T) {
	path := writeDefinitions(t, sampleDefinitions)

	src, err := NewFileSource(path, engine.ValidateCondition)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	recipes, err := src.RecipesFor(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RecipesFor: %v", err)
	}
	if len(recipes) != 2 {
		t.Fatalf("got %d recipes, want 2", len(recipes))
	}
	if recipes[0].ID != "recipe-1" || recipes[1].ID != "recipe-2" {
		t.Fatalf("recipes out of file order: %q, %q", recipes[0].ID, recipes[1].ID)
	}
	if !recipes[1].Disabled {
		t.Fatalf("recipe-2 should be disabled")
	}
	if recipes[0].Conditions[0].Operator != domain.OperatorEqual {
		t.Fatalf("got operator %q", recipes[0].Conditions[0].Operator)
	}

	empty, err := src.RecipesFor(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("RecipesFor: %v", err)
	}
	if len(empty) != 1 || len(empty[0].Conditions) != 0 {
		t.Fatalf("conditionless recipe should load: %+v", empty)
	}

	unknown, err := src.RecipesFor(context.Background(), "nobody")
	if err != nil || unknown != nil {
		t.Fatalf("unknown user: got %v, %v", unknown, err)
	}
}

func TestNewFileSourceRejectsInvalidConditions(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		wantErr  error
	}{
		{
			name: "unknown property",
			contents: `
users:
  user-1:
    - id: r1
      title: Bad property
      conditions:
        - {property: winded, operator: "=", value: yes}
`,
			wantErr: engine.ErrUnknownProperty,
		},
		{
			name: "illegal operator",
			contents: `
users:
  user-1:
    - id: r1
      title: Bad operator
      conditions:
        - {property: name, operator: ">", value: abc}
`,
			wantErr: engine.ErrUnsupportedOperator,
		},
		{
			name: "unparseable value",
			contents: `
users:
  user-1:
    - id: r1
      title: Bad value
      conditions:
        - {property: distance, operator: ">", value: far}
`,
			wantErr: engine.ErrInvalidConditionValue,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeDefinitions(t, tc.contents)
			_, err := NewFileSource(path, engine.ValidateCondition)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "user user-1 recipe r1 condition 0") {
				t.Fatalf("error lacks author context: %v", err)
			}
		})
	}
}

func TestNewFileSourceRejectsDuplicateRecipeIDs(t *testing.T) {
	path := writeDefinitions(t, `
users:
  user-1:
    - id: r1
      title: First
      conditions: []
    - id: r1
      title: Second
      conditions: []
`)
	_, err := NewFileSource(path, nil)
	if err == nil || !strings.Contains(err.Error(), "duplicate recipe id r1") {
		t.Fatalf("got %v, want duplicate id error", err)
	}
}

func TestNewFileSourceRejectsMissingRecipeID(t *testing.T) {
	path := writeDefinitions(t, `
users:
  user-1:
    - title: Anonymous
      conditions: []
`)
	_, err := NewFileSource(path, nil)
	if err == nil || !strings.Contains(err.Error(), "has no id") {
		t.Fatalf("got %v, want missing id error", err)
	}
}

func TestNewFileSourceFileErrors(t *testing.T) {
	if _, err := NewFileSource(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatalf("missing file should error")
	}

	path := writeDefinitions(t, "users: [not, a, map]")
	if _, err := NewFileSource(path, nil); err == nil {
		t.Fatalf("malformed document should error")
	}
}
