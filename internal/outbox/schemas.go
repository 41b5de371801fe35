package outbox

const recipeEvaluatedSchema = `{
  "type": "object",
  "title": "RecipeEvaluated",
  "properties": {
    "activity_id": {"type": "integer"},
    "user_id": {"type": "string"},
    "recipe_id": {"type": "string"},
    "recipe_title": {"type": "string"},
    "matched": {"type": "boolean"},
    "conditions": {"type": "integer"},
    "evaluated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "recipe_id", "matched", "conditions", "evaluated_at"],
  "additionalProperties": false
}`
