package outbox

const pointsAwardedSchema = `{
  "type": "object",
  "title": "PointsAwarded",
  "properties": {
    "event_id": {"type": "string"},
    "user_id": {"type": "string"},
    "category": {"type": "string"},
    "points": {"type": "integer"},
    "formula_version": {"type": "string"},
    "awarded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "user_id", "category", "points", "formula_version", "awarded_at"],
  "additionalProperties": false
}`

const achievementUnlockedSchema = `{
  "type": "object",
  "title": "AchievementUnlocked",
  "properties": {
    "user_id": {"type": "string"},
    "achievement_key": {"type": "string"},
    "reward_points": {"type": "integer"},
    "trigger_value": {"type": "number"},
    "unlocked_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "achievement_key", "reward_points", "trigger_value", "unlocked_at"],
  "additionalProperties": false
}`
