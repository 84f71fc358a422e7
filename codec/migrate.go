package codec

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/camden-git/photowall/models"
)

// migrateEnv is what a default rule may look at besides the entry itself.
type migrateEnv struct {
	viewport Viewport
	random   func() float64
}

// migration derives a value for a field that older documents do not carry.
type migration struct {
	field  string
	derive func(env migrateEnv, entry map[string]json.RawMessage) any
}

func constant(v any) func(migrateEnv, map[string]json.RawMessage) any {
	return func(migrateEnv, map[string]json.RawMessage) any { return v }
}

// migrations is applied top to bottom; orientation precedes x/y because the
// random placement is bounded by the card footprint.
var migrations = []migration{
	{field: "timestamp", derive: constant(0)},
	{field: "isLoadingCaption", derive: constant(false)},
	{field: "rotation", derive: constant(0)},
	{field: "orientation", derive: constant(models.OrientationSquare)},
	{field: "filterType", derive: constant(models.StylePolaroid)},
	{field: "x", derive: randomAlong(func(v Viewport, w, _ float64) float64 { return v.Width - w })},
	{field: "y", derive: randomAlong(func(v Viewport, _, h float64) float64 { return v.Height - h })},
	{field: "scale", derive: constant(1)},
	{field: "zIndex", derive: constant(1)},
	{field: "isLiked", derive: constant(false)},
}

// randomAlong places a card at a random offset in [0, span), where span is the
// viewport extent minus the footprint, floored at zero.
func randomAlong(span func(v Viewport, w, h float64) float64) func(migrateEnv, map[string]json.RawMessage) any {
	return func(env migrateEnv, entry map[string]json.RawMessage) any {
		var o models.Orientation
		_ = json.Unmarshal(entry["orientation"], &o)
		w, h := o.Footprint()
		return env.random() * math.Max(0, span(env.viewport, w, h))
	}
}

// migrateEntry fills every absent or null field from the table. Present fields
// are never touched, so running it twice is the same as running it once.
func migrateEntry(env migrateEnv, entry map[string]json.RawMessage) error {
	for _, m := range migrations {
		if present(entry, m.field) {
			continue
		}
		raw, err := json.Marshal(m.derive(env, entry))
		if err != nil {
			return err
		}
		entry[m.field] = raw
	}
	return nil
}

func present(entry map[string]json.RawMessage, field string) bool {
	raw, ok := entry[field]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
