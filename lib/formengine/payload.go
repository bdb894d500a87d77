package formengine

import (
	"strings"

	"github.com/getevo/evo/v2/lib/log"
)

// Payload is the body handed to the check-in submission API
type Payload map[string]any

// NormalizeKey lower-cases name and replaces spaces with underscores.
// On the document screen a leading "doc_" is stripped.
func NormalizeKey(screen Screen, name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.Join(strings.Fields(key), "_")
	if screen == ScreenDocument {
		key = strings.TrimPrefix(key, "doc_")
	}
	return key
}

// BuildPayload assembles the submission for one screen.
//
// Visible default fields become top-level keys and the rest are folded into
// context.extras. Document screens nest the object under "document".
// When two fields normalize to the same key the first in display order wins.
func BuildPayload(screen Screen, attrs []Attribute, snap Snapshot) Payload {
	ev := NewEvaluator(snap.Values)
	body := make(map[string]any)
	extras := make(map[string]any)
	seen := map[string]string{"context": "(reserved)", "is_tnc_accepted": "(reserved)"}

	for _, attr := range SortAttributes(attrs) {
		if !ev.Visible(attr) {
			continue
		}
		fv, ok := snap.Values[attr.Name]
		if !ok {
			continue
		}
		key := NormalizeKey(screen, attr.Name)
		if owner, taken := seen[key]; taken {
			log.Warning("[Form:Payload] Field %q normalizes to %q already used by %q, skipped", attr.Name, key, owner)
			continue
		}
		seen[key] = attr.Name
		if fv.IsDefault {
			body[key] = copyValue(fv.Value)
		} else {
			extras[key] = copyValue(fv.Value)
		}
	}
	body["context"] = map[string]any{"extras": extras}

	if screen == ScreenDocument {
		return Payload{
			"document":        body,
			"is_tnc_accepted": true,
		}
	}
	body["is_tnc_accepted"] = true
	return body
}
