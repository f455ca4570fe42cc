// Package transition evaluates unit status rules as explicit intents.
// The mutation handler applies the returned effects; nothing here touches
// storage, which keeps the rules table-driven and testable in isolation.
package transition

import "github.com/scmc-ops/hoscad/internal/model"

// Effects is the set of side effects a unit write implies beyond the field
// merge itself.
type Effects struct {
	// AutoCreateIncident requests issuance of a fresh incident id for a
	// unit going to pending dispatch with no incident attached.
	AutoCreateIncident bool

	// CloseIncident names an incident to force-close because its unit went
	// available. Empty means none.
	CloseIncident string

	// ClearIncidentRef clears the unit's incident field after the merge.
	ClearIncidentRef bool

	// ClearNote clears the unit's note. Only set when the caller did not
	// supply a note of their own in the same write.
	ClearNote bool

	// ActivateIncident names an explicitly attached incident that should be
	// promoted from QUEUED to ACTIVE if it is queued. Empty means none.
	ActivateIncident string
}

// Evaluate derives the side effects of a unit write. prev is the stored
// unit before the write (nil on first contact), merged is the unit after
// the patch has been applied but before effects, patch is the raw partial
// update.
func Evaluate(prev *model.Unit, merged *model.Unit, patch *model.UnitPatch) Effects {
	var fx Effects

	switch merged.Status {
	case model.StatusAvailable:
		// Going available releases the unit: its incident is force-closed
		// for everyone, the reference is dropped, and a stale note is
		// cleared unless this same write replaces it.
		if prev != nil && prev.Incident != "" {
			fx.CloseIncident = prev.Incident
		}
		fx.ClearIncidentRef = true
		if patch == nil || patch.Note == nil {
			fx.ClearNote = true
		}
	case model.StatusPending:
		if merged.Incident == "" {
			fx.AutoCreateIncident = true
		}
	}

	// An explicitly supplied incident wakes a queued event. The available
	// branch wins when both appear in one write.
	if !fx.ClearIncidentRef && patch != nil && patch.Incident != nil && merged.Incident != "" {
		fx.ActivateIncident = merged.Incident
	}

	return fx
}
