package transition

import (
	"testing"

	"github.com/scmc-ops/hoscad/internal/model"
)

func strptr(s string) *string { return &s }

func TestEvaluateAvailableReleasesUnit(t *testing.T) {
	prev := &model.Unit{UnitID: "M1", Status: model.StatusTransporting, Incident: "26-0042", Note: "old"}
	merged := &model.Unit{UnitID: "M1", Status: model.StatusAvailable, Incident: "26-0042", Note: "old"}
	patch := &model.UnitPatch{Status: strptr("AV")}

	fx := Evaluate(prev, merged, patch)
	if fx.CloseIncident != "26-0042" {
		t.Fatalf("CloseIncident = %q, want 26-0042", fx.CloseIncident)
	}
	if !fx.ClearIncidentRef {
		t.Fatal("expected ClearIncidentRef")
	}
	if !fx.ClearNote {
		t.Fatal("expected ClearNote when the write carries no note")
	}
}

func TestEvaluateAvailableKeepsExplicitNote(t *testing.T) {
	prev := &model.Unit{UnitID: "M1", Status: model.StatusOnScene, Incident: "26-0042"}
	merged := &model.Unit{UnitID: "M1", Status: model.StatusAvailable, Note: "fuel stop"}
	patch := &model.UnitPatch{Status: strptr("AV"), Note: strptr("fuel stop")}

	fx := Evaluate(prev, merged, patch)
	if fx.ClearNote {
		t.Fatal("note supplied in the same write must survive")
	}
	if fx.CloseIncident != "26-0042" {
		t.Fatalf("CloseIncident = %q", fx.CloseIncident)
	}
}

func TestEvaluateAvailableWithoutIncident(t *testing.T) {
	prev := &model.Unit{UnitID: "M2", Status: model.StatusBreak}
	merged := &model.Unit{UnitID: "M2", Status: model.StatusAvailable}

	fx := Evaluate(prev, merged, &model.UnitPatch{Status: strptr("AV")})
	if fx.CloseIncident != "" {
		t.Fatalf("nothing to close, got %q", fx.CloseIncident)
	}
	if !fx.ClearIncidentRef {
		t.Fatal("incident ref still cleared on AV")
	}
}

func TestEvaluatePendingAutoCreates(t *testing.T) {
	merged := &model.Unit{UnitID: "M3", Status: model.StatusPending}
	fx := Evaluate(nil, merged, &model.UnitPatch{Status: strptr("D")})
	if !fx.AutoCreateIncident {
		t.Fatal("pending dispatch with no incident must auto-create")
	}
}

func TestEvaluatePendingWithIncidentDoesNot(t *testing.T) {
	merged := &model.Unit{UnitID: "M3", Status: model.StatusPending, Incident: "26-0001"}
	patch := &model.UnitPatch{Status: strptr("D"), Incident: strptr("26-0001")}
	fx := Evaluate(nil, merged, patch)
	if fx.AutoCreateIncident {
		t.Fatal("explicit incident suppresses auto-create")
	}
	if fx.ActivateIncident != "26-0001" {
		t.Fatalf("ActivateIncident = %q", fx.ActivateIncident)
	}
}

func TestEvaluateExplicitIncidentActivates(t *testing.T) {
	prev := &model.Unit{UnitID: "M4", Status: model.StatusAvailable}
	merged := &model.Unit{UnitID: "M4", Status: model.StatusEnroute, Incident: "26-0100"}
	patch := &model.UnitPatch{Status: strptr("DE"), Incident: strptr("26-0100")}

	fx := Evaluate(prev, merged, patch)
	if fx.ActivateIncident != "26-0100" {
		t.Fatalf("ActivateIncident = %q", fx.ActivateIncident)
	}
	if fx.AutoCreateIncident || fx.ClearIncidentRef || fx.ClearNote {
		t.Fatalf("unexpected effects: %+v", fx)
	}
}

func TestEvaluateAvailableWinsOverIncidentPatch(t *testing.T) {
	prev := &model.Unit{UnitID: "M5", Status: model.StatusOnScene, Incident: "26-0007"}
	merged := &model.Unit{UnitID: "M5", Status: model.StatusAvailable, Incident: "26-0009"}
	patch := &model.UnitPatch{Status: strptr("AV"), Incident: strptr("26-0009")}

	fx := Evaluate(prev, merged, patch)
	if fx.ActivateIncident != "" {
		t.Fatal("available release must win over an incident patch")
	}
	if !fx.ClearIncidentRef {
		t.Fatal("expected ClearIncidentRef")
	}
}

func TestEvaluatePlainUpdateNoEffects(t *testing.T) {
	prev := &model.Unit{UnitID: "M6", Status: model.StatusEnroute, Incident: "26-0002"}
	merged := &model.Unit{UnitID: "M6", Status: model.StatusOnScene, Incident: "26-0002"}
	patch := &model.UnitPatch{Status: strptr("OS")}

	if fx := Evaluate(prev, merged, patch); fx != (Effects{}) {
		t.Fatalf("unexpected effects: %+v", fx)
	}
}
