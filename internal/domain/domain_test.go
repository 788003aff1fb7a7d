package domain

import (
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

func TestCrateFilter_TypeMatch(t *testing.T) {
	libOnly := Crate{ManifestDir: "/r/lib-only", WorkspaceManifestDir: "/r", Types: []CrateType{CrateTypeLib}}
	binLib := Crate{ManifestDir: "/r/bin-lib", WorkspaceManifestDir: "/r", Types: []CrateType{CrateTypeBin, CrateTypeLib}}

	binType := CrateTypeBin
	f := &CrateFilter{Type: &binType}

	if f.MatchesCrate(libOnly, nil) {
		t.Errorf("lib-only crate matched Bin filter")
	}
	if !f.MatchesCrate(binLib, nil) {
		t.Errorf("bin+lib crate did not match Bin filter")
	}
}

func TestCrateFilter_Standalone(t *testing.T) {
	standalone := map[string]bool{"/solo": true, "/multi": false}
	soloCrate := Crate{ManifestDir: "/solo", WorkspaceManifestDir: "/solo"}
	memberCrate := Crate{ManifestDir: "/multi/a", WorkspaceManifestDir: "/multi"}
	orphanCrate := Crate{ManifestDir: "/gone/a", WorkspaceManifestDir: "/gone"}

	want := true
	f := &CrateFilter{Standalone: &want}

	if !f.MatchesCrate(soloCrate, standalone) {
		t.Errorf("standalone crate did not match standalone=true")
	}
	if f.MatchesCrate(memberCrate, standalone) {
		t.Errorf("workspace member matched standalone=true")
	}
	if f.MatchesCrate(orphanCrate, standalone) {
		t.Errorf("crate with unknown workspace matched standalone filter")
	}
}

func TestWorkspaceFilter_NoStandalone(t *testing.T) {
	f := &WorkspaceFilter{NoStandalone: true}
	if f.MatchesWorkspace(Workspace{ManifestDir: "/solo", IsStandalone: true}) {
		t.Errorf("standalone workspace matched no_standalone filter")
	}
	if !f.MatchesWorkspace(Workspace{ManifestDir: "/multi"}) {
		t.Errorf("multi-crate workspace did not match no_standalone filter")
	}
}

func TestTargetSet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ts      TargetSet
		wantErr bool
	}{
		{"workspaces only", TargetSet{Workspaces: &WorkspaceFilter{}}, false},
		{"crates only", TargetSet{Crates: &CrateFilter{}}, false},
		{"neither", TargetSet{}, true},
		{"both", TargetSet{Workspaces: &WorkspaceFilter{}, Crates: &CrateFilter{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStep_Validate(t *testing.T) {
	good := Step{Run: &RunCommandStep{Command: "true"}}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := (Step{}).Validate(); err == nil {
		t.Errorf("empty step passed validation")
	}
	both := Step{Run: &RunCommandStep{Command: "true"}, Manual: &ManualStep{Title: "x"}}
	if err := both.Validate(); err == nil {
		t.Errorf("two-variant step passed validation")
	}
}

func TestStep_Describe(t *testing.T) {
	run := Step{Run: &RunCommandStep{Command: "cargo", Args: []string{"update", "--verbose"}}}
	if got := run.Describe(); got != "RunCommand - cargo update --verbose" {
		t.Errorf("Describe() = %q", got)
	}
	manual := Step{Manual: &ManualStep{Title: "bump", Instructions: "edit Cargo.toml"}}
	if got := manual.Describe(); got != `ManualStep - Title: "bump", Instructions: "edit Cargo.toml"` {
		t.Errorf("Describe() = %q", got)
	}
}

func TestPlan_TOMLShape(t *testing.T) {
	plan := Plan{Steps: []Step{
		{Run: &RunCommandStep{Command: "cargo", Args: []string{"fmt"}}},
		{Manual: &ManualStep{Title: "review", Instructions: "read the diff"}},
	}}

	data, err := toml.Marshal(plan)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "[steps.run-command]") {
		t.Errorf("marshaled plan missing run-command table:\n%s", text)
	}
	if !strings.Contains(text, "[steps.manual-step]") {
		t.Errorf("marshaled plan missing manual-step table:\n%s", text)
	}

	var back Plan
	if err := toml.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(back.Steps) != 2 || back.Steps[0].Run == nil || back.Steps[1].Manual == nil {
		t.Errorf("round-trip lost step variants: %+v", back.Steps)
	}
	for i, s := range back.Steps {
		if err := s.Validate(); err != nil {
			t.Errorf("step %d invalid after round-trip: %v", i+1, err)
		}
	}
}

func TestResolvedTargetSet_IndexByDir(t *testing.T) {
	set := ResolvedTargetSet{Targets: []Target{
		{ManifestDir: "/a"},
		{ManifestDir: "/b", Dependencies: []string{"/a"}},
	}}
	idx := set.IndexByDir()
	if idx["/a"] != 0 || idx["/b"] != 1 {
		t.Errorf("IndexByDir() = %v", idx)
	}
}
