package data

import "testing"

func TestHasUpdateRequiresInstalled(t *testing.T) {
	tt := &Title{Status: StatusNotInstalled, UpdateAvailable: true}
	if tt.HasUpdate() {
		t.Fatalf("not installed title must not report an update")
	}
	tt.Status = StatusInstalled
	if !tt.HasUpdate() {
		t.Fatalf("installed title with update flag should report an update")
	}
}

func TestPausableKinds(t *testing.T) {
	cases := map[OperationKind]bool{
		KindInstall: true,
		KindUpdate:  true,
		KindMove:    false,
		KindRepair:  false,
	}
	for k, want := range cases {
		if got := k.Pausable(); got != want {
			t.Fatalf("%s pausable = %v, want %v", k, got, want)
		}
	}
}

func TestTitlesCloneIsDeep(t *testing.T) {
	orig := Titles{{ID: "a", Size: 1}}
	c := orig.Clone()
	c[0].Size = 99
	if orig[0].Size != 1 {
		t.Fatalf("clone shares title pointer")
	}
}
