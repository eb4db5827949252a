package pointid

import (
	"testing"

	"github.com/google/uuid"
)

func TestDerive_Golden(t *testing.T) {
	if got := Namespace.String(); got != "ae675da3-c12f-5d0a-a618-7d5572b7497f" {
		t.Fatalf("namespace changed: %s", got)
	}
	cases := map[int]string{
		0: "68dd51cd-576c-5ba2-890d-8f981e7fefbe",
		1: "630fb638-73e0-540a-8a89-9f8e2d339de6",
	}
	for idx, want := range cases {
		if got := Derive("CODUL_MUNCII/A145", idx); got != want {
			t.Errorf("Derive(%d) = %s, want %s", idx, got, want)
		}
	}
}

func TestDerive_StableAndVersion5(t *testing.T) {
	a := Derive("CODUL_PENAL/A1", 3)
	b := Derive("CODUL_PENAL/A1", 3)
	if a != b {
		t.Fatalf("unstable id: %s vs %s", a, b)
	}
	u, err := uuid.Parse(a)
	if err != nil {
		t.Fatal(err)
	}
	if u.Version() != 5 {
		t.Errorf("version = %d", u.Version())
	}
}

func TestDerive_Distinct(t *testing.T) {
	seen := map[string]string{}
	for _, ref := range []string{"CODUL_PENAL/A1", "CODUL_CIVIL/A1", "CODUL_PENAL/A11"} {
		for i, id := range DeriveAll(ref, 50) {
			name := Name(ref, i)
			if prev, dup := seen[id]; dup {
				t.Fatalf("collision between %s and %s", prev, name)
			}
			seen[id] = name
		}
	}
	if len(seen) != 150 {
		t.Errorf("got %d ids", len(seen))
	}
}

func TestDeriveAll_Empty(t *testing.T) {
	if ids := DeriveAll("X/Y", 0); len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}
