package shroud

import "testing"

type registryRecord struct {
	ID    string `column:"id"`
	Email string `pii:"email"`
}

type otherRecord struct {
	Name string
}

func TestPlanFor_Caches(t *testing.T) {
	Reset()

	p1, err := planFor[registryRecord]()
	if err != nil {
		t.Fatalf("planFor() error: %v", err)
	}
	p2, err := planFor[registryRecord]()
	if err != nil {
		t.Fatalf("planFor() error: %v", err)
	}
	if p1 != p2 {
		t.Error("planFor() should return the cached plan")
	}
}

func TestPlanFor_DifferentTypes(t *testing.T) {
	Reset()

	p1, _ := planFor[registryRecord]()
	p2, _ := planFor[otherRecord]()
	if p1 == p2 {
		t.Error("different types should have different plans")
	}
	if len(p2.fields) != 1 || p2.fields[0].column != "name" {
		t.Errorf("otherRecord plan = %+v", p2.fields)
	}
}

func TestReset(t *testing.T) {
	p1, _ := planFor[registryRecord]()
	Reset()
	p2, _ := planFor[registryRecord]()
	if p1 == p2 {
		t.Error("Reset() should clear the registry")
	}
}

func TestPlanFor_ErrorNotCached(t *testing.T) {
	Reset()
	if _, err := planFor[badPII](); err == nil {
		t.Fatal("planFor(badPII) should fail")
	}
	registryMu.RLock()
	n := len(registry)
	registryMu.RUnlock()
	if n != 0 {
		t.Errorf("registry size = %d, failed plans should not be cached", n)
	}
}
