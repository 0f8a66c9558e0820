package consent

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/ctxengine/internal/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := storage.OpenSQLite("")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	reg, err := NewRegistry(db)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestRegistry_DefaultOptedIn(t *testing.T) {
	reg := newTestRegistry(t)
	ok, err := reg.IsOptedIn(context.Background(), "new-project")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("newly-mentioned project must default to opted_in=true")
	}
}

func TestRegistry_OptInOptOutRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	if err := reg.OptIn(ctx, "p"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := reg.IsOptedIn(ctx, "p"); !ok {
		t.Fatalf("expected opted in after OptIn")
	}

	if err := reg.OptOut(ctx, "p"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := reg.IsOptedIn(ctx, "p"); ok {
		t.Fatalf("expected opted out after OptOut")
	}

	if err := reg.OptIn(ctx, "p"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := reg.IsOptedIn(ctx, "p"); !ok {
		t.Fatalf("opt_in; opt_out; opt_in should leave opted_in=true")
	}
}

func TestRegistry_GetSearchableProjects(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	reg.OptIn(ctx, "project-a")
	reg.OptIn(ctx, "project-b")
	reg.OptOut(ctx, "project-c")

	set, err := reg.GetSearchableProjects(ctx, "project-d", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"project-a", "project-b"} {
		if _, ok := set[want]; !ok {
			t.Fatalf("expected %s in searchable set", want)
		}
	}
	if _, ok := set["project-c"]; ok {
		t.Fatalf("opted-out project-c must not appear")
	}
	if _, ok := set["project-d"]; ok {
		t.Fatalf("current project should not be included when searchAll=false and not itself opted in")
	}
}
