package codeunits

import "testing"

const goSource = `package widget

import (
	"fmt"
	"strings"
)

// Widget renders itself.
type Widget struct {
	Name string
}

func (w *Widget) Render() string {
	return fmt.Sprintf("widget: %s", strings.ToUpper(w.Name))
}

func New(name string) *Widget {
	return &Widget{Name: name}
}
`

func TestGoASTParser_ExtractsFunctionsMethodsAndTypes(t *testing.T) {
	p := NewGoASTParser()
	res, err := p.Parse("widget.go", "go", []byte(goSource))
	if err != nil {
		t.Fatal(err)
	}

	byName := map[string]Unit{}
	for _, u := range res.Units {
		byName[u.Name] = u
	}

	if byName["Widget"].Type != UnitClass {
		t.Errorf("expected Widget to be a class unit, got %+v", byName["Widget"])
	}
	if byName["Render"].Type != UnitMethod {
		t.Errorf("expected Render to be a method unit, got %+v", byName["Render"])
	}
	if byName["New"].Type != UnitFunction {
		t.Errorf("expected New to be a function unit, got %+v", byName["New"])
	}
}

func TestGoASTParser_ModuleUnitCarriesFileImports(t *testing.T) {
	p := NewGoASTParser()
	res, err := p.Parse("widget.go", "go", []byte(goSource))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Units) == 0 || res.Units[0].Type != UnitModule {
		t.Fatalf("expected a synthetic module unit first, got %+v", res.Units)
	}
	mods := map[string]bool{}
	for _, imp := range res.Units[0].Imports {
		mods[imp.Module] = true
	}
	if !mods["fmt"] || !mods["strings"] {
		t.Fatalf("expected fmt and strings imports on the module unit, got %+v", res.Units[0].Imports)
	}
}

func TestGoASTParser_RejectsInvalidGo(t *testing.T) {
	p := NewGoASTParser()
	if _, err := p.Parse("broken.go", "go", []byte("not valid go {{{")); err == nil {
		t.Fatal("expected a parse error for invalid Go source")
	}
}

func TestGoASTParser_SupportsOnlyGo(t *testing.T) {
	p := NewGoASTParser()
	if !p.Supports("go") {
		t.Fatal("expected support for go")
	}
	if p.Supports("python") {
		t.Fatal("did not expect support for python")
	}
}
