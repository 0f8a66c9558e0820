package codeunits

import (
	"strings"
	"testing"
)

func TestHeuristicParser_PythonFunctionsAndClasses(t *testing.T) {
	src := `import os
from .utils import helper, other

class Widget:
    def render(self):
        return os.getpid()

def standalone():
    return helper()
`
	p := NewHeuristicParser()
	res, err := p.Parse("widget.py", "python", []byte(src))
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, u := range res.Units {
		names = append(names, u.Name)
	}
	want := map[string]bool{"Widget": false, "render": false, "standalone": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, found := range want {
		if !found {
			t.Errorf("expected unit %q in %v", n, names)
		}
	}

	standaloneFound := false
	for _, u := range res.Units {
		if u.Name == "standalone" {
			standaloneFound = true
			if len(u.Imports) == 0 {
				t.Errorf("expected standalone() to receive the from-import attached above it")
			}
		}
	}
	if !standaloneFound {
		t.Fatal("standalone unit not found")
	}
}

func TestHeuristicParser_GoFunctionsAndMethods(t *testing.T) {
	src := `package widget

import (
	"fmt"
)

type Widget struct{}

func (w *Widget) Render() string {
	return fmt.Sprintf("widget")
}

func New() *Widget {
	return &Widget{}
}
`
	p := NewHeuristicParser()
	res, err := p.Parse("widget.go", "go", []byte(src))
	if err != nil {
		t.Fatal(err)
	}

	var foundMethod, foundFunc bool
	for _, u := range res.Units {
		if u.Type == UnitMethod && u.Name == "Render" {
			foundMethod = true
		}
		if u.Type == UnitFunction && u.Name == "New" {
			foundFunc = true
		}
	}
	if !foundMethod {
		t.Errorf("expected Render method unit, got %+v", res.Units)
	}
	if !foundFunc {
		t.Errorf("expected New function unit, got %+v", res.Units)
	}
}

func TestHeuristicParser_UnsupportedLanguageErrors(t *testing.T) {
	p := NewHeuristicParser()
	if p.Supports("cobol") {
		t.Fatal("did not expect cobol support")
	}
	if _, err := p.Parse("x.cob", "cobol", []byte("")); err == nil {
		t.Fatal("expected an error for an unsupported language")
	}
}

func TestHeuristicParser_UnitSpansAreMonotonicAndNonOverlapping(t *testing.T) {
	src := `def a():
    pass

def b():
    pass

def c():
    pass
`
	p := NewHeuristicParser()
	res, err := p.Parse("m.py", "python", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(res.Units)-1; i++ {
		if res.Units[i].EndLine >= res.Units[i+1].StartLine && res.Units[i+1].StartLine != 0 {
			if res.Units[i].EndLine > res.Units[i+1].StartLine {
				t.Errorf("unit %d (end %d) overlaps unit %d (start %d)", i, res.Units[i].EndLine, i+1, res.Units[i+1].StartLine)
			}
		}
		if res.Units[i].StartLine > res.Units[i].EndLine {
			t.Errorf("unit %d has start %d after end %d", i, res.Units[i].StartLine, res.Units[i].EndLine)
		}
	}
}

func TestLanguageForExtension(t *testing.T) {
	if LanguageForExtension(".py") != "python" {
		t.Fatal("expected .py -> python")
	}
	if LanguageForExtension(".unknown") != "" {
		t.Fatal("expected unknown extension to map to empty language")
	}
}

func TestNewParser_RoutesGoThroughGoAST(t *testing.T) {
	p := NewParser(Config{})
	res, err := p.Parse("m.go", "go", []byte("package m\n\nfunc F() {}\n"))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, u := range res.Units {
		if u.Name == "F" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected go/ast-parsed unit F, got %+v", res.Units)
	}
}

func TestNewParser_DefaultsNonGoToHeuristic(t *testing.T) {
	p := NewParser(Config{})
	res, err := p.Parse("m.py", "python", []byte("def f():\n    pass\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Units) != 1 || res.Units[0].Name != "f" {
		t.Fatalf("expected heuristic-parsed unit f, got %+v", res.Units)
	}
}

func TestParseFile_RejectsUnindexedExtension(t *testing.T) {
	p := NewHeuristicParser()
	_, err := ParseFile(p, "x.bin", ".bin", []byte(""))
	if err == nil {
		t.Fatal("expected error for unindexed extension")
	}
	if !strings.Contains(err.Error(), "unindexed") {
		t.Fatalf("unexpected error: %v", err)
	}
}
