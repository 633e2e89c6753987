// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"testing"
)

const tsFixture = `import React, { useState } from "react";
import * as path from "path";
import "./styles.css";
const fs = require("fs");

// Button renders a clickable control.
export class Button extends React.Component {
  render() {
    return <div onClick={this.handle}>ok</div>;
  }
}

export interface Props extends Base {
  title: string;
}

export enum Color {
  Red,
  Green,
}

export type ID = string;

export async function fetchData(url: string): Promise<Data> {
  const res = await fetch(url);
  return res.json();
}

export const App = () => {
  const [n, setN] = useState(0);
  return <div>{n}</div>;
};
`

func TestTypeScriptParser_Fixture(t *testing.T) {
	parser := NewTypeScriptParser()
	result, err := parser.Parse(context.Background(), []byte(tsFixture), "src/app.tsx")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if result.Language != "typescript" {
		t.Errorf("Language = %q, want typescript", result.Language)
	}
	if result.Package != "src/app" {
		t.Errorf("Package = %q, want src/app", result.Package)
	}

	tests := []struct {
		name string
		kind string
	}{
		{"Button", KindComponent},
		{"Props", KindInterface},
		{"Color", KindEnum},
		{"ID", "type"},
		{"fetchData", KindFunction},
		{"App", KindComponent},
		{"render", KindMethod},
	}
	for _, tt := range tests {
		sym := findSymbol(t, result.Symbols, tt.name)
		if sym.Kind != tt.kind {
			t.Errorf("%s: kind = %q, want %q", tt.name, sym.Kind, tt.kind)
		}
	}

	button := findSymbol(t, result.Symbols, "Button")
	if button.Meta == nil || len(button.Meta.Extends) != 1 || button.Meta.Extends[0] != "React.Component" {
		t.Errorf("Button extends = %+v, want [React.Component]", button.Meta)
	}
	if button.Doc != "Button renders a clickable control." {
		t.Errorf("Button doc = %q", button.Doc)
	}

	props := findSymbol(t, result.Symbols, "Props")
	if props.Meta == nil || len(props.Meta.Extends) != 1 || props.Meta.Extends[0] != "Base" {
		t.Errorf("Props extends = %+v, want [Base]", props.Meta)
	}

	fetchData := findSymbol(t, result.Symbols, "fetchData")
	if fetchData.Meta == nil || !fetchData.Meta.IsAsync {
		t.Error("fetchData should be marked async")
	}
}

func TestTypeScriptParser_Imports(t *testing.T) {
	parser := NewTypeScriptParser()
	result, err := parser.Parse(context.Background(), []byte(tsFixture), "src/app.tsx")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Imports) != 4 {
		t.Fatalf("Imports = %d, want 4", len(result.Imports))
	}

	byPath := make(map[string]Import)
	for _, imp := range result.Imports {
		byPath[imp.Path] = imp
	}

	react, ok := byPath["react"]
	if !ok || react.Alias != "React" {
		t.Errorf("react import = %+v, want default alias React", react)
	}
	if len(react.Names) != 1 || react.Names[0] != "useState" {
		t.Errorf("react names = %v, want [useState]", react.Names)
	}
	if imp, ok := byPath["path"]; !ok || imp.Alias != "path" {
		t.Errorf("path import = %+v, want namespace alias path", imp)
	}
	if _, ok := byPath["./styles.css"]; !ok {
		t.Error("bare side-effect import missing")
	}
	if imp, ok := byPath["fs"]; !ok || imp.Alias != "fs" {
		t.Errorf("require import = %+v, want alias fs", imp)
	}
}

func TestTypeScriptParser_Calls(t *testing.T) {
	parser := NewTypeScriptParser()
	result, err := parser.Parse(context.Background(), []byte(tsFixture), "src/app.tsx")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	type want struct{ caller, callee string }
	wants := []want{
		{"fetchData", "fetch"},
		{"fetchData", "res.json"},
		{"App", "useState"},
	}
	for _, w := range wants {
		found := false
		for _, c := range result.Calls {
			if c.Caller == w.caller && c.Callee == w.callee {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("call %s -> %s not extracted (calls: %+v)", w.caller, w.callee, result.Calls)
		}
	}
}

func TestTypeScriptParser_StringsDoNotProduceSymbols(t *testing.T) {
	src := "const msg = \"class Fake { }\";\nconst tpl = `function ghost() {}`;\n"
	parser := NewTypeScriptParser()
	result, err := parser.Parse(context.Background(), []byte(src), "s.ts")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if hasSymbol(result.Symbols, "Fake") || hasSymbol(result.Symbols, "ghost") {
		t.Errorf("declarations inside string literals must be ignored, got %+v", result.Symbols)
	}
}

func TestTypeScriptParser_AbstractClass(t *testing.T) {
	src := "export abstract class Shape {\n  area(): number { return 0; }\n}\n"
	parser := NewTypeScriptParser()
	result, err := parser.Parse(context.Background(), []byte(src), "shape.ts")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	shape := findSymbol(t, result.Symbols, "Shape")
	if shape.Kind != KindClass {
		t.Errorf("kind = %q, want class", shape.Kind)
	}
	if shape.Meta == nil || !shape.Meta.IsAbstract {
		t.Error("Shape should be marked abstract")
	}
	if len(shape.Children) != 1 || shape.Children[0].Name != "area" {
		t.Errorf("children = %+v, want [area]", shape.Children)
	}
}
