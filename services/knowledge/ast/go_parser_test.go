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

const goFixture = `package mailer

import (
	"fmt"
	stdlog "log"
)

// Sender delivers messages.
type Sender interface {
	Send(msg string) error
}

// SMTPSender talks to an SMTP relay.
type SMTPSender struct {
	Base
	host string
}

const defaultPort = 587

var retries = 3

// Send delivers one message.
func (s *SMTPSender) Send(msg string) error {
	return deliver(s.host, msg)
}

func deliver(host, msg string) error {
	fmt.Println(host)
	return nil
}
`

func TestGoParser_Fixture(t *testing.T) {
	parser := NewGoParser()
	result, err := parser.Parse(context.Background(), []byte(goFixture), "mailer/smtp.go")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if result.Package != "mailer" {
		t.Errorf("Package = %q, want mailer", result.Package)
	}

	tests := []struct {
		name string
		kind string
	}{
		{"Sender", KindInterface},
		{"SMTPSender", KindStruct},
		{"defaultPort", KindConstant},
		{"retries", KindVariable},
		{"Send", KindMethod},
		{"deliver", KindFunction},
	}
	for _, tt := range tests {
		sym := findSymbol(t, result.Symbols, tt.name)
		if sym.Kind != tt.kind {
			t.Errorf("%s: kind = %q, want %q", tt.name, sym.Kind, tt.kind)
		}
	}

	smtp := findSymbol(t, result.Symbols, "SMTPSender")
	if smtp.Meta == nil || len(smtp.Meta.Extends) != 1 || smtp.Meta.Extends[0] != "Base" {
		t.Errorf("embedded types = %+v, want [Base]", smtp.Meta)
	}
	if smtp.Doc != "SMTPSender talks to an SMTP relay." {
		t.Errorf("doc = %q", smtp.Doc)
	}

	iface := findSymbol(t, result.Symbols, "Sender")
	if len(iface.Children) != 1 || iface.Children[0].Name != "Send" {
		t.Errorf("interface methods = %+v, want [Send]", iface.Children)
	}
}

func TestGoParser_Imports(t *testing.T) {
	parser := NewGoParser()
	result, err := parser.Parse(context.Background(), []byte(goFixture), "mailer/smtp.go")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Imports) != 2 {
		t.Fatalf("Imports = %d, want 2", len(result.Imports))
	}

	byPath := make(map[string]Import)
	for _, imp := range result.Imports {
		byPath[imp.Path] = imp
	}
	if _, ok := byPath["fmt"]; !ok {
		t.Error("fmt import missing")
	}
	if imp, ok := byPath["log"]; !ok || imp.Alias != "stdlog" {
		t.Errorf("log import = %+v, want alias stdlog", imp)
	}
}

func TestGoParser_SingleImport(t *testing.T) {
	src := "package p\n\nimport \"errors\"\n"
	parser := NewGoParser()
	result, err := parser.Parse(context.Background(), []byte(src), "p.go")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Imports) != 1 || result.Imports[0].Path != "errors" {
		t.Errorf("Imports = %+v, want [errors]", result.Imports)
	}
}

func TestGoParser_Calls(t *testing.T) {
	parser := NewGoParser()
	result, err := parser.Parse(context.Background(), []byte(goFixture), "mailer/smtp.go")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	type want struct{ caller, callee string }
	wants := []want{
		{"Send", "deliver"},
		{"deliver", "fmt.Println"},
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

func TestGoParser_ConstGroup(t *testing.T) {
	src := `package p

const (
	StateIdle = iota
	StateRunning
	_
)
`
	parser := NewGoParser()
	result, err := parser.Parse(context.Background(), []byte(src), "p.go")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !hasSymbol(result.Symbols, "StateIdle") || !hasSymbol(result.Symbols, "StateRunning") {
		t.Errorf("const group members missing: %+v", result.Symbols)
	}
	if hasSymbol(result.Symbols, "_") {
		t.Error("blank identifier should be skipped")
	}
}

func TestGoParser_TypeAlias(t *testing.T) {
	src := "package p\n\ntype ID = string\n"
	parser := NewGoParser()
	result, err := parser.Parse(context.Background(), []byte(src), "p.go")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	sym := findSymbol(t, result.Symbols, "ID")
	if sym.Kind != "type" {
		t.Errorf("kind = %q, want type", sym.Kind)
	}
}
