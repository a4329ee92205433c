package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"houzel-server/internal/domain/scoring"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-python")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCompileParsesDirective(t *testing.T) {
	bin := writeScript(t, `echo '{"prompt":"Avalie este texto","system":"Avaliador ENEM","temperature":0.3,"max_tokens":900,"confidence":0.82,"suggestions":["melhorar coesão"]}'`)
	c := NewCLICompiler(bin, t.TempDir(), 5*time.Second)

	directive, err := c.Compile(context.Background(), "Avalie este texto", "texto de exemplo", "")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if directive.Prompt == nil || *directive.Prompt != "Avalie este texto" {
		t.Errorf("Prompt = %v, want Avalie este texto", directive.Prompt)
	}
	if directive.Temperature == nil || *directive.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", directive.Temperature)
	}
	if directive.MaxTokens == nil || *directive.MaxTokens != 900 {
		t.Errorf("MaxTokens = %v, want 900", directive.MaxTokens)
	}
	if len(directive.Suggestions) != 1 || directive.Suggestions[0] != "melhorar coesão" {
		t.Errorf("Suggestions = %v, want one entry", directive.Suggestions)
	}
}

func TestCompileTimeout(t *testing.T) {
	bin := writeScript(t, "sleep 5")
	c := NewCLICompiler(bin, t.TempDir(), 200*time.Millisecond)

	_, err := c.Compile(context.Background(), "Avalie este texto", "texto de exemplo", "")
	if !errors.Is(err, scoring.ErrUnavailable) {
		t.Fatalf("Compile() error = %v, want scoring.ErrUnavailable", err)
	}
}

func TestCompileNonZeroExit(t *testing.T) {
	bin := writeScript(t, "echo boom >&2\nexit 3")
	c := NewCLICompiler(bin, t.TempDir(), 5*time.Second)

	_, err := c.Compile(context.Background(), "Avalie este texto", "texto de exemplo", "")
	if !errors.Is(err, scoring.ErrUnavailable) {
		t.Fatalf("Compile() error = %v, want scoring.ErrUnavailable", err)
	}
}

func TestCompileUnparsableOutput(t *testing.T) {
	bin := writeScript(t, "echo not-json")
	c := NewCLICompiler(bin, t.TempDir(), 5*time.Second)

	_, err := c.Compile(context.Background(), "Avalie este texto", "texto de exemplo", "")
	if !errors.Is(err, scoring.ErrUnavailable) {
		t.Fatalf("Compile() error = %v, want scoring.ErrUnavailable", err)
	}
}

func TestCompilePassesArguments(t *testing.T) {
	// The script echoes its arguments back inside the directive context so
	// the invocation contract is observable.
	bin := writeScript(t, `printf '{"prompt":null,"system":null,"temperature":null,"max_tokens":null,"context":"%s","confidence":null,"suggestions":[]}' "$*"`)
	c := NewCLICompiler(bin, t.TempDir(), 5*time.Second)

	directive, err := c.Compile(context.Background(), "instrução", "corpo", "")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	got := string(directive.Context)
	want := `"-m compiler.cli --user_input instrução --redacao_texto corpo"`
	if got != want {
		t.Errorf("Context = %s, want %s", got, want)
	}
}

func TestDirectiveDefaults(t *testing.T) {
	d := &scoring.Directive{}
	if got := d.EffectivePrompt(); got != scoring.DefaultPrompt {
		t.Errorf("EffectivePrompt() = %q", got)
	}
	if got := d.EffectiveSystem(); got != scoring.DefaultSystem {
		t.Errorf("EffectiveSystem() = %q", got)
	}
	if got := d.EffectiveTemperature(); got != scoring.DefaultTemperature {
		t.Errorf("EffectiveTemperature() = %v", got)
	}
	if got := d.EffectiveMaxTokens(); got != scoring.DefaultMaxTokens {
		t.Errorf("EffectiveMaxTokens() = %v", got)
	}
}
