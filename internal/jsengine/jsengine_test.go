package jsengine

import "testing"

func TestEvaluateReturnsFinalString(t *testing.T) {
	got, ok := New().Evaluate(`var location={};location.href="https://example.com/?a=1";location.href`)
	if !ok {
		t.Fatal("evaluation failed")
	}
	if got != "https://example.com/?a=1" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestEvaluateNonStringResult(t *testing.T) {
	if _, ok := New().Evaluate(`1 + 1`); ok {
		t.Fatal("numeric result should not count as a string")
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	if _, ok := New().Evaluate(`function(`); ok {
		t.Fatal("syntax error should fail")
	}
}

func TestEvaluateSwallowedExceptions(t *testing.T) {
	script := "var location={};\n" +
		"try{\nwindow.navigate(\"x\");\n}catch(____e){}\n" +
		"try{\nlocation.href=\"https://example.com/done\";\n}catch(____e){}\n" +
		"location.href"
	got, ok := New().Evaluate(script)
	if !ok || got != "https://example.com/done" {
		t.Fatalf("expected href despite earlier exception, got %q ok=%v", got, ok)
	}
}
