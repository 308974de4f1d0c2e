package errors

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		message  string
	}{
		{"D100", CategoryConfig, "Configuration file not found"},
		{"D120", CategoryNetwork, "Cannot listen on address"},
		{"D140", CategoryStorage, "Static root not found"},
		{"D160", CategoryCLI, "Invalid flag value"},
		{"D999", "", "Unknown error"},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			err := New(tc.code)
			if err.Code != tc.code || err.Category != tc.category || err.Message != tc.message {
				t.Errorf("New(%q) = %+v", tc.code, err)
			}
		})
	}
}

func TestRegistryCodes(t *testing.T) {
	for _, code := range Codes() {
		tmpl, ok := Lookup(code)
		if !ok {
			t.Fatalf("Lookup(%q) failed", code)
		}
		if !strings.HasPrefix(code, "D") || len(code) != 4 {
			t.Errorf("malformed code %q", code)
		}
		if tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("%s: incomplete template %+v", code, tmpl)
		}
	}
}

func TestError_ErrorAndUnwrap(t *testing.T) {
	err := New("D100").WithDetail("no duplex.json in /srv").Wrap(fs.ErrNotExist)

	want := "D100: Configuration file not found: no duplex.json in /srv: file does not exist"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is through Unwrap failed")
	}

	if got := Newf(CategoryCLI, "bad %s", "flag").Error(); got != "bad flag" {
		t.Errorf("Newf Error() = %q", got)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "D121") != nil {
		t.Error("FromError(nil) != nil")
	}

	coded := New("D104")
	if FromError(coded, "D121") != coded {
		t.Error("FromError rewrapped an *Error")
	}

	plain := stderrors.New("boom")
	got := FromError(plain, "D121")
	if got.Code != "D121" || got.Wrapped != plain {
		t.Errorf("FromError = %+v", got)
	}
}

func TestWithSource(t *testing.T) {
	data := []byte("{\n  \"a\": 1,\n  \"b\": x\n}\n")
	offset := int64(strings.Index(string(data), "x"))

	err := New("D101").WithSource("duplex.json", data, offset)
	if got := err.Location.String(); got != "duplex.json:3:8" {
		t.Errorf("Location = %q, want duplex.json:3:8", got)
	}
	if len(err.Context) != 5 || err.Context[2] != `  "b": x` {
		t.Errorf("Context = %q", err.Context)
	}

	err = New("D101").WithSource("f", data, int64(len(data))+10)
	if err.Location.Line != 5 {
		t.Errorf("offset past end: line %d", err.Location.Line)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	data := []byte("{\n  \"address\": 8080\n}\n")
	err := New("D101").
		WithSource("duplex.json", data, int64(strings.Index(string(data), "8080"))).
		WithSuggestion("Quote the address")

	out := err.Format()
	for _, want := range []string{
		"ERROR D101: Invalid configuration file",
		"duplex.json:2:14",
		"→    2 │   \"address\": 8080",
		"             ^",
		"Hint: Quote the address",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}

func TestFormat_ContextWindow(t *testing.T) {
	DisableColors()
	defer EnableColors()

	data := []byte("l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9")
	err := New("D101").WithSource("duplex.json", data, int64(strings.Index(string(data), "l6")))
	if len(err.Context) != contextSize {
		t.Fatalf("Context has %d lines, want %d", len(err.Context), contextSize)
	}

	out := err.Format()
	for _, want := range []string{"   4 │ l4", "→    6 │ l6", "   8 │ l8"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"l3", "l9"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("Format() shows %q outside the window:\n%s", unwanted, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("D120").WithLocation("duplex.json", 4, 0)
	if got := err.FormatCompact(); got != "duplex.json:4: D120: Cannot listen on address" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("D103").WithLocation("duplex.json", 2, 5).Wrap(stderrors.New("bad"))

	var got map[string]any
	if e := json.Unmarshal([]byte(err.FormatJSON()), &got); e != nil {
		t.Fatalf("invalid JSON: %v", e)
	}
	if got["code"] != "D103" || got["category"] != "config" || got["cause"] != "bad" {
		t.Errorf("FormatJSON = %v", got)
	}
	loc, _ := got["location"].(map[string]any)
	if loc["line"] != float64(2) {
		t.Errorf("location = %v", loc)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than 20", l)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text")
	}
}
