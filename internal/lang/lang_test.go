package lang

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "index.html", want: HTML},
		{path: "site/Page.HTM", want: HTML},
		{path: "app.mjs", want: JavaScript},
		{path: "theme.css", want: CSS},
		{path: "pkg/package.json", want: JSON},
		{path: ".babelrc", want: JSON},
		{path: "main.go", want: ""},
		{path: "Makefile", want: ""},
	}
	for _, tc := range tests {
		if got := Detect(tc.path); got != tc.want {
			t.Fatalf("Detect(%q): got %q want %q", tc.path, got, tc.want)
		}
	}
}

func TestRef(t *testing.T) {
	if !Known(3).Resolved() {
		t.Fatalf("known ref must be resolved")
	}
	if Known(None).Resolved() || ByName("js").Resolved() {
		t.Fatalf("unexpected resolved ref")
	}
	if got := ByMimetype("text/css").String(); got != "mimetype:text/css" {
		t.Fatalf("String: got %q", got)
	}
}
