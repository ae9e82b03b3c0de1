package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/dgallion1/projpack/internal/archive"
	"github.com/dgallion1/projpack/internal/pipeline"
)

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		out, want string
	}{
		{"", "cyoa.zip"},
		{dir, filepath.Join(dir, "cyoa.zip")},
		{filepath.Join(dir, "custom.zip"), filepath.Join(dir, "custom.zip")},
	}
	for _, tc := range cases {
		got, err := outputPath(tc.out, "cyoa.zip")
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.out, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: expected %q, got %q", tc.out, tc.want, got)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	writeSummary(&buf, "out/cyoa.zip", &pipeline.Result{
		Archive:        make([]byte, 1500),
		Manifest:       archive.Manifest{Entries: make([]archive.Entry, 3)},
		Images:         4,
		Inlined:        3,
		DocumentBefore: 2000000,
		DocumentAfter:  1000000,
		Elapsed:        1234 * time.Millisecond,
	})
	out := buf.String()
	for _, want := range []string{
		"Wrote out/cyoa.zip (1.5 kB, 3 files) in 1.23s",
		"4 found, 3 inlined",
		"2.0 MB -> 1.0 MB",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary:\n%s", want, out)
		}
	}
	if strings.Contains(out, "re-encoded") {
		t.Error("expected no re-encode line without transcoding")
	}
}

func TestManifestTable(t *testing.T) {
	out := manifestTable(archive.Manifest{Entries: []archive.Entry{
		{Name: "project.json", Size: 2048, Digest: "0123456789abcdef"},
		{Name: "images/1.avif", Size: 10, Stored: true, Digest: "fedcba"},
	}})
	for _, want := range []string{"project.json", "2.0 kB", "deflate", "store", "0123456789ab", "fedcba"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abc") {
		t.Error("expected digest to be shortened")
	}
}

func TestProgress_PlainStages(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(&buf)
	p.Stage("fetching")
	p.Report(pipeline.PhaseFetch, 1, 2)
	p.Stage("crawling")
	p.Finish()
	if got := buf.String(); got != "fetching...\ncrawling...\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestPackCommand_WritesArchiveAndReport(t *testing.T) {
	t.Setenv("PROJPACK_CONFIG", "")
	files := map[string]string{
		"/game/project.json": `{"rows":[]}`,
		"/game/index.html":   `<html><link href="style.css" rel="stylesheet"></html>`,
		"/game/style.css":    `body{}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.md")
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"pack", srv.URL + "/game/", "--out", dir, "--compress=false", "--report", reportPath, "--list"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "game.zip"))
	if err != nil {
		t.Fatalf("expected archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"project.json", "index.html", "style.css"} {
		if !names[want] {
			t.Errorf("expected %s in archive", want)
		}
	}

	md, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("expected report: %v", err)
	}
	if !strings.HasPrefix(string(md), "# game.zip") {
		t.Errorf("unexpected report heading: %q", strings.SplitN(string(md), "\n", 2)[0])
	}
	if !strings.Contains(stdout.String(), "Wrote ") {
		t.Errorf("expected summary on stdout, got %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "style.css") || !strings.Contains(stdout.String(), "BLAKE3") {
		t.Errorf("expected member table on stdout, got %q", stdout.String())
	}
}

func TestPackCommand_RejectsBadQuality(t *testing.T) {
	t.Setenv("PROJPACK_CONFIG", "")
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"pack", "https://example.com/game/", "--quality", "150"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected quality validation error")
	}
}
