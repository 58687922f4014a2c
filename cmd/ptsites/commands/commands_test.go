package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ptsites/internal/batch"
	"github.com/jmylchreest/ptsites/internal/store"
	"github.com/jmylchreest/ptsites/pkg/site"
)

// 1x1 transparent PNG.
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func TestImageRef(t *testing.T) {
	data, err := base64.StdEncoding.DecodeString(pixelPNG)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "captcha.png")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	ref, err := imageRef(path)
	if err != nil {
		t.Fatalf("imageRef() error = %v", err)
	}
	if !strings.HasPrefix(ref, "data:image/png;base64,") {
		t.Errorf("imageRef() = %.40s...", ref)
	}

	if ref, _ := imageRef("https://example.com/c.png"); ref != "https://example.com/c.png" {
		t.Errorf("URL was rewritten to %q", ref)
	}

	text := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(text, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := imageRef(text); err == nil {
		t.Error("imageRef() accepted a text file")
	}
}

func TestForSites(t *testing.T) {
	previous := []batch.CheckOutcome{
		{Outcome: batch.Outcome{Site: "a"}},
		{Outcome: batch.Outcome{Site: "b"}},
	}
	got := forSites(previous, []site.Descriptor{{ID: "b", URL: "https://b.example/"}})
	if len(got) != 1 || got[0].Site != "b" {
		t.Errorf("forSites() = %+v", got)
	}
}

func TestWriteResults(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("format", "json", "")
	cmd.Flags().String("output", "", "")
	path := filepath.Join(t.TempDir(), "out.json")
	if err := cmd.Flags().Set("output", path); err != nil {
		t.Fatal(err)
	}

	items := asAny([]batch.Outcome{{Site: "a"}, {Site: "b"}})
	if err := writeResults(cmd, items); err != nil {
		t.Fatalf("writeResults() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"site": "b"`)) {
		t.Errorf("output = %s", data)
	}

	if err := cmd.Flags().Set("format", "csv"); err != nil {
		t.Fatal(err)
	}
	if err := writeResults(cmd, items); err == nil {
		t.Error("writeResults() accepted an unknown format")
	}
}

func TestFailIf(t *testing.T) {
	if err := failIf(0, "sign-ins"); err != nil {
		t.Errorf("failIf(0) = %v", err)
	}
	if err := failIf(2, "sign-ins"); err == nil || err.Error() != "2 sign-ins failed" {
		t.Errorf("failIf(2) = %v", err)
	}
}

func TestRecordContext_OutlivesExpiredRun(t *testing.T) {
	repo, err := store.New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	runCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-runCtx.Done()

	if _, err := repo.RecordSignIn(runCtx, time.Now(), nil); err == nil {
		t.Fatal("expected recording with the expired run context to fail")
	}

	rctx, rcancel := recordContext(runCtx)
	defer rcancel()
	if rctx.Err() != nil {
		t.Fatalf("record context already done: %v", rctx.Err())
	}
	if _, ok := rctx.Deadline(); !ok {
		t.Error("record context has no deadline")
	}

	outcomes := []batch.SignInOutcome{{Outcome: batch.Outcome{Site: "zmpt"}}}
	if _, err := repo.RecordSignIn(rctx, time.Now(), outcomes); err != nil {
		t.Fatalf("RecordSignIn() error = %v", err)
	}
	runs, err := repo.Runs(context.Background(), 10)
	if err != nil || len(runs) != 1 {
		t.Errorf("Runs() = %v, %v; want the partial run stored", runs, err)
	}
}
