package provider

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/terraclean-dev/remwatch/internal/dataset"
)

const sampleCSV = `Agency,Cluster,Site,Quantity to be remediated in MT,Cumulative Quantity remediated till date in MT,Active_site
Zigma,North,N1,1000,250,yes
Zigma,South,S1,500,100,no
Tharuni,East,E1,800,400,yes
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCSVProviderReload(t *testing.T) {
	p := NewCSVProvider(writeTempCSV(t, sampleCSV), 0, discardLogger())

	if p.Current() != nil {
		t.Error("provider should start with no snapshot")
	}
	if err := p.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	snap := p.Current()
	if snap == nil || len(snap.Records) != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if got := snap.Agencies(); len(got) != 2 || got[0] != "Zigma" {
		t.Errorf("agencies = %v", got)
	}
	if snap.LoadedAt.IsZero() {
		t.Error("snapshot missing load time")
	}
}

func TestCSVProviderReloadFailureKeepsPrevious(t *testing.T) {
	path := writeTempCSV(t, sampleCSV)
	p := NewCSVProvider(path, 0, discardLogger())
	if err := p.Reload(context.Background()); err != nil {
		t.Fatalf("setup reload: %v", err)
	}
	good := p.Current()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error after file removal")
	}
	if p.Current() != good {
		t.Error("failed reload must keep the previous snapshot")
	}
}

func TestCSVProviderReloadPicksUpChanges(t *testing.T) {
	path := writeTempCSV(t, sampleCSV)
	p := NewCSVProvider(path, 0, discardLogger())
	if err := p.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	extended := sampleCSV + "Saurashtra,West,W1,300,50,yes\n"
	if err := os.WriteFile(path, []byte(extended), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(p.Current().Records); got != 4 {
		t.Errorf("records = %d, want 4", got)
	}
}

func TestCSVProviderOnSwap(t *testing.T) {
	p := NewCSVProvider(writeTempCSV(t, sampleCSV), 0, discardLogger())

	var swaps int
	p.OnSwap(func(snap *dataset.Snapshot) {
		if snap == nil {
			t.Error("swap callback got nil snapshot")
		}
		swaps++
	})

	_ = p.Reload(context.Background())
	_ = p.Reload(context.Background())
	if swaps != 2 {
		t.Errorf("swap callback ran %d times, want 2", swaps)
	}
}

func TestCSVProviderWatcherReloadAnnouncesSwap(t *testing.T) {
	path := writeTempCSV(t, sampleCSV)
	p := NewCSVProvider(path, 10*time.Millisecond, discardLogger())

	swapped := make(chan int, 8)
	p.OnSwap(func(snap *dataset.Snapshot) { swapped <- len(snap.Records) })

	if err := p.Start(context.Background(), true); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	select {
	case n := <-swapped:
		if n != 3 {
			t.Fatalf("initial swap records = %d, want 3", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initial load did not announce a swap")
	}

	extended := sampleCSV + "Saurashtra,West,W1,300,50,yes\n"
	if err := os.WriteFile(path, []byte(extended), 0o644); err != nil {
		t.Fatal(err)
	}

	// The file change must reload and announce without any explicit Reload
	// call; this is what downstream event publishing hangs off.
	select {
	case n := <-swapped:
		if n != 4 {
			t.Fatalf("watcher swap records = %d, want 4", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher-triggered reload did not announce a swap")
	}
	if got := len(p.Current().Records); got != 4 {
		t.Errorf("records after watcher reload = %d, want 4", got)
	}
}

func TestCSVProviderStartWithoutWatch(t *testing.T) {
	p := NewCSVProvider(writeTempCSV(t, sampleCSV), 0, discardLogger())
	if err := p.Start(context.Background(), false); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	if p.Current() == nil {
		t.Error("Start should perform the initial load")
	}
}

func TestCSVProviderStartMissingFileNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.csv")
	p := NewCSVProvider(path, 0, discardLogger())
	if err := p.Start(context.Background(), false); err != nil {
		t.Fatalf("missing file must not fail Start: %v", err)
	}
	defer p.Stop()

	if p.Current() != nil {
		t.Error("provider should report no data until the file appears")
	}
}

func TestStaticProvider(t *testing.T) {
	snap := &dataset.Snapshot{}
	p := &Static{Snap: snap}
	if p.Current() != snap {
		t.Error("static provider should return its snapshot")
	}
	if err := p.Reload(context.Background()); err != nil {
		t.Errorf("static reload: %v", err)
	}
}
