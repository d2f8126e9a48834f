package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"sitelocation.ai/internal/persistence/snapshot"
)

func finalSnapshot(round int) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:  snapshot.Header{Version: 1, GameID: "g1", Round: round, Rounds: 3, ConfigDigest: "0123456789abcdef", Digest: "d"},
		Players: []string{"a", "b"},
		Entries: []snapshot.EntryV1{
			{Round: round, Players: []snapshot.PlayerV1{{ID: 0, Funds: 12}, {ID: 1, Funds: 7}}},
		},
	}
	snap.Config.Seed = 42
	return snap
}

func TestArchiveFinalSnapshot_CopiesFinishedGame(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "games", "g1", "snapshots", "3.snap.zst")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir snapshots: %v", err)
	}
	want := []byte("dummy")
	if err := os.WriteFile(src, want, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	archivedPath, ok, err := ArchiveFinalSnapshot(dir, src, finalSnapshot(3))
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok {
		t.Fatalf("expected archived=true")
	}
	if filepath.Base(filepath.Dir(archivedPath)) != "0123456789ab" {
		t.Fatalf("archived under %s", archivedPath)
	}

	got, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("archived content mismatch: got=%q want=%q", string(got), string(want))
	}

	b, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "g1.meta.json"))
	if err != nil {
		t.Fatalf("expected meta.json to exist: %v", err)
	}
	var meta GameArchiveMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Seed != 42 || len(meta.Funds) != 2 || meta.Funds[0] != 12 || meta.Funds[1] != 7 {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestArchiveFinalSnapshot_SkipsUnfinishedGame(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := ArchiveFinalSnapshot(dir, filepath.Join(dir, "missing.snap.zst"), finalSnapshot(2))
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("archive dir should not exist: %v", err)
	}
}
