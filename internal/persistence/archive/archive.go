package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"sitelocation.ai/internal/persistence/snapshot"
)

// GameArchiveMeta describes one archived game. Games are grouped by config digest so results played
// under the same rules sit next to each other.
type GameArchiveMeta struct {
	GameID       string    `json:"game_id"`
	ConfigDigest string    `json:"config_digest"`
	Rounds       int       `json:"n_rounds"`
	Seed         int64     `json:"seed"`
	Players      []string  `json:"players"`
	Funds        []float64 `json:"funds"`
	Digest       string    `json:"digest"`
	Snapshot     string    `json:"snapshot"`
	CreatedAt    string    `json:"created_at"`
}

// ArchiveFinalSnapshot copies a final-round snapshot into `dataDir/archives/<digest prefix>/` and
// writes `<game id>.meta.json` next to it. It returns archived=false for snapshots of unfinished games.
func ArchiveFinalSnapshot(dataDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	if snap.Header.Rounds <= 0 || snap.Header.Round != snap.Header.Rounds || len(snap.Entries) == 0 {
		return "", false, nil
	}
	if snap.Header.GameID == "" {
		return "", false, fmt.Errorf("archive: snapshot has no game id")
	}

	group := snap.Header.ConfigDigest
	if len(group) > 12 {
		group = group[:12]
	}
	if group == "" {
		group = "unknown"
	}
	archiveDir := filepath.Join(dataDir, "archives", group)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, snap.Header.GameID+".snap.zst")
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	last := snap.Entries[len(snap.Entries)-1]
	meta := GameArchiveMeta{
		GameID:       snap.Header.GameID,
		ConfigDigest: snap.Header.ConfigDigest,
		Rounds:       snap.Header.Rounds,
		Seed:         snap.Config.Seed,
		Players:      snap.Players,
		Funds:        make([]float64, len(snap.Players)),
		Digest:       snap.Header.Digest,
		Snapshot:     filepath.Base(dst),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, p := range last.Players {
		if p.ID >= 0 && p.ID < len(meta.Funds) {
			meta.Funds[p.ID] = p.Funds
		}
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, snap.Header.GameID+".meta.json"), b, 0o644)
	}

	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
