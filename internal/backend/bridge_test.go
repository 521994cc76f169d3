package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeBridgeScript writes a shell script that stands in for a framework
// training process in serve mode: one JSON line in, one JSON line out.
func writeBridgeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train_fake.py")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile script: %v", err)
	}
	return path
}

const servingScript = `while IFS= read -r line; do
  case "$line" in
    *create_trainer*) echo '{"ok": true}' ;;
    *load_model_checkpoints*) echo '{"ok": true}' ;;
    *fetch_episode_states*) echo '{"ok": true, "states": {"reward_all_regions": [[1.5, 2.5], [3.0, 4.0]], "global_temperature": [[0.5], [4.0]]}}' ;;
    *close*) exit 0 ;;
    *) echo '{"ok": false, "error": "unknown op"}' ;;
  esac
done
`

func TestBridgeRoundTrip(t *testing.T) {
	script := writeBridgeScript(t, servingScript)
	b := newBridgeBackend(RLlib, "/bin/sh", script)
	if got := b.Framework(); got != RLlib {
		t.Fatalf("Framework: got %q want %q", got, RLlib)
	}

	ctx := context.Background()
	tr, err := b.CreateTrainer(ctx, map[string]any{"trainer": map[string]any{"num_envs": 1}}, 123456)
	if err != nil {
		t.Fatalf("CreateTrainer: %v", err)
	}

	if err := tr.LoadCheckpoints(ctx, t.TempDir()); err != nil {
		t.Fatalf("LoadCheckpoints: %v", err)
	}

	states, err := tr.FetchEpisodeStates(ctx, []string{"reward_all_regions", "global_temperature"})
	if err != nil {
		t.Fatalf("FetchEpisodeStates: %v", err)
	}
	reward, ok := states["reward_all_regions"]
	if !ok {
		t.Fatal("FetchEpisodeStates: missing reward_all_regions")
	}
	if got := reward.Sum(); got != 11.0 {
		t.Fatalf("reward sum: got %v want %v", got, 11.0)
	}
	rise, err := states["global_temperature"].Last(0)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if rise != 4.0 {
		t.Fatalf("temperature last: got %v want %v", rise, 4.0)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Closing twice is a no-op.
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBridgeErrorResponse(t *testing.T) {
	script := writeBridgeScript(t, `while IFS= read -r line; do
  case "$line" in
    *create_trainer*) echo '{"ok": true}' ;;
    *load_model_checkpoints*) echo '{"ok": false, "error": "stale checkpoint"}' ;;
    *close*) exit 0 ;;
  esac
done
`)
	b := newBridgeBackend(WarpDrive, "/bin/sh", script)

	ctx := context.Background()
	tr, err := b.CreateTrainer(ctx, nil, 123456)
	if err != nil {
		t.Fatalf("CreateTrainer: %v", err)
	}
	defer tr.Close()

	err = tr.LoadCheckpoints(ctx, t.TempDir())
	if err == nil {
		t.Fatal("LoadCheckpoints: expected error")
	}
	if !strings.Contains(err.Error(), "stale checkpoint") {
		t.Fatalf("LoadCheckpoints: error %q missing bridge message", err)
	}
}

func TestBridgeCreateTrainerRejected(t *testing.T) {
	script := writeBridgeScript(t, `while IFS= read -r line; do
  echo '{"ok": false, "error": "bad run config"}'
done
`)
	b := newBridgeBackend(RLlib, "/bin/sh", script)

	_, err := b.CreateTrainer(context.Background(), map[string]any{"x": 1}, 123456)
	if err == nil {
		t.Fatal("CreateTrainer: expected error")
	}
	if !strings.Contains(err.Error(), "bad run config") {
		t.Fatalf("CreateTrainer: error %q missing bridge message", err)
	}
}

func TestBridgeInvalidStatesPayload(t *testing.T) {
	script := writeBridgeScript(t, `while IFS= read -r line; do
  case "$line" in
    *create_trainer*) echo '{"ok": true}' ;;
    *fetch_episode_states*) echo '{"ok": true, "states": {"reward_all_regions": []}}' ;;
    *close*) exit 0 ;;
  esac
done
`)
	b := newBridgeBackend(RLlib, "/bin/sh", script)

	ctx := context.Background()
	tr, err := b.CreateTrainer(ctx, nil, 123456)
	if err != nil {
		t.Fatalf("CreateTrainer: %v", err)
	}
	defer tr.Close()

	if _, err := tr.FetchEpisodeStates(ctx, []string{"reward_all_regions"}); err == nil {
		t.Fatal("FetchEpisodeStates: expected error for empty states matrix")
	}
}

func TestBridgeCloseAfterProcessDeath(t *testing.T) {
	script := writeBridgeScript(t, servingScript)
	b := newBridgeBackend(RLlib, "/bin/sh", script)

	tr, err := b.CreateTrainer(context.Background(), nil, 123456)
	if err != nil {
		t.Fatalf("CreateTrainer: %v", err)
	}

	bt := tr.(*bridgeTrainer)
	if err := bt.cmd.Process.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	// The process is dead; Close must report it and return promptly
	// instead of hanging on the pipe.
	done := make(chan error, 1)
	go func() { done <- tr.Close() }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Close: expected error after process death")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close: timed out")
	}
}

func TestBridgeCancelledFetch(t *testing.T) {
	script := writeBridgeScript(t, `while IFS= read -r line; do
  case "$line" in
    *create_trainer*) echo '{"ok": true}' ;;
    *fetch_episode_states*) sleep 10 ;;
    *close*) exit 0 ;;
  esac
done
`)
	b := newBridgeBackend(WarpDrive, "/bin/sh", script)

	tr, err := b.CreateTrainer(context.Background(), nil, 123456)
	if err != nil {
		t.Fatalf("CreateTrainer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = tr.FetchEpisodeStates(ctx, []string{"reward_all_regions"})
	if err == nil {
		t.Fatal("FetchEpisodeStates: expected error on cancelled context")
	}
	if !strings.Contains(err.Error(), context.DeadlineExceeded.Error()) {
		t.Fatalf("FetchEpisodeStates: error %q missing deadline cause", err)
	}

	// Cancellation kills the subprocess; the trainer is unusable after.
	if err := tr.LoadCheckpoints(context.Background(), t.TempDir()); err == nil {
		t.Fatal("LoadCheckpoints: expected error after cancellation")
	}
}

func TestBridgeMissingScript(t *testing.T) {
	b := newBridgeBackend(RLlib, "/bin/sh", filepath.Join(t.TempDir(), "nope.py"))
	if _, err := b.CreateTrainer(context.Background(), nil, 123456); err == nil {
		t.Fatal("CreateTrainer: expected error for missing script")
	}
}
