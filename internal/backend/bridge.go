package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// The bridge speaks newline-delimited JSON with the framework's training
// script running in serve mode. One request line in, one response line out;
// the trainer lives for the lifetime of the process.
const (
	opCreateTrainer    = "create_trainer"
	opLoadCheckpoints  = "load_model_checkpoints"
	opFetchStates      = "fetch_episode_states"
	opClose            = "close"
	bridgeCloseTimeout = 10 * time.Second

	// Episode-state payloads carry full time-by-region matrices.
	bridgeMaxLine = 64 << 20
)

type bridgeBackend struct {
	framework Framework
	python    string
	script    string
}

func newBridgeBackend(framework Framework, python string, script string) *bridgeBackend {
	return &bridgeBackend{
		framework: framework,
		python:    strings.TrimSpace(python),
		script:    strings.TrimSpace(script),
	}
}

func (b *bridgeBackend) Framework() Framework {
	return b.framework
}

func (b *bridgeBackend) CreateTrainer(ctx context.Context, runConfig map[string]any, seed int64) (Trainer, error) {
	if b == nil {
		return nil, errors.New("backend: nil backend")
	}
	if ctx == nil {
		return nil, errors.New("backend: nil context")
	}
	if b.python == "" || b.script == "" {
		return nil, fmt.Errorf("backend: %s: missing python or script path", b.framework)
	}
	if _, err := os.Stat(b.script); err != nil {
		return nil, fmt.Errorf("backend: %s: stat script: %w", b.framework, err)
	}

	cmd := exec.Command(b.python, "-u", b.script, "--serve")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("backend: %s: stdin pipe: %w", b.framework, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("backend: %s: stdout pipe: %w", b.framework, err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("backend: %s: start bridge: %w", b.framework, err)
	}

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64<<10), bridgeMaxLine)

	t := &bridgeTrainer{
		framework: b.framework,
		cmd:       cmd,
		stdin:     stdin,
		out:       sc,
	}

	if _, err := t.call(ctx, bridgeRequest{
		Op:        opCreateTrainer,
		RunConfig: runConfig,
		Seed:      seed,
	}); err != nil {
		_ = t.kill()
		return nil, err
	}
	return t, nil
}

type bridgeRequest struct {
	Op         string         `json:"op"`
	RunConfig  map[string]any `json:"run_config,omitempty"`
	Seed       int64          `json:"seed,omitempty"`
	ResultsDir string         `json:"results_dir,omitempty"`
	Features   []string       `json:"features,omitempty"`
}

type bridgeResponse struct {
	OK     bool             `json:"ok"`
	Error  string           `json:"error,omitempty"`
	States map[string]Array `json:"states,omitempty"`
}

type bridgeTrainer struct {
	framework Framework
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	out       *bufio.Scanner

	mu     sync.Mutex
	closed bool
}

func (t *bridgeTrainer) LoadCheckpoints(ctx context.Context, resultsDir string) error {
	if t == nil {
		return errors.New("backend: nil trainer")
	}
	_, err := t.call(ctx, bridgeRequest{Op: opLoadCheckpoints, ResultsDir: resultsDir})
	return err
}

func (t *bridgeTrainer) FetchEpisodeStates(ctx context.Context, features []string) (EpisodeState, error) {
	if t == nil {
		return nil, errors.New("backend: nil trainer")
	}
	raw, err := t.call(ctx, bridgeRequest{Op: opFetchStates, Features: features})
	if err != nil {
		return nil, err
	}

	if err := validateStatesPayload(raw); err != nil {
		return nil, fmt.Errorf("backend: %s: %w", t.framework, err)
	}

	var resp bridgeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("backend: %s: decode states: %w", t.framework, err)
	}
	return EpisodeState(resp.States), nil
}

// Close asks the bridge to shut the trainer down and waits for the process
// to exit. For WarpDrive this triggers the framework's graceful close and
// releases device memory.
func (t *bridgeTrainer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	payload, err := json.Marshal(bridgeRequest{Op: opClose})
	if err == nil {
		_, err = t.stdin.Write(append(payload, '\n'))
	}
	_ = t.stdin.Close()
	t.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case werr := <-done:
		if err != nil {
			return fmt.Errorf("backend: %s: close: %w", t.framework, err)
		}
		if werr != nil {
			return fmt.Errorf("backend: %s: bridge exit: %w", t.framework, werr)
		}
		return nil
	case <-time.After(bridgeCloseTimeout):
		_ = t.cmd.Process.Kill()
		<-done
		return fmt.Errorf("backend: %s: bridge did not exit, killed", t.framework)
	}
}

func (t *bridgeTrainer) kill() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	_ = t.stdin.Close()
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	return t.cmd.Wait()
}

// call sends one request line and waits for one response line. The raw
// response bytes come back so callers can schema-validate before decoding.
func (t *bridgeTrainer) call(ctx context.Context, req bridgeRequest) (json.RawMessage, error) {
	if ctx == nil {
		return nil, errors.New("backend: nil context")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("backend: %s: trainer closed", t.framework)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s: encode %s: %w", t.framework, req.Op, err)
	}
	if _, err := t.stdin.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("backend: %s: send %s: %w", t.framework, req.Op, err)
	}

	type readResult struct {
		line []byte
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		if t.out.Scan() {
			ch <- readResult{line: bytes.Clone(t.out.Bytes())}
			return
		}
		err := t.out.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		ch <- readResult{err: err}
	}()

	select {
	case <-ctx.Done():
		t.closed = true
		_ = t.stdin.Close()
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		go func() { _ = t.cmd.Wait() }()
		return nil, fmt.Errorf("backend: %s: %s: %w", t.framework, req.Op, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("backend: %s: read %s response: %w", t.framework, req.Op, res.err)
		}

		var status struct {
			OK    bool   `json:"ok"`
			Error string `json:"error,omitempty"`
		}
		if err := json.Unmarshal(res.line, &status); err != nil {
			return nil, fmt.Errorf("backend: %s: decode %s response: %w", t.framework, req.Op, err)
		}
		if !status.OK {
			msg := strings.TrimSpace(status.Error)
			if msg == "" {
				msg = "bridge reported failure"
			}
			return nil, fmt.Errorf("backend: %s: %s: %s", t.framework, req.Op, msg)
		}
		return res.line, nil
	}
}
