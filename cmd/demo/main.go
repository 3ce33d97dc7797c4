// File: cmd/demo/main.go
//
// demo drives a running service through the code lifecycle and then races
// -n concurrent redemptions of a single code.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"discount-code-service/internal/config"
	"discount-code-service/internal/infra/logging"
	"discount-code-service/internal/infra/worker"
)

type client struct {
	base string
	http *http.Client
}

type reply struct {
	Status int
	Body   map[string]any
}

func (c *client) do(ctx context.Context, method, path string, body any) (reply, error) {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return reply{}, err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return reply{}, err
	}
	defer resp.Body.Close()

	out := reply{Status: resp.StatusCode}
	_ = json.NewDecoder(resp.Body).Decode(&out.Body)
	return out, nil
}

func (c *client) code(ctx context.Context, path, code string) (reply, error) {
	return c.do(ctx, http.MethodPost, path, map[string]string{"code": code})
}

type step struct {
	name  string
	call  func(ctx context.Context) (reply, error)
	want  int
	check func(body map[string]any) error
}

// state returns a check that a validate_code body reports the given
// existence and usage. A nil used expects JSON null.
func state(exists bool, used *bool) func(map[string]any) error {
	return func(body map[string]any) error {
		if got, ok := body["exists"].(bool); !ok || got != exists {
			return fmt.Errorf("exists = %v, want %v", body["exists"], exists)
		}
		raw, present := body["used"]
		if !present {
			return fmt.Errorf("used missing from body")
		}
		if used == nil {
			if raw != nil {
				return fmt.Errorf("used = %v, want null", raw)
			}
			return nil
		}
		if got, ok := raw.(bool); !ok || got != *used {
			return fmt.Errorf("used = %v, want %v", raw, *used)
		}
		return nil
	}
}

func main() {
	base := flag.String("base", "http://localhost:8000", "service base URL")
	n := flag.Int("n", 20, "concurrent redemptions of one code")
	flag.Parse()

	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c := &client{base: strings.TrimRight(*base, "/"), http: &http.Client{Timeout: 10 * time.Second}}

	failed := runScenario(ctx, c, logger)
	if !raceRedemptions(ctx, c, *n, logger) {
		failed = true
	}
	if failed {
		os.Exit(1)
	}
	logger.Info().Msg("demo passed")
}

// runScenario walks a fresh code through ABSENT -> UNUSED -> USED.
func runScenario(ctx context.Context, c *client, logger *zerolog.Logger) bool {
	gen, err := c.do(ctx, http.MethodGet, "/generate_code", nil)
	if err != nil || gen.Status != http.StatusOK {
		logger.Error().Err(err).Int("status", gen.Status).Msg("generate_code")
		return true
	}
	code, _ := gen.Body["code"].(string)
	logger.Info().Str("code", code).Msg("generated")

	call := func(path string) func(ctx context.Context) (reply, error) {
		return func(ctx context.Context) (reply, error) { return c.code(ctx, path, code) }
	}
	unused, used := false, true
	steps := []step{
		{"validate before grant", call("/validate_code"), http.StatusOK, state(false, nil)},
		{"grant", call("/grant_code"), http.StatusOK, nil},
		{"grant again", call("/grant_code"), http.StatusConflict, nil},
		{"validate unused", call("/validate_code"), http.StatusOK, state(true, &unused)},
		{"use", call("/use_code"), http.StatusOK, nil},
		{"validate used", call("/validate_code"), http.StatusOK, state(true, &used)},
		{"use again", call("/use_code"), http.StatusConflict, nil},
		{"use unknown", func(ctx context.Context) (reply, error) {
			return c.code(ctx, "/use_code", "zz"+uuid.NewString()[:8])
		}, http.StatusNotFound, nil},
	}

	failed := false
	for _, s := range steps {
		if !runStep(ctx, s, logger) {
			failed = true
		}
	}
	return failed
}

func runStep(ctx context.Context, s step, logger *zerolog.Logger) bool {
	r, err := s.call(ctx)
	if err == nil && r.Status != s.want {
		err = fmt.Errorf("status %d, want %d", r.Status, s.want)
	}
	if err == nil && s.check != nil {
		err = s.check(r.Body)
	}
	ev := logger.Info()
	if err != nil {
		ev = logger.Error().Err(err)
	}
	ev.Str("step", s.name).Int("status", r.Status).Interface("body", r.Body).Msg("")
	return err == nil
}

// raceRedemptions grants one code and redeems it n times concurrently.
// Exactly one redemption may succeed; the rest must be conflicts.
func raceRedemptions(ctx context.Context, c *client, n int, logger *zerolog.Logger) bool {
	if n <= 0 {
		return true
	}
	code := fmt.Sprintf("race%06d", time.Now().UnixNano()%1_000_000)
	if r, err := c.code(ctx, "/grant_code", code); err != nil || r.Status != http.StatusOK {
		logger.Error().Err(err).Int("status", r.Status).Str("code", code).Msg("grant for race")
		return false
	}

	pool := worker.NewPool(n, n, logger)
	pool.Start(ctx)

	var (
		mu     sync.Mutex
		counts = map[int]int{}
	)
	for i := 0; i < n; i++ {
		err := pool.Submit(func(ctx context.Context) error {
			r, err := c.code(ctx, "/use_code", code)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[r.Status]++
			mu.Unlock()
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("submit")
		}
	}
	pool.Stop()

	ok := counts[http.StatusOK] == 1 && counts[http.StatusConflict] == n-1
	ev := logger.Info()
	if !ok {
		ev = logger.Error()
	}
	ev.Str("code", code).
		Int("ok", counts[http.StatusOK]).
		Int("conflict", counts[http.StatusConflict]).
		Int("requests", n).
		Msg("concurrent redemption")
	return ok
}
