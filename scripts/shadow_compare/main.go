// Command shadow_compare replays authenticated account requests against this
// service and the legacy backend and reports status or response shape drift.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type targetsFile struct {
	LoginPath string   `json:"loginPath"`
	Targets   []target `json:"targets"`
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	ShapeDiff      []string
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

// backend is one side of the comparison with its own session.
type backend struct {
	name   string
	base   string
	token  string
	client *http.Client
}

func main() {
	var (
		goBase      string
		legacyBase  string
		targetsPath string
		username    string
		password    string
		ignore      string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8000/api/v1", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:8001/api/v1", "Legacy API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "Path to JSON targets file")
	flag.StringVar(&username, "username", os.Getenv("SHADOW_USERNAME"), "Account username present on both backends")
	flag.StringVar(&password, "password", os.Getenv("SHADOW_PASSWORD"), "Account password")
	flag.StringVar(&ignore, "ignore", "_id,id,__v,createdAt,updatedAt,accessToken,refreshToken", "Comma separated keys excluded from shape comparison")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	cfg, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}
	if username == "" || password == "" {
		log.Fatal("username and password are required")
	}

	client := &http.Client{Timeout: timeout}
	goSide := &backend{name: "go", base: goBase, client: client}
	legacySide := &backend{name: "legacy", base: legacyBase, client: client}
	for _, b := range []*backend{goSide, legacySide} {
		if err := b.login(cfg.LoginPath, username, password); err != nil {
			log.Fatalf("%s login failed: %v", b.name, err)
		}
	}

	ignored := map[string]struct{}{}
	for _, k := range strings.Split(ignore, ",") {
		if k = strings.TrimSpace(k); k != "" {
			ignored[k] = struct{}{}
		}
	}

	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)
	for _, t := range cfg.Targets {
		comp := compareTarget(goSide, legacySide, t, ignored)
		drift := comp.Error != nil || !comp.StatusMatch || len(comp.ShapeDiff) > 0
		switch {
		case drift && t.Critical:
			breaking++
		case drift:
			optionalDiff++
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) (*targetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg targetsFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/users/login"
	}
	return &cfg, nil
}

func (b *backend) login(path, username, password string) error {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	resp, _, err := b.do(http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "accessToken" {
			b.token = c.Value
			return nil
		}
	}
	var body struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if body.Data.AccessToken == "" {
		return errors.New("login response carried no access token")
	}
	b.token = body.Data.AccessToken
	return nil
}

func (b *backend) do(method, path string, body io.Reader) (*http.Response, time.Duration, error) {
	if b.client == nil {
		return nil, 0, errors.New("nil client")
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(b.base, "/")+path, body)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

func compareTarget(goSide, legacySide *backend, tgt target, ignored map[string]struct{}) comparison {
	comp := comparison{Target: tgt}
	goBody, goStatus, goDur, goErr := fetch(goSide, tgt)
	legacyBody, legacyStatus, legacyDur, legacyErr := fetch(legacySide, tgt)
	comp.DurationGo = goDur
	comp.DurationLegacy = legacyDur

	if goErr != nil {
		comp.Error = fmt.Errorf("go request failed: %w", goErr)
		return comp
	}
	if legacyErr != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", legacyErr)
		return comp
	}

	comp.GoStatus = goStatus
	comp.LegacyStatus = legacyStatus
	comp.StatusMatch = goStatus == legacyStatus
	comp.ShapeDiff = shapeDiff(goBody, legacyBody, ignored)
	return comp
}

func fetch(b *backend, tgt target) ([]byte, int, time.Duration, error) {
	resp, dur, err := b.do(tgt.Method, tgt.Path, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, dur, nil
}

// shapeDiff lists key paths present on only one side. Values are ignored;
// arrays are compared through their first element.
func shapeDiff(a, b []byte, ignored map[string]struct{}) []string {
	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return []string{"go body is not JSON"}
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return []string{"legacy body is not JSON"}
	}
	left := map[string]struct{}{}
	right := map[string]struct{}{}
	collectPaths("", aj, ignored, left)
	collectPaths("", bj, ignored, right)

	var diff []string
	for p := range left {
		if _, ok := right[p]; !ok {
			diff = append(diff, "+"+p)
		}
	}
	for p := range right {
		if _, ok := left[p]; !ok {
			diff = append(diff, "-"+p)
		}
	}
	sort.Strings(diff)
	return diff
}

func collectPaths(prefix string, v interface{}, ignored map[string]struct{}, out map[string]struct{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			if _, skip := ignored[k]; skip {
				continue
			}
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			out[path] = struct{}{}
			collectPaths(path, child, ignored, out)
		}
	case []interface{}:
		if len(val) > 0 {
			collectPaths(prefix+"[]", val[0], ignored, out)
		}
	}
}

func printReport(results []comparison) {
	fmt.Println("Shadow Compare Report")
	fmt.Println("======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || len(res.ShapeDiff) > 0 {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		fmt.Printf("  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Printf("  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Status match: %t | Critical: %t\n", res.StatusMatch, res.Target.Critical)
		for _, d := range res.ShapeDiff {
			fmt.Printf("    %s\n", d)
		}
	}
}
