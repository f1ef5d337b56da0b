package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir, err := ioutil.TempDir("", "ordercheck")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	log.SetOutput(ioutil.Discard)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	argv := append([]string{"ordercheck", "--config", filepath.Join(dir, "missing.yml")}, args...)
	err = app.Run(argv)
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := runApp(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "acqrel ") || !strings.Contains(out, "acqrel-demoted") {
		t.Errorf("list output:\n%s", out)
	}
}

func TestCheckJSON(t *testing.T) {
	out, err := runApp(t, "check", "--format", "json", "acqrel", "acqrel-demoted")
	if err != nil {
		t.Fatal(err)
	}
	var results []struct {
		Scenario string         `json:"scenario"`
		Passed   bool           `json:"passed"`
		Outcomes map[string]int `json:"outcomes"`
	}
	if err := sonnet.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(results) != 2 || !results[0].Passed || !results[1].Passed {
		t.Fatalf("results = %+v", results)
	}
	if len(results[0].Outcomes) != 4 {
		t.Errorf("acqrel outcomes = %v", results[0].Outcomes)
	}
}

func TestCheckFailsOnLimit(t *testing.T) {
	_, err := runApp(t, "check", "--maxIterations", "1", "--noColor", "acqrel")
	if err == nil || !strings.Contains(err.Error(), "scenario acqrel failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestCheckRecordsHistory(t *testing.T) {
	dir, err := ioutil.TempDir("", "ordercheck-db")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	db := filepath.Join(dir, "runs.db")

	if _, err := runApp(t, "check", "--history", db, "--noColor", "acqrel"); err != nil {
		t.Fatal(err)
	}
	out, err := runApp(t, "history", "--history", db, "acqrel")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "acqrel") || !strings.Contains(out, "PASS") {
		t.Errorf("history output:\n%s", out)
	}
}

func TestReplayRejectsBadInput(t *testing.T) {
	if _, err := runApp(t, "replay", "acqrel"); err == nil {
		t.Error("replay accepted a missing token")
	}
	if _, err := runApp(t, "replay", "nope", "00"); err == nil {
		t.Error("replay accepted an unknown scenario")
	}
	if _, err := runApp(t, "replay", "acqrel", "zz"); err == nil {
		t.Error("replay accepted a malformed token")
	}
}
