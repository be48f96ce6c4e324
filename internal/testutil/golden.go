package testutil

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/JNickson/k8s-tail/internal/utils"
)

var Update = flag.Bool("update", false, "update .golden files")

// FrozenTime is the wall clock every golden test runs under, so fields
// derived from utils.Now stay stable across runs.
var FrozenTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// RunGoldenTest runs exec against every *.input.json under dir and compares
// the result with the matching *.golden.json. Run the tests with -args
// -update to rewrite the golden files from the current output.
func RunGoldenTest[In any, Out any](
	t *testing.T,
	dir string,
	exec func(input In) Out,
) {
	inputFiles, err := filepath.Glob(filepath.Join(dir, "*.input.json"))
	require.NoError(t, err)

	if len(inputFiles) == 0 {
		t.Fatalf("no input files found in %s", dir)
	}

	for _, inputPath := range inputFiles {
		t.Run(filepath.Base(inputPath), func(t *testing.T) {
			originalNow := utils.Now
			utils.Now = func() time.Time { return FrozenTime }
			defer func() { utils.Now = originalNow }()

			var input In
			readJSON(t, inputPath, &input)

			result := exec(input)
			goldenPath := strings.Replace(inputPath, ".input.json", ".golden.json", 1)

			if *Update {
				if os.Getenv("CI") == "true" {
					t.Fatal("golden file updates are not allowed in CI")
				}
				writeGolden(t, goldenPath, result)
				return
			}

			var expected Out
			readJSON(t, goldenPath, &expected)

			if diff := cmp.Diff(expected, result); diff != "" {
				t.Fatalf(
					"mismatch (-expected +actual):\n%s\n\n"+
						"If this change is intentional, run:\n"+
						" go test ./... -args -update\n",
					diff,
				)
			}
		})
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func writeGolden[T any](t *testing.T, path string, result T) {
	t.Helper()

	var old T
	if existing, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(existing, &old)

		if diff := cmp.Diff(old, result); diff != "" {
			t.Logf("Updating golden %s:\n%s", path, diff)
		}
	} else {
		t.Logf("Creating golden %s", path)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, out, 0o644))
}
