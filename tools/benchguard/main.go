// Command benchguard runs the decoder benchmarks and fails when any of them
// regresses past the limits in tools/bench_guardrails.json.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type benchmarkGuard struct {
	MaxNsOp     float64 `json:"max_ns_op"`
	MaxBOp      float64 `json:"max_b_op"`
	MaxAllocsOp float64 `json:"max_allocs_op"`
}

// benchRun is one `go test -bench` invocation.
type benchRun struct {
	Package    string `json:"package"`
	BenchRegex string `json:"bench_regex"`
}

type guardConfig struct {
	Runs       []benchRun                `json:"runs"`
	Count      int                       `json:"count"`
	Benchtime  string                    `json:"benchtime"`
	CPU        int                       `json:"cpu"`
	Benchmarks map[string]benchmarkGuard `json:"benchmarks"`
}

type sample struct {
	NsOp     float64
	BOp      float64
	AllocsOp float64
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "tools/bench_guardrails.json", "path to bench guardrails config")
	flag.Parse()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if err := validateConfig(cfg); err != nil {
		fatalf("invalid config: %v", err)
	}

	samples := make(map[string][]sample)
	for _, run := range cfg.Runs {
		out, err := runBench(cfg, run)
		if err != nil {
			fatalf("run benchmarks in %s: %v", run.Package, err)
		}
		if err := parseBenchmarkOutput(out, samples); err != nil {
			fatalf("parse benchmark output of %s: %v", run.Package, err)
		}
	}

	violations := evaluate(cfg, samples)
	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, v)
		}
		os.Exit(1)
	}

	fmt.Println("benchguard: all configured benchmarks are within guardrails")
}

func loadConfig(path string) (*guardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg guardConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *guardConfig) error {
	if len(cfg.Runs) == 0 {
		return errors.New("runs must be non-empty")
	}
	for i, r := range cfg.Runs {
		if r.Package == "" || r.BenchRegex == "" {
			return fmt.Errorf("run %d: package and bench_regex must be set", i)
		}
	}
	if cfg.Count <= 0 {
		return errors.New("count must be > 0")
	}
	if cfg.CPU <= 0 {
		return errors.New("cpu must be > 0")
	}
	if cfg.Benchtime == "" {
		return errors.New("benchtime must be set")
	}
	if len(cfg.Benchmarks) == 0 {
		return errors.New("benchmarks must be non-empty")
	}
	return nil
}

func runBench(cfg *guardConfig, run benchRun) ([]byte, error) {
	args := []string{
		"test",
		"-run", "^$",
		"-bench", run.BenchRegex,
		"-benchmem",
		"-count", strconv.Itoa(cfg.Count),
		"-benchtime", cfg.Benchtime,
		"-cpu", strconv.Itoa(cfg.CPU),
		run.Package,
	}

	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(), "GOMAXPROCS=1")

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	fmt.Print(buf.String())
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var benchLineRe = regexp.MustCompile(`^(Benchmark\S+?)(?:-\d+)?\s+\d+\s+([0-9.eE+\-]+)\s+ns/op\s+([0-9.eE+\-]+)\s+B/op\s+([0-9.eE+\-]+)\s+allocs/op$`)

// parseBenchmarkOutput adds every benchmark row of out to samples.
func parseBenchmarkOutput(out []byte, samples map[string][]sample) error {
	rows := 0
	for _, line := range strings.Split(string(out), "\n") {
		m := benchLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		var vals [3]float64
		for i, unit := range []string{"ns/op", "B/op", "allocs/op"} {
			v, err := strconv.ParseFloat(m[i+2], 64)
			if err != nil {
				return fmt.Errorf("parse %s for %s: %w", unit, m[1], err)
			}
			vals[i] = v
		}
		samples[m[1]] = append(samples[m[1]], sample{NsOp: vals[0], BOp: vals[1], AllocsOp: vals[2]})
		rows++
	}
	if rows == 0 {
		return errors.New("no benchmark rows parsed")
	}
	return nil
}

func evaluate(cfg *guardConfig, samples map[string][]sample) []string {
	var violations []string
	keys := make([]string, 0, len(cfg.Benchmarks))
	for k := range cfg.Benchmarks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		guard := cfg.Benchmarks[name]
		rows := samples[name]
		if len(rows) == 0 {
			violations = append(violations, fmt.Sprintf("benchguard: missing benchmark in output: %s", name))
			continue
		}
		measured := medianSample(rows)
		fmt.Printf("benchguard: %-30s ns/op=%.1f (max %.1f), B/op=%.1f (max %.1f), allocs/op=%.1f (max %.1f)\n",
			name,
			measured.NsOp, guard.MaxNsOp,
			measured.BOp, guard.MaxBOp,
			measured.AllocsOp, guard.MaxAllocsOp,
		)
		if measured.NsOp > guard.MaxNsOp {
			violations = append(violations, fmt.Sprintf("benchguard: %s ns/op regression: measured %.1f > max %.1f", name, measured.NsOp, guard.MaxNsOp))
		}
		if measured.BOp > guard.MaxBOp {
			violations = append(violations, fmt.Sprintf("benchguard: %s B/op regression: measured %.1f > max %.1f", name, measured.BOp, guard.MaxBOp))
		}
		if measured.AllocsOp > guard.MaxAllocsOp {
			violations = append(violations, fmt.Sprintf("benchguard: %s allocs/op regression: measured %.1f > max %.1f", name, measured.AllocsOp, guard.MaxAllocsOp))
		}
	}
	return violations
}

func medianSample(rows []sample) sample {
	ns := make([]float64, len(rows))
	b := make([]float64, len(rows))
	allocs := make([]float64, len(rows))
	for i, r := range rows {
		ns[i], b[i], allocs[i] = r.NsOp, r.BOp, r.AllocsOp
	}
	return sample{NsOp: median(ns), BOp: median(b), AllocsOp: median(allocs)}
}

func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "benchguard: "+format+"\n", args...)
	os.Exit(2)
}
