// Command depscheck fails when a core package imports one of the outer
// layers. Run it from the module root: go run ./tools/depscheck
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "spellcast/server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under From from importing anything under one of
// Forbidden.
type rule struct {
	From      string
	Forbidden []string
}

var outer = []string{
	modulePath + "/internal/app",
	modulePath + "/internal/arena",
	modulePath + "/internal/catalog",
	modulePath + "/internal/config",
	modulePath + "/internal/net",
	modulePath + "/internal/watcher",
	modulePath + "/internal/observability",
}

var rules = []rule{
	{From: modulePath + "/internal/geom", Forbidden: append([]string{modulePath + "/internal/ability", modulePath + "/internal/cast", modulePath + "/logging"}, outer...)},
	{From: modulePath + "/internal/timer", Forbidden: append([]string{modulePath + "/internal/ability", modulePath + "/internal/cast"}, outer...)},
	{From: modulePath + "/internal/ability", Forbidden: append([]string{modulePath + "/internal/cast"}, outer...)},
	{From: modulePath + "/internal/cast", Forbidden: outer},
	{From: modulePath + "/logging", Forbidden: append([]string{modulePath + "/internal/cast", modulePath + "/internal/ability"}, outer...)},
	{From: modulePath + "/internal/watcher", Forbidden: []string{modulePath + "/internal/arena", modulePath + "/internal/net", modulePath + "/internal/app"}},
	{From: modulePath + "/internal/arena", Forbidden: []string{modulePath + "/internal/net", modulePath + "/internal/app"}},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	pkgs, err := decodePackages(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if violations := check(pkgs, rules); len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(r io.Reader) ([]packageInfo, error) {
	decoder := json.NewDecoder(r)
	var pkgs []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return pkgs, nil
			}
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
}

func check(pkgs []packageInfo, rules []rule) []string {
	var violations []string
	for _, pkg := range pkgs {
		for _, r := range rules {
			if !within(pkg.ImportPath, r.From) {
				continue
			}
			for _, imp := range pkg.Imports {
				for _, forbidden := range r.Forbidden {
					if within(imp, forbidden) {
						violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
					}
				}
			}
		}
	}
	sort.Strings(violations)
	return violations
}

func within(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
