//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/pkg/errors"
)

const (
	gotestsumVersion    = "gotest.tools/gotestsum@v1.8.2"
	mockgenVersion      = "github.com/golang/mock/mockgen@v1.6.0"
	golangciLintVersion = "github.com/golangci/golangci-lint/cmd/golangci-lint@v1.52.2"
)

var localBin = filepath.Join(mustGetwd(), "bin")

// packages holding //go:generate mockgen directives.
var mockPackages = []string{
	"./internal/compute/classloader/mocks",
	"./internal/compute/management/mocks",
}

// Build compiles the compute node binary into ./bin.
func Build() error {
	return sh.RunV("go", "build", "-o", binaryPath("computenode"), "./cmd/computenode")
}

// Tests runs every test with the race detector and writes coverage to test_reports.
func Tests() error {
	mg.Deps(mg.F(install, gotestsumVersion))
	if err := os.MkdirAll("test_reports", os.ModePerm); err != nil {
		return err
	}
	return sh.RunV(
		binaryPath("gotestsum"),
		"--junitfile", filepath.Join("test_reports", "junit.xml"),
		"--",
		"-race",
		"-coverprofile", filepath.Join("test_reports", "coverage.out"),
		"./internal/...", "./cmd/...",
	)
}

// Mocks regenerates the gomock fakes.
func Mocks() error {
	mg.Deps(mg.F(install, mockgenVersion))
	env := map[string]string{"PATH": localBin + string(os.PathListSeparator) + os.Getenv("PATH")}
	for _, pkg := range mockPackages {
		if err := sh.RunWithV(env, "go", "generate", pkg); err != nil {
			return errors.WithMessagef(err, "generating mocks in %s", pkg)
		}
	}
	return nil
}

// Lint runs golangci-lint over the module.
func Lint() error {
	mg.Deps(mg.F(install, golangciLintVersion))
	return sh.RunV(binaryPath("golangci-lint"), "run", "--timeout", "10m")
}

// CheckFmt fails if any file is not gofmt formatted.
func CheckFmt() error {
	out, err := sh.Output("gofmt", "-l", "cmd", "internal", "magefiles")
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) != "" {
		return errors.Errorf("files need formatting:\n%s", out)
	}
	return nil
}

// install go installs tool into ./bin unless it is already there.
func install(tool string) error {
	name := filepath.Base(strings.SplitN(tool, "@", 2)[0])
	if _, err := os.Stat(binaryPath(name)); err == nil {
		return nil
	}
	fmt.Printf("Installing %s\n", tool)
	return sh.RunWith(map[string]string{"GOBIN": localBin}, "go", "install", tool)
}
