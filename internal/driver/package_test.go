package driver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/frederic-klein/makeall/internal/config"
	"github.com/frederic-klein/makeall/internal/project"
	"github.com/frederic-klein/makeall/internal/shell"
)

func argValue(args []string, prefix string) string {
	for i, a := range args {
		if a == prefix && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasSuffix(prefix, "=") && strings.HasPrefix(a, prefix) {
			return strings.TrimPrefix(a, prefix)
		}
	}
	return ""
}

// simulateGitArchive makes "git archive" write a tarball holding one file
// named after the directory it was run in.
func simulateGitArchive(t *testing.T) func(cmd shell.Command) error {
	return func(cmd shell.Command) error {
		if cmd.Name != "git" || len(cmd.Args) == 0 || cmd.Args[0] != "archive" {
			return nil
		}
		prefix := argValue(cmd.Args, "--prefix=")
		out := argValue(cmd.Args, "-o")
		writeTarball(t, out, map[string]string{
			prefix + "FROM_" + filepath.Base(cmd.Dir): "archived\n",
		})
		return nil
	}
}

func TestDriver_Package_MakeDist(t *testing.T) {
	// Arrange
	env := newTestEnv(t, Options{})
	src := filepath.Join(env.root, "checkouts", "foo")
	writeFile(t, filepath.Join(src, "configure.ac"), "AC_INIT([foo], [1.0])\n")
	writeFile(t, filepath.Join(src, "configure"), "#!/bin/sh\n")
	writeDebianDir(t, filepath.Join(env.root, "checkouts_packaging", "foo", "debian"), "foo", "1:1.0-2")
	d := env.describe(t, "foo")
	if err := os.MkdirAll(d.BuildDir, 0755); err != nil {
		t.Fatal(err)
	}
	env.runner.onRun = func(cmd shell.Command) error {
		if cmd.String() == "make dist" {
			writeTarball(t, filepath.Join(cmd.Dir, "foo-1.0.tar.gz"), map[string]string{
				"foo-1.0/configure.ac": "AC_INIT([foo], [1.0])\n",
				"foo-1.0/debian/rules": "shipped\n",
			})
		}
		return nil
	}

	// Act
	res, err := env.driver.Package(d, false)

	// Assert
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	versionDir := filepath.Join(env.root, "build_packaging", "foo", "1.0")
	if d.VersionDir() != versionDir {
		t.Errorf("VersionDir() = %q, want %q", d.VersionDir(), versionDir)
	}
	if res.Entry.Version != "1.0" || res.Entry.Revision != "2" {
		t.Errorf("Entry = %+v, want version 1.0 revision 2", res.Entry)
	}
	if res.Archive != filepath.Join(versionDir, "foo_1.0.orig.tar.gz") || !exists(res.Archive) {
		t.Errorf("Archive = %q, want the orig tarball in the version dir", res.Archive)
	}
	if exists(filepath.Join(d.BuildDir, "foo-1.0.tar.gz")) {
		t.Error("distributable was not moved out of the build dir")
	}

	rules, err := os.ReadFile(filepath.Join(versionDir, "foo-1.0", "debian", "rules"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(rules), "shipped") {
		t.Error("shipped debian dir was not replaced by the packaging checkout")
	}

	want := []string{
		"build/foo: make dist",
		"build_packaging/foo/1.0/foo-1.0: debuild -eDEB_BUILD_OPTIONS=parallel=2 --no-lintian -sa -us -uc",
	}
	if diff := cmp.Diff(want, env.runner.lines(env.root)); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_Package_GitSubmodules(t *testing.T) {
	// Arrange
	env := newTestEnv(t, Options{})
	src := filepath.Join(env.root, "checkouts", "kicad")
	writeFile(t, filepath.Join(src, "README"), "")
	writeFile(t, filepath.Join(src, ".gitmodules"), "[submodule \"libs\"]\n\tpath = libs\n\turl = https://example.org/libs.git\n")
	if err := os.MkdirAll(filepath.Join(src, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, "libs"), 0755); err != nil {
		t.Fatal(err)
	}
	writeDebianDir(t, filepath.Join(src, "debian"), "kicad", "5.0-1")
	key := "0x0374452d"
	env.settings.Defaults.SignKey = &key
	d := env.describe(t, "kicad")
	env.runner.onRun = simulateGitArchive(t)

	// Act
	_, err := env.driver.Package(d, true)

	// Assert
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	tree := filepath.Join(env.root, "build_packaging", "kicad", "5.0", "kicad-5.0")
	for _, f := range []string{"FROM_kicad", filepath.Join("libs", "FROM_libs"), filepath.Join("debian", "changelog")} {
		if !exists(filepath.Join(tree, f)) {
			t.Errorf("%s missing from the unpacked tree", f)
		}
	}

	lines := env.runner.lines(env.root)
	if len(lines) != 3 {
		t.Fatalf("commands = %v, want 3", lines)
	}
	if !strings.HasPrefix(lines[0], "checkouts/kicad: git archive --worktree-attributes --prefix=kicad-5.0/ HEAD --format=tar -o") {
		t.Errorf("commands[0] = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "checkouts/kicad/libs: git archive --worktree-attributes --prefix=kicad-5.0/libs/ HEAD --format=tar -o") {
		t.Errorf("commands[1] = %q", lines[1])
	}
	wantDebuild := "build_packaging/kicad/5.0/kicad-5.0: debuild -eDEB_BUILD_OPTIONS=parallel=2 --no-lintian -S -sa -k0x0374452d"
	if lines[2] != wantDebuild {
		t.Errorf("commands[2] = %q, want %q", lines[2], wantDebuild)
	}
}

func TestDriver_Package_BuildHook(t *testing.T) {
	env := newTestEnv(t, Options{HookCommand: "/usr/bin/makeall copy-build-files"})
	src := filepath.Join(env.root, "checkouts", "emerald")
	writeFile(t, filepath.Join(src, "README"), "")
	if err := os.MkdirAll(filepath.Join(src, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	writeDebianDir(t, filepath.Join(src, "debian"), "emerald", "0.9-1")
	sub := "build"
	env.settings.Projects = map[string]config.Overrides{"emerald": {HookSubdir: &sub}}
	d := env.describe(t, "emerald")
	env.runner.onRun = simulateGitArchive(t)

	if _, err := env.driver.Package(d, false); err != nil {
		t.Fatalf("Package() error = %v", err)
	}

	last := env.runner.cmds[len(env.runner.cmds)-1]
	wantArgs := []string{
		"-eDEB_BUILD_OPTIONS=parallel=2", "--no-lintian",
		"--hook-build=/usr/bin/makeall copy-build-files build", "-e", BuildPathEnv,
		"-sa", "-us", "-uc",
	}
	if diff := cmp.Diff(wantArgs, last.Args); diff != "" {
		t.Errorf("debuild args mismatch (-want +got):\n%s", diff)
	}
	if last.Env[BuildPathEnv] != d.BuildDir {
		t.Errorf("%s = %q, want %q", BuildPathEnv, last.Env[BuildPathEnv], d.BuildDir)
	}
}

func TestDriver_Package_DhMakeFallback(t *testing.T) {
	// Arrange: plain Makefile project with a dist target and no packaging
	env := newTestEnv(t, Options{})
	src := filepath.Join(env.root, "checkouts", "bar")
	writeFile(t, filepath.Join(src, "Makefile"), "all:\n\ndist:\n\ttar czf bar-0.3.tar.gz .\n")
	d := env.describe(t, "bar")
	if err := os.MkdirAll(d.BuildDir, 0755); err != nil {
		t.Fatal(err)
	}
	env.runner.onRun = func(cmd shell.Command) error {
		switch cmd.Name {
		case "make":
			writeTarball(t, filepath.Join(cmd.Dir, "bar-0.3.tar.gz"), map[string]string{"bar-0.3/Makefile": "all:\n"})
		case "dh_make":
			writeFile(t, filepath.Join(cmd.Dir, "debian", "changelog"), "bar (0.3-1) UNRELEASED; urgency=medium\n")
		}
		return nil
	}

	// Act
	_, err := env.driver.Package(d, false)

	// Assert
	if !errors.Is(err, ErrDebianDirCreated) {
		t.Fatalf("Package() error = %v, want ErrDebianDirCreated", err)
	}
	if !exists(filepath.Join(d.OutputDir, "debian", "changelog")) {
		t.Error("generated debian dir was not saved for review")
	}
	for _, c := range env.runner.cmds {
		if c.Name == "debuild" {
			t.Error("debuild must not run on a generated debian dir")
		}
	}
}

func TestDriver_Package_Unsupported(t *testing.T) {
	env := newTestEnv(t, Options{})
	writeFile(t, filepath.Join(env.root, "checkouts", "notes", "README"), "")
	d := env.describe(t, "notes")

	_, err := env.driver.Package(d, false)

	if !errors.Is(err, ErrUnsupportedDist) {
		t.Errorf("Package() error = %v, want ErrUnsupportedDist", err)
	}
}

func TestDriver_MakeDistributable_Method(t *testing.T) {
	tests := []struct {
		name    string
		method  config.DistMethod
		backend string
		git     bool
		wantCmd string
		wantErr error
	}{
		{"auto autotools", config.DistAuto, "configure.ac", true, "make", nil},
		{"auto makefile without dist", config.DistAuto, "Makefile", true, "git", nil},
		{"forced git", config.DistGit, "configure.ac", true, "git", nil},
		{"forced git without repo", config.DistGit, "configure.ac", false, "", ErrUnsupportedDist},
		{"forced make", config.DistMake, "CMakeLists.txt", false, "make", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			src := filepath.Join(env.root, "checkouts", "foo")
			writeFile(t, filepath.Join(src, tt.backend), "all:\n")
			if tt.git {
				if err := os.MkdirAll(filepath.Join(src, ".git"), 0755); err != nil {
					t.Fatal(err)
				}
			}
			writeDebianDir(t, filepath.Join(src, "debian"), "foo", "1.0-1")
			method := tt.method
			env.settings.Defaults.DistMethod = &method
			d := env.describe(t, "foo")
			env.runner.onRun = func(cmd shell.Command) error {
				if cmd.Name == "make" {
					writeTarball(t, filepath.Join(cmd.Dir, "foo-1.0.tar.gz"), map[string]string{"foo-1.0/x": ""})
				}
				return simulateGitArchive(t)(cmd)
			}
			if err := os.MkdirAll(d.BuildDir, 0755); err != nil {
				t.Fatal(err)
			}

			_, err := env.driver.makeDistributable(d)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("makeDistributable() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("makeDistributable() error = %v", err)
			}
			if got := env.runner.cmds[0].Name; got != tt.wantCmd {
				t.Errorf("ran %q, want %q", got, tt.wantCmd)
			}
		})
	}
}

func TestReadSubmodulePaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gitmodules")
	writeFile(t, path, `[submodule "a"]
	path = libs/a
	url = ../a.git
[submodule "b"]
	path=b
`)

	got, err := readSubmodulePaths(path)
	if err != nil {
		t.Fatalf("readSubmodulePaths() error = %v", err)
	}
	if diff := cmp.Diff([]string{"libs/a", "b"}, got); diff != "" {
		t.Errorf("readSubmodulePaths() mismatch (-want +got):\n%s", diff)
	}

	none, err := readSubmodulePaths(filepath.Join(t.TempDir(), ".gitmodules"))
	if err != nil || none != nil {
		t.Errorf("readSubmodulePaths() on a missing file = %v, %v", none, err)
	}
}

func TestDriver_KeyArgs(t *testing.T) {
	env := newTestEnv(t, Options{})
	d := &project.Descriptor{Name: "foo"}

	if diff := cmp.Diff([]string{"-us", "-uc"}, env.driver.keyArgs(d)); diff != "" {
		t.Errorf("keyArgs() unsigned mismatch (-want +got):\n%s", diff)
	}

	key := "ABCD"
	env.settings.Projects = map[string]config.Overrides{"foo": {SignKey: &key}}
	if diff := cmp.Diff([]string{"-kABCD"}, env.driver.keyArgs(d)); diff != "" {
		t.Errorf("keyArgs() signed mismatch (-want +got):\n%s", diff)
	}
}
