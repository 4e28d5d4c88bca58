package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/frederic-klein/makeall/internal/project"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  project.BuildBackend
	}{
		{"empty", nil, project.BackendNone},
		{"configure.ac", []string{"configure.ac"}, project.BackendAutotools},
		{"configure only", []string{"configure"}, project.BackendAutotools},
		{"qmake", []string{"app.pro"}, project.BackendQMake},
		{"cmake", []string{"CMakeLists.txt"}, project.BackendCMake},
		{"makefile", []string{"Makefile"}, project.BackendMakefile},
		{"autotools beats cmake", []string{"configure.ac", "CMakeLists.txt"}, project.BackendAutotools},
		{"autotools beats everything", []string{"Makefile", "app.pro", "CMakeLists.txt", "configure"}, project.BackendAutotools},
		{"qmake beats cmake", []string{"CMakeLists.txt", "app.pro"}, project.BackendQMake},
		{"cmake beats makefile", []string{"Makefile", "CMakeLists.txt"}, project.BackendCMake},
		{"pro in subdir ignored", []string{"sub/app.pro", "Makefile"}, project.BackendMakefile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, filepath.Join(dir, f), "")
			}

			if got := Classify(dir); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_MissingDir(t *testing.T) {
	if got := Classify(filepath.Join(t.TempDir(), "nope")); got != project.BackendNone {
		t.Errorf("Classify() = %v, want none", got)
	}
}

func TestDetectVCS(t *testing.T) {
	dir := t.TempDir()
	if got := DetectVCS(dir); got != project.VcsNone {
		t.Errorf("DetectVCS() = %v, want none", got)
	}

	// A .git file (worktree link) is not a repository directory
	writeFile(t, filepath.Join(dir, ".git"), "gitdir: elsewhere\n")
	if got := DetectVCS(dir); got != project.VcsNone {
		t.Errorf("DetectVCS() = %v with .git file, want none", got)
	}

	if err := os.Remove(filepath.Join(dir, ".git")); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	if got := DetectVCS(dir); got != project.VcsGit {
		t.Errorf("DetectVCS() = %v, want git", got)
	}
}
