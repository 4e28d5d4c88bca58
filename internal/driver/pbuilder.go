package driver

import (
	"fmt"
	"os"
)

// PbuilderOp selects what ManagePbuilder does with the base tarball.
type PbuilderOp string

const (
	PbuilderCreate PbuilderOp = "create"
	PbuilderUpdate PbuilderOp = "update"
)

// ManagePbuilder creates or updates the pbuilder base tarball of the
// configured distribution.
func (dr *Driver) ManagePbuilder(op PbuilderOp) error {
	if op != PbuilderCreate && op != PbuilderUpdate {
		return fmt.Errorf("unknown pbuilder operation %q", op)
	}

	pb := dr.layout.Pbuilder
	for _, dir := range []string{pb.TgzDir, pb.WorkDir, pb.CacheDir, pb.Root} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	args := []string{"pbuilder", string(op),
		"--distribution", pb.Distribution,
		"--debootstrapopts", "--variant=buildd",
		"--debootstrapopts", "--keyring",
		"--debootstrapopts", "/etc/apt/trusted.gpg",
	}
	args = append(args, dr.pbuilderOpts()...)
	return dr.run(pb.Root, "sudo", args...)
}

func (dr *Driver) pbuilderBuild(dscPath, resultDir string) error {
	pb := dr.layout.Pbuilder
	if err := os.MkdirAll(pb.Root, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", pb.Root, err)
	}
	args := append([]string{"pbuilder", "build"}, dr.pbuilderOpts()...)
	args = append(args, "--buildresult", resultDir, dscPath)
	return dr.run(pb.Root, "sudo", args...)
}

func (dr *Driver) pbuilderOpts() []string {
	pb := dr.layout.Pbuilder
	opts := []string{
		"--buildplace", pb.WorkDir,
		"--basetgz", pb.BaseTgz,
		"--mirror", pb.Mirror,
	}
	if pb.OtherMirror != "" {
		opts = append(opts, "--othermirror", pb.OtherMirror)
	}
	if pb.Architecture != "" {
		opts = append(opts, "--architecture", pb.Architecture)
	}
	return append(opts, "--aptcache", pb.CacheDir, "--components", "main")
}
