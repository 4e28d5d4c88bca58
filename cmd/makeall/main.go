package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/frederic-klein/makeall/internal/config"
	"github.com/frederic-klein/makeall/internal/driver"
	"github.com/frederic-klein/makeall/internal/index"
	"github.com/frederic-klein/makeall/internal/project"
	"github.com/frederic-klein/makeall/internal/report"
	"github.com/frederic-klein/makeall/internal/shell"
)

var (
	rootDir      string
	archiveDir   string
	configPath   string
	verbose      bool
	noCheck      bool
	pristine     bool
	usePbuilder  bool
	pbuilderDist string
	jobs         int
)

var errNoProjects = errors.New("no name of project provided")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "makeall [PROJECT...]",
		Short: "Build, package and install projects from a checkout tree",
		Long: "makeall detects the build system of each checkout, rebuilds what is stale, " +
			"creates an upstream archive, packages it with debuild and installs the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
			log.SetLevel(log.InfoLevel)
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				log.Warn("Action not specified. Defaulting to compile+package+install")
			}
			return runAction(cmd, project.ActionInstall, args)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootDir, "root", defaultPath("code", "my"), "Checkout tree root")
	flags.StringVar(&archiveDir, "archive", defaultPath("code", "apt"), "Local apt archive directory")
	flags.StringVarP(&configPath, "config", "c", defaultPath(".config", "makeall", "config.yaml"), "Settings file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVarP(&noCheck, "nocheck", "n", false, "Skip make check")
	flags.BoolVar(&pristine, "pristine", false, "Package pristine Debian checkouts")
	flags.BoolVar(&usePbuilder, "use-pbuilder", false, "Build pristine packages in pbuilder")
	flags.StringVar(&pbuilderDist, "pbuilder-dist", "", "Pbuilder distribution, e.g. sid-experimental")
	flags.IntVarP(&jobs, "jobs", "j", 0, "Parallel jobs for make and debuild")

	actions := []struct {
		action project.Action
		short  string
	}{
		{project.ActionBuild, "Build and check the source tree"},
		{project.ActionClean, "Remove the build tree and package files"},
		{project.ActionFullClean, "Regenerate the build system, then clean"},
		{project.ActionPackage, "Build and create binary packages"},
		{project.ActionPackageSource, "Build and create a source package"},
		{project.ActionInstall, "Build, package and install"},
		{project.ActionReinstall, "Install the latest packages again"},
		{project.ActionDebInstall, "Build, package and add to the local archive"},
		{project.ActionDebReinstall, "Add the latest packages to the local archive again"},
	}
	for _, a := range actions {
		action := a.action
		rootCmd.AddCommand(&cobra.Command{
			Use:   action.String() + " PROJECT...",
			Short: a.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAction(cmd, action, args)
			},
		})
	}

	rootCmd.AddCommand(newListCmd(), newStatusCmd(), newPbuilderCmd(), newCopyBuildFilesCmd())
	return rootCmd
}

func defaultPath(elem ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(elem...)
	}
	return filepath.Join(append([]string{home}, elem...)...)
}

// setup loads the settings file and applies the command line on top.
func setup(cmd *cobra.Command) (*config.Layout, *driver.Driver, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	root := rootDir
	if !flags.Changed("root") && settings.Root != "" {
		root = settings.Root
	}
	archive := archiveDir
	if !flags.Changed("archive") && settings.Archive != "" {
		archive = settings.Archive
	}
	if flags.Changed("jobs") {
		if jobs < 1 {
			return nil, nil, fmt.Errorf("--jobs must be at least 1, got %d", jobs)
		}
		settings.SetDefaultJobs(jobs)
	}

	pb := settings.Pbuilder
	if pbuilderDist != "" {
		pb.Dist = pbuilderDist
	}
	layout := config.NewLayout(root, archive, pb)
	if pristine {
		layout.UsePristine()
	}

	opts := driver.Options{
		Check:       !noCheck,
		UsePbuilder: usePbuilder,
	}
	if exe, err := os.Executable(); err == nil {
		opts.HookCommand = exe + " copy-build-files"
	}

	return layout, driver.New(layout, settings, shell.NewSessionRunner(), opts), nil
}

func runAction(cmd *cobra.Command, action project.Action, args []string) error {
	layout, dr, err := setup(cmd)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		printAvailable(cmd.OutOrStdout(), layout)
		return errNoProjects
	}

	if err := dr.Run(action, args); err != nil {
		return err
	}
	log.Info("Success!")
	return nil
}

func printAvailable(w io.Writer, layout *config.Layout) {
	printEntries := func(title string, dirs []string) {
		fmt.Fprintln(w, title)
		idx := index.NewProjectIndex(dirs...)
		if err := idx.Load(); err != nil {
			log.Warn(err)
			return
		}
		for _, e := range idx.Entries() {
			fmt.Fprintf(w, "'%s' in directory '%s'\n", e.Name, e.Dir)
		}
	}

	printEntries("Available projects:", layout.ProjectDirs)
	fmt.Fprintln(w)
	printEntries("Available projects for pristine builds:", layout.PristineDirs)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, _, err := setup(cmd)
			if err != nil {
				return err
			}
			printAvailable(cmd.OutOrStdout(), layout)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [PROJECT...]",
		Short: "Show the last run of each project",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, dr, err := setup(cmd)
			if err != nil {
				return err
			}

			entries, err := dr.Available()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				idx := index.NewProjectIndex(layout.SearchDirs()...)
				if err := idx.Load(); err != nil {
					return err
				}
				if entries, err = idx.Match(args); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			for _, e := range entries {
				rec, err := report.Latest(layout.LogFile(e.Name))
				if err != nil {
					return err
				}
				if rec == nil {
					fmt.Fprintf(w, "%s\tnever run\n", e.Name)
					continue
				}
				version := rec.Version
				if version == "" {
					version = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Name, rec.Action, version,
					rec.Time.Local().Format(time.DateTime), rec.Result)
			}
			return nil
		},
	}
}

func newPbuilderCmd() *cobra.Command {
	pbuilderCmd := &cobra.Command{
		Use:   "pbuilder",
		Short: "Manage the pbuilder environment",
	}

	for _, op := range []driver.PbuilderOp{driver.PbuilderCreate, driver.PbuilderUpdate} {
		pbuilderCmd.AddCommand(&cobra.Command{
			Use:   string(op),
			Short: fmt.Sprintf("%s the pbuilder base tarball", op),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if pristine {
					return fmt.Errorf("pbuilder %s must not be used along with --pristine", op)
				}
				_, dr, err := setup(cmd)
				if err != nil {
					return err
				}
				log.Info("Preparing pbuilder environment. Please wait...")
				return dr.ManagePbuilder(op)
			},
		})
	}

	return pbuilderCmd
}

// newCopyBuildFilesCmd is the debuild build hook. It runs inside the
// unpacked package tree.
func newCopyBuildFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "copy-build-files SUBDIR",
		Short:  "Reuse objects of the out-of-tree build in a package build",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := os.Getenv(driver.BuildPathEnv)
			if src == "" {
				return fmt.Errorf("%s is not set", driver.BuildPathEnv)
			}
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			target := filepath.Join(cwd, args[0])

			log.Infof("Copying from: %s", src)
			log.Infof("Copying to:   %s", target)
			n, err := driver.CopyBuildFiles(src, target, time.Now())
			if err != nil {
				return err
			}
			log.Infof("Copied %d files", n)
			return nil
		},
	}
}
