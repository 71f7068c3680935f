package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"git.home.luguber.info/inful/verdocs/internal/config"
	"git.home.luguber.info/inful/verdocs/internal/refs"
)

// RunRefs resolves and prints the refs a build would process, one per line,
// without touching the output directory.
func RunRefs(configPath string, force bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if force {
		cfg.Refs.Force = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resolver := refs.NewResolver(cfg.Repo.Path, cfg.Refs)
	refList, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tCOMMIT\tMAIN")
	for _, ref := range refList {
		main := ""
		if ref.IsMain {
			main = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%.12s\t%s\n", ref.Name, ref.Kind, ref.Commit, main)
	}
	return w.Flush()
}
