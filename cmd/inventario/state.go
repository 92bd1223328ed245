package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/erazemk/inventario/internal/state"
	"github.com/erazemk/inventario/internal/store"
	"github.com/erazemk/inventario/internal/workflow"
)

func cmdExport(args []string, stdout io.Writer) error {
	f := newFlags("export")
	var outPath string
	f.fs.StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := f.load()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	st, err := store.NewStateStore(database).Load(context.Background())
	if err != nil {
		return err
	}
	data, err := state.Encode(st)
	if err != nil {
		return err
	}

	if outPath == "" {
		_, err = stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}

func cmdImport(args []string) error {
	f := newFlags("import")
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	if f.fs.NArg() != 1 {
		return fmt.Errorf("import needs exactly one file argument")
	}
	cfg, err := f.load()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(f.fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.fs.Arg(0), err)
	}
	doc, err := state.Decode(data)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	stateStore := store.NewStateStore(database)
	current, err := stateStore.Load(ctx)
	if err != nil {
		return err
	}
	svc := workflow.New(state.NewStore(current, stateStore))
	out, err := svc.ImportState(ctx, workflow.System, doc)
	if err != nil {
		return err
	}
	if err := store.RekeyCredentials(ctx, database, current.Users, out.Users); err != nil {
		return err
	}

	slog.Info("state imported", "file", f.fs.Arg(0), "version", out.Version, "items", len(out.Items))
	return nil
}
