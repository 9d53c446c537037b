/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/guidedmodules/internal/module"
	"github.com/josephgoksu/guidedmodules/internal/ui"
	"github.com/josephgoksu/guidedmodules/store"
)

// modulesCmd represents the modules parent command
var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Inspect and validate module definitions",
	Long: `Module definitions are YAML or JSON files under the project's modules
directory (.guidedmodules/modules by default). Each file defines one
version of one module.

Examples:
  guidedmodules modules list
  guidedmodules modules validate
  guidedmodules modules validate drafts/app.yaml
  guidedmodules modules watch`,
}

var modulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded modules",
	RunE:  runModulesList,
}

var modulesValidateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate module definitions",
	Long: `Validate every definition in the modules directory, including references
between modules. With file arguments, validate just those files on their own.`,
	RunE: runModulesValidate,
}

var modulesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-validate definitions whenever they change",
	RunE:  runModulesWatch,
}

func init() {
	rootCmd.AddCommand(modulesCmd)
	modulesCmd.AddCommand(modulesListCmd)
	modulesCmd.AddCommand(modulesValidateCmd)
	modulesCmd.AddCommand(modulesWatchCmd)
}

func moduleSource() *store.FileSource {
	return store.NewOsFileSource(GetConfig().Project.ModulesDir)
}

func loadModules(ctx context.Context, source store.DefinitionSource) (*module.Catalog, error) {
	mods, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	catalog := module.NewCatalog()
	if err := catalog.Replace(ctx, mods); err != nil {
		return nil, err
	}
	return catalog, nil
}

func runModulesList(cmd *cobra.Command, args []string) error {
	source := moduleSource()
	catalog, err := loadModules(cmd.Context(), source)
	if err != nil {
		return err
	}
	mods := catalog.Modules()

	if isJSON() {
		return printJSON(cmd, map[string]any{
			"modules_dir": source.Describe(),
			"count":       len(mods),
			"modules":     mods,
		})
	}
	if len(mods) == 0 {
		cmd.Printf("No modules found in %s\n", source.Describe())
		return nil
	}

	table := &ui.Table{Headers: []string{"KEY", "VERSION", "TITLE", "QUESTIONS", "DOCUMENTS", "STATUS"}, MaxWidth: 40}
	for _, m := range mods {
		status := "latest"
		if m.SupersededBy != nil {
			status = fmt.Sprintf("superseded by v%d", *m.SupersededBy)
		}
		table.Rows = append(table.Rows, []string{
			m.Key, strconv.Itoa(m.Version), m.Title,
			strconv.Itoa(len(m.Questions)), strconv.Itoa(len(m.Documents)), status,
		})
	}
	cmd.Print(table.Render())
	return nil
}

func runModulesValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	source := moduleSource()

	if len(args) == 0 {
		catalog, err := loadModules(ctx, source)
		if err != nil {
			return err
		}
		n := len(catalog.Modules())
		if isJSON() {
			return printJSON(cmd, map[string]any{"status": "valid", "modules": n})
		}
		cmd.Printf("✓ %d module definition(s) in %s are valid\n", n, source.Describe())
		return nil
	}

	var failed int
	results := make([]map[string]any, 0, len(args))
	for _, path := range args {
		m, err := source.LoadFile(path)
		if err == nil {
			err = m.Prepare(ctx)
		}
		if err != nil {
			failed++
			results = append(results, map[string]any{"file": path, "valid": false, "error": err.Error()})
			if !isJSON() {
				cmd.Printf("✗ %s: %v\n", path, err)
			}
			continue
		}
		results = append(results, map[string]any{"file": path, "valid": true, "module": m.Ref()})
		if !isJSON() {
			cmd.Printf("✓ %s (%s)\n", path, m.Ref())
		}
	}
	if isJSON() {
		if err := printJSON(cmd, results); err != nil {
			return err
		}
	}
	if failed > 0 {
		if !isJSON() {
			cmd.Println(ui.RenderErrorPanel("Invalid module definitions",
				fmt.Sprintf("%d of %d file(s) failed to load.", failed, len(args))))
		}
		return fmt.Errorf("%d of %d definition(s) failed validation", failed, len(args))
	}
	return nil
}

func runModulesWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := moduleSource()
	w, err := store.NewWatcher(source, module.NewCatalog(), func(mods []*module.Module, err error) {
		if err != nil {
			cmd.Println(ui.StyleError.Render("✗ " + err.Error()))
			return
		}
		cmd.Println(ui.StyleSuccess.Render(fmt.Sprintf("✓ %d module definition(s) valid", len(mods))))
	})
	if err != nil {
		return err
	}
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", source.Describe())
	return w.Run(ctx)
}
