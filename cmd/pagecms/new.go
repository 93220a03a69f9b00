package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/eringen/pagecms/scaffold"
)

// scaffoldData holds the template variables passed to every scaffold template.
type scaffoldData struct {
	ProjectName string
	ModuleName  string
	SiteName    string
}

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a new pagecms project",
	Example: `  pagecms new myblog
  pagecms new github.com/user/myblog`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNew(cmd, args[0])
	},
}

func runNew(cmd *cobra.Command, name string) error {
	out := cmd.OutOrStdout()

	// Project directory is the last path segment.
	dirName := name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		dirName = name[idx+1:]
	}
	if _, err := os.Stat(dirName); err == nil {
		return fmt.Errorf("directory %q already exists", dirName)
	}

	data := scaffoldData{
		ProjectName: dirName,
		ModuleName:  name,
		SiteName:    toTitle(dirName),
	}
	fmt.Fprintf(out, "Creating new pagecms project: %s\n\n", dirName)

	if err := writeScaffold(dirName, data); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Done! Next steps:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  cd %s\n", dirName)
	fmt.Fprintln(out, "  go mod tidy")
	fmt.Fprintln(out, "  go run . import site.yaml")
	fmt.Fprintln(out, "  go run . serve")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Set PAGECMS_ADMIN_PASSWORD and PAGECMS_SESSION_SECRET in .env for production.")
	return nil
}

// writeScaffold renders every scaffold template into dir. Files ending in
// .tmpl are executed as text/template; others, like the html templates the
// project starts from, are copied as they are.
func writeScaffold(dir string, data scaffoldData) error {
	const root = "templates"
	return fs.WalkDir(scaffold.Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		outPath := filepath.Join(dir, relPath)
		if d.IsDir() {
			return os.MkdirAll(outPath, 0o755)
		}

		content, err := scaffold.Templates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if filepath.Base(outPath) == "dotenv.tmpl" {
			outPath = filepath.Join(filepath.Dir(outPath), ".env.example.tmpl")
		}
		if !strings.HasSuffix(outPath, ".tmpl") {
			return os.WriteFile(outPath, content, 0o644)
		}
		outPath = strings.TrimSuffix(outPath, ".tmpl")

		tmpl, err := template.New(filepath.Base(path)).Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer f.Close()
		if err := tmpl.Execute(f, data); err != nil {
			return fmt.Errorf("execute template %s: %w", path, err)
		}
		return nil
	})
}

// toTitle converts a hyphenated or lowercase name to a title-case string.
// e.g. "my-blog" -> "My Blog", "myblog" -> "Myblog"
func toTitle(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
