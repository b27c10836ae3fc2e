package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// maxReadBytes bounds read_file so a stray binary cannot flood the prompt.
const maxReadBytes = 1 << 20

func resolve(workdir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workdir, path)
}

func readFile(opts Options) tools.Definition {
	return tools.Definition{
		Name:        "read_file",
		Description: "Read contents of a file",
		Category:    CategoryFilesystem,
		Permission:  tools.AutoApprove,
		RiskLevel:   1,
		Schema:      tools.NewSchema(tools.String("file_path", "path of the file to read", tools.Required())),
		Capability: tools.CapabilityFunc(func(_ context.Context, args map[string]any) (any, error) {
			path := resolve(opts.Workdir, args["file_path"].(string))
			info, err := os.Stat(path)
			if err != nil {
				if os.IsNotExist(err) {
					return nil, fmt.Errorf("file not found: %s", path)
				}
				return nil, err
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", path)
			}
			if info.Size() > maxReadBytes {
				return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxReadBytes)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"path":    path,
				"content": string(data),
				"size":    len(data),
			}, nil
		}),
	}
}

func writeFile(opts Options) tools.Definition {
	return tools.Definition{
		Name:        "write_file",
		Description: "Write content to a file",
		Category:    CategoryFilesystem,
		Permission:  tools.RequireConfirmation,
		RiskLevel:   3,
		Schema: tools.NewSchema(
			tools.String("file_path", "path of the file to write", tools.Required()),
			tools.String("content", "content to write", tools.Required()),
			tools.Boolean("append", "append instead of truncating", tools.Default(false)),
		),
		Capability: tools.CapabilityFunc(func(_ context.Context, args map[string]any) (any, error) {
			path := resolve(opts.Workdir, args["file_path"].(string))
			content := args["content"].(string)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
			if args["append"].(bool) {
				flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				return nil, err
			}
			n, err := f.WriteString(content)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"message": "File written successfully: " + path,
				"size":    n,
			}, nil
		}),
	}
}

func listDirectory(opts Options) tools.Definition {
	return tools.Definition{
		Name:        "list_directory",
		Description: "List files and directories in a path",
		Category:    CategoryFilesystem,
		Permission:  tools.AutoApprove,
		RiskLevel:   1,
		Schema:      tools.NewSchema(tools.String("directory_path", "directory to list", tools.Default("."))),
		Capability: tools.CapabilityFunc(func(_ context.Context, args map[string]any) (any, error) {
			path := resolve(opts.Workdir, args["directory_path"].(string))
			entries, err := os.ReadDir(path)
			if err != nil {
				if os.IsNotExist(err) {
					return nil, fmt.Errorf("directory not found: %s", path)
				}
				return nil, err
			}
			items := make([]map[string]any, 0, len(entries))
			for _, e := range entries {
				item := map[string]any{"name": e.Name(), "type": "file"}
				if e.IsDir() {
					item["type"] = "directory"
				}
				if info, err := e.Info(); err == nil {
					if !e.IsDir() {
						item["size"] = info.Size()
					}
					item["modified"] = info.ModTime().Format(time.RFC3339)
				}
				items = append(items, item)
			}
			return map[string]any{
				"path":  path,
				"items": items,
				"count": len(items),
			}, nil
		}),
	}
}
